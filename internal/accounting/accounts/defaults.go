package accounts

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

//go:embed chart/default.yaml
var defaultChartYAML []byte

// ChartAccount is one row of a chart template.
type ChartAccount struct {
	Code       string      `yaml:"code"`
	Name       string      `yaml:"name"`
	NameArabic string      `yaml:"name_ar"`
	Type       AccountType `yaml:"type"`
	Parent     string      `yaml:"parent"`
}

type chartDocument struct {
	Accounts []ChartAccount `yaml:"accounts"`
}

// DefaultChart parses the embedded standard chart.
func DefaultChart() ([]ChartAccount, error) {
	return ParseChart(defaultChartYAML)
}

// ParseChart decodes a chart template and checks that parents precede children.
func ParseChart(raw []byte) ([]ChartAccount, error) {
	var doc chartDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("accounts: parse chart: %w", err)
	}
	seen := make(map[string]bool, len(doc.Accounts))
	for _, row := range doc.Accounts {
		if row.Code == "" || row.Name == "" || !row.Type.Valid() {
			return nil, fmt.Errorf("accounts: invalid chart row %q", row.Code)
		}
		if seen[row.Code] {
			return nil, fmt.Errorf("accounts: duplicate chart code %q", row.Code)
		}
		if row.Parent != "" && !seen[row.Parent] {
			return nil, fmt.Errorf("accounts: chart parent %q must precede %q", row.Parent, row.Code)
		}
		seen[row.Code] = true
	}
	return doc.Accounts, nil
}

// CreateDefaultAccounts installs the standard chart for the tenant in one
// transaction. Codes that already exist are returned untouched, so repeated
// calls are safe.
func (s *Service) CreateDefaultAccounts(ctx context.Context, tenantID, actorID int64) (map[string]Account, error) {
	chart, err := DefaultChart()
	if err != nil {
		return nil, err
	}
	return s.InstallChart(ctx, tenantID, actorID, chart)
}

// InstallChart creates the missing accounts of a chart template.
func (s *Service) InstallChart(ctx context.Context, tenantID, actorID int64, chart []ChartAccount) (map[string]Account, error) {
	if tenantID == 0 {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidInput)
	}
	out := make(map[string]Account, len(chart))
	created := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, row := range chart {
			existing, err := tx.GetByCode(ctx, tenantID, row.Code)
			if err == nil {
				out[row.Code] = existing
				continue
			}
			if !errors.Is(err, shared.ErrAccountNotFound) {
				return err
			}
			in := CreateAccountInput{
				TenantID:           tenantID,
				Code:               row.Code,
				Name:               NormalizeName(row.Name),
				NameArabic:         NormalizeName(row.NameArabic),
				Type:               row.Type,
				IsSystem:           true,
				AllowManualEntries: true,
				OpeningSide:        SideDebit,
				ActorID:            actorID,
			}
			if row.Parent != "" {
				parent := out[row.Parent]
				in.ParentID = &parent.ID
			}
			acc, err := insertAccount(ctx, tx, in)
			if err != nil {
				return err
			}
			out[row.Code] = acc
			created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created > 0 {
		s.record(ctx, actorID, "account.chart.install", tenantID, map[string]any{"created": created})
	}
	return out, nil
}

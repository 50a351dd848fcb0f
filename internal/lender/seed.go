package lender

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/crestfund/lead-crm/internal/model"
)

type seedFile struct {
	Lenders []seedLender `yaml:"lenders"`
}

type seedLender struct {
	Name           string   `yaml:"name"`
	ContactEmail   string   `yaml:"contact_email"`
	ContactPhone   string   `yaml:"contact_phone"`
	MinAmount      *float64 `yaml:"min_amount"`
	MaxAmount      *float64 `yaml:"max_amount"`
	Industries     []string `yaml:"industries"`
	States         []string `yaml:"states"`
	MinCreditScore *int     `yaml:"min_credit_score"`
	MinTIBMonths   *int     `yaml:"min_tib_months"`
	Notes          string   `yaml:"notes"`
}

// SeedResult counts what a roster seed run did.
type SeedResult struct {
	Created int
	Updated int
}

// SeedRoster loads a YAML lender roster and upserts it by name: existing
// lenders are updated in place, new ones created. Entries without a name are
// skipped.
func (s *Service) SeedRoster(ctx context.Context, r io.Reader) (*SeedResult, error) {
	var file seedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, eris.Wrap(err, "lender: decode roster seed")
	}

	existing, err := s.store.ListLenders(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]model.Lender, len(existing))
	for _, l := range existing {
		byName[strings.ToLower(l.Name)] = l
	}

	res := &SeedResult{}
	for _, entry := range file.Lenders {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			zap.L().Warn("lender: seed entry without a name skipped")
			continue
		}

		lender := model.Lender{
			Name:           name,
			ContactEmail:   entry.ContactEmail,
			ContactPhone:   entry.ContactPhone,
			MinAmount:      entry.MinAmount,
			MaxAmount:      entry.MaxAmount,
			Industries:     entry.Industries,
			States:         entry.States,
			MinCreditScore: entry.MinCreditScore,
			MinTIBMonths:   entry.MinTIBMonths,
			Notes:          entry.Notes,
		}

		if prev, ok := byName[strings.ToLower(name)]; ok {
			lender.ID = prev.ID
			if err := s.store.UpdateLender(ctx, lender); err != nil {
				return res, err
			}
			res.Updated++
			continue
		}
		if _, err := s.store.CreateLender(ctx, lender); err != nil {
			return res, err
		}
		res.Created++
	}
	return res, nil
}

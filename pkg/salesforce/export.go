package salesforce

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/model"
)

// externalIDField carries the CRM conversation id on the Salesforce Lead so
// repeat pushes update instead of duplicating.
const externalIDField = "CRM_Conversation_Id__c"

// Exporter upserts funded conversations as Salesforce Leads.
type Exporter struct {
	client Client
}

func NewExporter(client Client) *Exporter {
	return &Exporter{client: client}
}

// ExportResult counts what a push did.
type ExportResult struct {
	Created int
	Updated int
	Failed  int
}

type leadRecord struct {
	ID string `json:"Id"`
}

// PushFunded upserts each conversation keyed by its external conversation id.
// Per-record failures are counted and logged, not fatal.
func (e *Exporter) PushFunded(ctx context.Context, convs []model.Conversation) (*ExportResult, error) {
	res := &ExportResult{}
	for _, conv := range convs {
		if conv.State != model.StateFunded {
			continue
		}

		record := leadFields(conv)

		var existing []leadRecord
		soql := fmt.Sprintf("SELECT Id FROM Lead WHERE %s = '%s'", externalIDField, soqlEscape(conv.ID))
		if err := e.client.Query(ctx, soql, &existing); err != nil {
			res.Failed++
			zap.L().Warn("sf: lead lookup failed", zap.String("conversation_id", conv.ID), zap.Error(err))
			continue
		}

		if len(existing) > 0 {
			if err := e.client.UpdateOne(ctx, "Lead", existing[0].ID, record); err != nil {
				res.Failed++
				zap.L().Warn("sf: lead update failed", zap.String("conversation_id", conv.ID), zap.Error(err))
				continue
			}
			res.Updated++
			continue
		}

		if _, err := e.client.InsertOne(ctx, "Lead", record); err != nil {
			res.Failed++
			zap.L().Warn("sf: lead insert failed", zap.String("conversation_id", conv.ID), zap.Error(err))
			continue
		}
		res.Created++
	}

	zap.L().Info("salesforce export finished",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed))
	return res, nil
}

func leadFields(conv model.Conversation) map[string]any {
	record := map[string]any{
		"Company":       conv.BusinessName,
		"Phone":         conv.Phone,
		"Status":        "Closed - Converted",
		externalIDField: conv.ID,
	}
	if conv.Email != "" {
		record["Email"] = conv.Email
	}
	if conv.USState != "" {
		record["State"] = conv.USState
	}
	if conv.City != "" {
		record["City"] = conv.City
	}

	// Lead requires LastName; split the owner name or fall back to the
	// business name.
	last := conv.BusinessName
	if conv.OwnerName != "" {
		parts := strings.Fields(conv.OwnerName)
		last = parts[len(parts)-1]
		if len(parts) > 1 {
			record["FirstName"] = strings.Join(parts[:len(parts)-1], " ")
		}
	}
	record["LastName"] = last

	if d := conv.Details; d != nil && d.FundingAmount != nil {
		record["AnnualRevenue"] = *d.FundingAmount
	}
	return record
}

func soqlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}

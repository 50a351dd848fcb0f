package fcs

import (
	"fmt"
	"strings"

	"github.com/crestfund/lead-crm/internal/model"
)

const analysisSystemPrompt = `You are an underwriting analyst for a merchant cash advance brokerage. You are given a lead profile and the extracted text of the merchant's bank statements. Produce a financial condition summary for an underwriter.

The report must contain these labeled lines so they can be parsed downstream, each on its own line with a concrete value or "unknown":
Average Monthly Deposits: $<amount>
Average Monthly Revenue: $<amount>
Negative Days: <count>
State: <two-letter code>
Industry: <industry>
Existing Positions: <count>

After the labeled lines, write a short narrative covering deposit consistency, balance trends, existing advance positions visible in the statements, and any red flags (NSF activity, large unexplained transfers, declining deposits). Base every figure on the statements; where the statements do not support a figure, say "unknown" rather than guessing.`

func buildUserPrompt(conv *model.Conversation, statements []string) string {
	var b strings.Builder

	b.WriteString("Lead profile:\n")
	fmt.Fprintf(&b, "Business: %s\n", conv.BusinessName)
	if conv.DBA != "" {
		fmt.Fprintf(&b, "DBA: %s\n", conv.DBA)
	}
	if conv.USState != "" {
		fmt.Fprintf(&b, "State: %s\n", conv.USState)
	}
	if conv.Details != nil {
		if conv.Details.BusinessType != "" {
			fmt.Fprintf(&b, "Business type: %s\n", conv.Details.BusinessType)
		}
		if conv.Details.MonthlyRevenue != nil {
			fmt.Fprintf(&b, "Reported monthly revenue: $%.2f\n", *conv.Details.MonthlyRevenue)
		}
		if conv.Details.TIBMonths != nil {
			fmt.Fprintf(&b, "Time in business: %d months\n", *conv.Details.TIBMonths)
		}
		if conv.Details.FICOScore != nil {
			fmt.Fprintf(&b, "FICO: %d\n", *conv.Details.FICOScore)
		}
		if conv.Details.FundingAmount != nil {
			fmt.Fprintf(&b, "Requested funding: $%.2f\n", *conv.Details.FundingAmount)
		}
	}

	if len(statements) == 0 {
		b.WriteString("\nNo bank statements were readable. Produce the report from the profile alone and mark unsupported figures \"unknown\".\n")
		return b.String()
	}

	for i, text := range statements {
		fmt.Fprintf(&b, "\n--- Bank statement %d of %d ---\n", i+1, len(statements))
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

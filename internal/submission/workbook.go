package submission

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/crestfund/lead-crm/internal/model"
)

// BuildWorkbook renders a submission packet: lead profile, the latest
// financial analysis, and the qualified lender matches, one sheet each.
func BuildWorkbook(conv *model.Conversation, analysis *model.FCSAnalysis, matches []model.LenderMatch) (*xlsx.File, error) {
	f := xlsx.NewFile()

	if err := addProfileSheet(f, conv); err != nil {
		return nil, err
	}
	if err := addAnalysisSheet(f, analysis); err != nil {
		return nil, err
	}
	if err := addMatchesSheet(f, matches); err != nil {
		return nil, err
	}
	return f, nil
}

func addProfileSheet(f *xlsx.File, conv *model.Conversation) error {
	sheet, err := f.AddSheet("Lead Profile")
	if err != nil {
		return eris.Wrap(err, "submission: add profile sheet")
	}

	addPair := func(label, value string) {
		if value == "" {
			return
		}
		row := sheet.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetString(value)
	}

	addPair("Business Name", conv.BusinessName)
	addPair("DBA", conv.DBA)
	addPair("Owner", conv.OwnerName)
	addPair("Phone", conv.Phone)
	addPair("Email", conv.Email)
	addPair("Address", conv.Address)
	addPair("City", conv.City)
	addPair("State", conv.USState)
	addPair("Zip", conv.Zip)

	if d := conv.Details; d != nil {
		if d.MonthlyRevenue != nil {
			addPair("Monthly Revenue", fmt.Sprintf("$%.2f", *d.MonthlyRevenue))
		}
		if d.TIBMonths != nil {
			addPair("Time in Business (months)", strconv.Itoa(*d.TIBMonths))
		}
		if d.FICOScore != nil {
			addPair("FICO", strconv.Itoa(*d.FICOScore))
		}
		if d.FundingAmount != nil {
			addPair("Requested Funding", fmt.Sprintf("$%.2f", *d.FundingAmount))
		}
		addPair("Business Type", d.BusinessType)
		addPair("Business Start Date", d.BusinessStartDate)
	}
	return nil
}

func addAnalysisSheet(f *xlsx.File, analysis *model.FCSAnalysis) error {
	sheet, err := f.AddSheet("Financial Analysis")
	if err != nil {
		return eris.Wrap(err, "submission: add analysis sheet")
	}

	if analysis == nil || analysis.Status != model.FCSStatusCompleted {
		row := sheet.AddRow()
		row.AddCell().SetString("No completed financial analysis on file.")
		return nil
	}

	addPair := func(label, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetString(value)
	}

	addPair("Statements Analyzed", strconv.Itoa(analysis.StatementCount))
	m := analysis.Metrics
	if m.AvgDeposits != nil {
		addPair("Average Monthly Deposits", fmt.Sprintf("$%.2f", *m.AvgDeposits))
	}
	if m.AvgRevenue != nil {
		addPair("Average Monthly Revenue", fmt.Sprintf("$%.2f", *m.AvgRevenue))
	}
	if m.NegativeDays != nil {
		addPair("Negative Days", strconv.Itoa(*m.NegativeDays))
	}
	if m.PositionCount != nil {
		addPair("Existing Positions", strconv.Itoa(*m.PositionCount))
	}
	if m.USState != "" {
		addPair("State", m.USState)
	}
	if m.Industry != "" {
		addPair("Industry", m.Industry)
	}

	sheet.AddRow()
	row := sheet.AddRow()
	row.AddCell().SetString("Full Report")
	row = sheet.AddRow()
	row.AddCell().SetString(analysis.ReportText)
	return nil
}

func addMatchesSheet(f *xlsx.File, matches []model.LenderMatch) error {
	sheet, err := f.AddSheet("Lender Matches")
	if err != nil {
		return eris.Wrap(err, "submission: add matches sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Lender", "Tier", "Score", "Max Amount", "Factor Rate", "Term (months)", "Preferred"} {
		header.AddCell().SetString(h)
	}

	for _, m := range matches {
		row := sheet.AddRow()
		row.AddCell().SetString(m.LenderName)
		row.AddCell().SetInt(m.Tier)
		row.AddCell().SetInt(m.MatchScore)
		if m.MaxAmount != nil {
			row.AddCell().SetString(fmt.Sprintf("$%.0f", *m.MaxAmount))
		} else {
			row.AddCell().SetString("")
		}
		if m.FactorRate != nil {
			row.AddCell().SetString(fmt.Sprintf("%.2fx", *m.FactorRate))
		} else {
			row.AddCell().SetString("")
		}
		if m.TermMonths != nil {
			row.AddCell().SetInt(*m.TermMonths)
		} else {
			row.AddCell().SetString("")
		}
		if m.IsPreferred {
			row.AddCell().SetString("yes")
		} else {
			row.AddCell().SetString("no")
		}
	}
	return nil
}

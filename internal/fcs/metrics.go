package fcs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/crestfund/lead-crm/internal/model"
)

// Metric extractors run over the generated report text. A pattern that does
// not match leaves its metric nil; extraction never fails the pipeline.
var (
	reAvgDeposits  = regexp.MustCompile(`(?i)average monthly deposits:?\s*\$?([\d,]+(?:\.\d+)?)`)
	reAvgRevenue   = regexp.MustCompile(`(?i)average monthly revenue:?\s*\$?([\d,]+(?:\.\d+)?)`)
	reNegativeDays = regexp.MustCompile(`(?i)negative (?:balance )?days:?\s*(\d+)`)
	reUSState      = regexp.MustCompile(`(?i)\bstate:?\s*([A-Z]{2})\b`)
	reIndustry     = regexp.MustCompile(`(?i)industry:?\s*([^\n]+)`)
	rePositions    = regexp.MustCompile(`(?i)existing positions:?\s*(\d+)`)
)

// ExtractMetrics parses summary figures out of a report.
func ExtractMetrics(report string) model.FCSMetrics {
	var m model.FCSMetrics

	if v, ok := matchMoney(reAvgDeposits, report); ok {
		m.AvgDeposits = &v
	}
	if v, ok := matchMoney(reAvgRevenue, report); ok {
		m.AvgRevenue = &v
	}
	if v, ok := matchInt(reNegativeDays, report); ok {
		m.NegativeDays = &v
	}
	if g := reUSState.FindStringSubmatch(report); g != nil {
		m.USState = strings.ToUpper(g[1])
	}
	if g := reIndustry.FindStringSubmatch(report); g != nil {
		m.Industry = strings.TrimSpace(g[1])
	}
	if v, ok := matchInt(rePositions, report); ok {
		m.PositionCount = &v
	}

	return m
}

func matchMoney(re *regexp.Regexp, s string) (float64, bool) {
	g := re.FindStringSubmatch(s)
	if g == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(g[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func matchInt(re *regexp.Regexp, s string) (int, bool) {
	g := re.FindStringSubmatch(s)
	if g == nil {
		return 0, false
	}
	v, err := strconv.Atoi(g[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

package lender

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Free-text offer descriptions carry figures like "$250k max", "1.35x
// factor", "12 month term". These extractors pull them out when the
// qualification service gives no structured value.
var (
	reAmount     = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)\s*([kKmM]?)`)
	reFactorRate = regexp.MustCompile(`(\d\.\d{1,2})\s*[xX]`)
	reTermMonths = regexp.MustCompile(`(\d{1,3})\s*[- ]?month`)
	reStartDate  = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// ParseAmount extracts a dollar amount from free text, honoring k/m suffixes.
func ParseAmount(s string) (float64, bool) {
	g := reAmount.FindStringSubmatch(s)
	if g == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(g[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(g[2]) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v, true
}

// ParseFactorRate extracts a factor rate like "1.35x".
func ParseFactorRate(s string) (float64, bool) {
	g := reFactorRate.FindStringSubmatch(s)
	if g == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(g[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseTermMonths extracts a term like "12 month" or "6-month".
func ParseTermMonths(s string) (int, bool) {
	g := reTermMonths.FindStringSubmatch(s)
	if g == nil {
		return 0, false
	}
	v, err := strconv.Atoi(g[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// MonthsInBusiness computes whole months between an MM/DD/YYYY start date and
// now. Any other date format yields 0 rather than an error.
func MonthsInBusiness(startDate string, now time.Time) int {
	g := reStartDate.FindStringSubmatch(strings.TrimSpace(startDate))
	if g == nil {
		return 0
	}
	start, err := time.Parse("01/02/2006", g[0])
	if err != nil {
		return 0
	}
	if start.After(now) {
		return 0
	}
	months := (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
	if now.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

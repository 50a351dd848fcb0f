package lender

import "github.com/crestfund/lead-crm/internal/model"

// ScoreInputs is the lender side of the match score computation.
type ScoreInputs struct {
	Tier      int
	Preferred bool
	MaxAmount *float64
}

// MatchScore computes the 0-100 heuristic fit score for one lender against a
// qualification profile. Base 50, plus tier weight (tier 1 strongest), plus
// bonuses for preferred lenders, headroom over revenue, FICO, and time in
// business, minus a penalty for negative-day history.
func MatchScore(l ScoreInputs, in model.QualificationInput) int {
	score := 50

	tier := l.Tier
	if tier > 5 {
		tier = 5
	}
	score += (6 - tier) * 10

	if l.Preferred {
		score += 20
	}
	if l.MaxAmount != nil && in.MonthlyRevenue > 0 && *l.MaxAmount >= 3*in.MonthlyRevenue {
		score += 15
	}

	switch {
	case in.FICO >= 700:
		score += 10
	case in.FICO >= 650:
		score += 5
	}

	switch {
	case in.TIBMonths >= 24:
		score += 10
	case in.TIBMonths >= 12:
		score += 5
	}

	switch {
	case in.NegativeDays > 30:
		score -= 10
	case in.NegativeDays > 15:
		score -= 5
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

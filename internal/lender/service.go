package lender

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/hub"
	"github.com/crestfund/lead-crm/internal/model"
)

// ErrConversationNotFound is returned when qualification names an unknown lead.
var ErrConversationNotFound = eris.New("lender: conversation not found")

// Store is the slice of persistence the qualification engine needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetFCS(ctx context.Context, conversationID string) (*model.FCSAnalysis, error)
	EnqueueJob(ctx context.Context, jobType model.JobType, conversationID string, input []byte) (*model.Job, error)
	CompleteJob(ctx context.Context, conversationID string, jobType model.JobType, result []byte) (bool, error)
	FailJob(ctx context.Context, conversationID string, jobType model.JobType, errMsg string) (bool, error)
	ReplaceLenderMatches(ctx context.Context, conversationID string, matches []model.LenderMatch) error
	ListLenderMatches(ctx context.Context, conversationID string, qualifiedOnly bool) ([]model.LenderMatch, error)
	TopLenderMatch(ctx context.Context, conversationID string) (*model.LenderMatch, error)
	CreateLender(ctx context.Context, l model.Lender) (*model.Lender, error)
	UpdateLender(ctx context.Context, l model.Lender) error
	DeleteLender(ctx context.Context, id string) error
	GetLender(ctx context.Context, id string) (*model.Lender, error)
	ListLenders(ctx context.Context) ([]model.Lender, error)
}

// Service runs lender qualification and manages the roster. When no external
// qualifier is configured, Qualify only enqueues the job and an external
// worker is expected to post results through the callback endpoints.
type Service struct {
	store     Store
	qualifier Qualifier
	notifier  hub.Notifier
}

func NewService(st Store, qualifier Qualifier, notifier hub.Notifier) *Service {
	return &Service{store: st, qualifier: qualifier, notifier: notifier}
}

// QualifyResult is what a qualification trigger returns to the caller.
type QualifyResult struct {
	Job     *model.Job          `json:"job"`
	Matches []model.LenderMatch `json:"matches,omitempty"`
}

// Qualify builds the financial profile, enqueues a qualification job, and,
// when a qualifier is configured, runs it synchronously and replaces the
// conversation's match set with the new verdict.
func (s *Service) Qualify(ctx context.Context, conversationID string) (*QualifyResult, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	analysis, err := s.store.GetFCS(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	input := BuildInput(conv, analysis, time.Now())

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "lender: marshal qualification input")
	}
	job, err := s.store.EnqueueJob(ctx, model.JobTypeLenderQualification, conversationID, inputJSON)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyRoom(conversationID, hub.Event{
		Type:           hub.EventQualificationStarted,
		ConversationID: conversationID,
		Payload:        map[string]any{"job_id": job.ID},
	})

	if s.qualifier == nil {
		return &QualifyResult{Job: job}, nil
	}

	resp, err := s.qualifier.Qualify(ctx, input)
	if err != nil {
		if _, ferr := s.store.FailJob(ctx, conversationID, model.JobTypeLenderQualification, err.Error()); ferr != nil {
			zap.L().Error("lender: mark job failed", zap.String("conversation_id", conversationID), zap.Error(ferr))
		}
		return nil, err
	}

	matches := NormalizeMatches(conversationID, resp, input)
	if err := s.persistResult(ctx, conversationID, matches); err != nil {
		return nil, err
	}
	return &QualifyResult{Job: job, Matches: matches}, nil
}

// SubmitMatches is the worker callback path: it replaces the match set and
// closes out the open qualification job.
func (s *Service) SubmitMatches(ctx context.Context, conversationID string, matches []model.LenderMatch) error {
	for i := range matches {
		matches[i].ConversationID = conversationID
	}
	return s.persistResult(ctx, conversationID, matches)
}

func (s *Service) persistResult(ctx context.Context, conversationID string, matches []model.LenderMatch) error {
	if err := s.store.ReplaceLenderMatches(ctx, conversationID, matches); err != nil {
		if _, ferr := s.store.FailJob(ctx, conversationID, model.JobTypeLenderQualification, err.Error()); ferr != nil {
			zap.L().Error("lender: mark job failed", zap.String("conversation_id", conversationID), zap.Error(ferr))
		}
		return err
	}

	qualified := 0
	for _, m := range matches {
		if m.Qualified {
			qualified++
		}
	}
	result, _ := json.Marshal(map[string]any{"qualified": qualified, "total": len(matches)})
	if _, err := s.store.CompleteJob(ctx, conversationID, model.JobTypeLenderQualification, result); err != nil {
		zap.L().Warn("lender: complete job", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	s.notifier.NotifyRoom(conversationID, hub.Event{
		Type:           hub.EventQualificationFinished,
		ConversationID: conversationID,
		Payload:        map[string]any{"qualified": qualified, "total": len(matches)},
	})
	return nil
}

// CompleteQualification closes an open qualification job without a new match
// set, for workers that post matches and completion separately.
func (s *Service) CompleteQualification(ctx context.Context, conversationID string, result json.RawMessage) (bool, error) {
	matched, err := s.store.CompleteJob(ctx, conversationID, model.JobTypeLenderQualification, result)
	if err != nil {
		return false, err
	}
	if matched {
		s.notifier.NotifyRoom(conversationID, hub.Event{
			Type:           hub.EventQualificationFinished,
			ConversationID: conversationID,
		})
	}
	return matched, nil
}

// Matches lists the persisted match set, optionally qualified rows only.
func (s *Service) Matches(ctx context.Context, conversationID string, qualifiedOnly bool) ([]model.LenderMatch, error) {
	return s.store.ListLenderMatches(ctx, conversationID, qualifiedOnly)
}

// Recommendation returns the best qualified match: lowest tier first, then
// highest score. Nil when nothing qualified.
func (s *Service) Recommendation(ctx context.Context, conversationID string) (*model.LenderMatch, error) {
	return s.store.TopLenderMatch(ctx, conversationID)
}

// BuildInput normalizes a lead profile plus its latest analysis into the
// record the qualification service consumes.
func BuildInput(conv *model.Conversation, analysis *model.FCSAnalysis, now time.Time) model.QualificationInput {
	in := model.QualificationInput{
		ConversationID:    conv.ID,
		BusinessName:      conv.BusinessName,
		USState:           conv.USState,
		RequestedPosition: 1,
	}

	if d := conv.Details; d != nil {
		if d.MonthlyRevenue != nil {
			in.MonthlyRevenue = *d.MonthlyRevenue
		}
		if d.TIBMonths != nil {
			in.TIBMonths = *d.TIBMonths
		} else {
			in.TIBMonths = MonthsInBusiness(d.BusinessStartDate, now)
		}
		if d.FICOScore != nil {
			in.FICO = *d.FICOScore
		}
		in.Industry = d.BusinessType
	}

	if analysis != nil {
		m := analysis.Metrics
		if m.NegativeDays != nil {
			in.NegativeDays = *m.NegativeDays
		}
		if m.AvgDeposits != nil {
			in.DepositsPerMonth = *m.AvgDeposits
		}
		if m.USState != "" && in.USState == "" {
			in.USState = m.USState
		}
		if m.Industry != "" && in.Industry == "" {
			in.Industry = m.Industry
		}
		if m.PositionCount != nil {
			in.RequestedPosition = *m.PositionCount + 1
		}
	}
	return in
}

// NormalizeMatches turns the service's verdict lists into LenderMatch rows,
// filling numeric fields from explicit values or free-text parsing and
// scoring every entry.
func NormalizeMatches(conversationID string, resp *QualifyResponse, in model.QualificationInput) []model.LenderMatch {
	out := make([]model.LenderMatch, 0, len(resp.Qualified)+len(resp.NonQualified))
	for _, sl := range resp.Qualified {
		out = append(out, toMatch(conversationID, sl, in, true))
	}
	for _, sl := range resp.NonQualified {
		out = append(out, toMatch(conversationID, sl, in, false))
	}
	return out
}

func toMatch(conversationID string, sl ServiceLender, in model.QualificationInput, qualified bool) model.LenderMatch {
	m := model.LenderMatch{
		ConversationID: conversationID,
		LenderName:     sl.Name,
		Qualified:      qualified,
		Tier:           sl.Tier,
		Position:       sl.Position,
		IsPreferred:    sl.Preferred,
		MaxAmount:      sl.MaxAmount,
		FactorRate:     sl.FactorRate,
		TermMonths:     sl.TermMonths,
		Requirements:   sl.Requirements,
	}
	if !qualified {
		m.BlockingReason = sl.Reason
	}

	if m.MaxAmount == nil {
		if v, ok := ParseAmount(sl.Description); ok {
			m.MaxAmount = &v
		}
	}
	if m.FactorRate == nil {
		if v, ok := ParseFactorRate(sl.Description); ok {
			m.FactorRate = &v
		}
	}
	if m.TermMonths == nil {
		if v, ok := ParseTermMonths(sl.Description); ok {
			m.TermMonths = &v
		}
	}

	m.MatchScore = MatchScore(ScoreInputs{Tier: sl.Tier, Preferred: sl.Preferred, MaxAmount: m.MaxAmount}, in)
	return m
}

// Roster CRUD passthroughs.

func (s *Service) CreateLender(ctx context.Context, l model.Lender) (*model.Lender, error) {
	return s.store.CreateLender(ctx, l)
}

func (s *Service) UpdateLender(ctx context.Context, l model.Lender) error {
	return s.store.UpdateLender(ctx, l)
}

func (s *Service) DeleteLender(ctx context.Context, id string) error {
	return s.store.DeleteLender(ctx, id)
}

func (s *Service) GetLender(ctx context.Context, id string) (*model.Lender, error) {
	return s.store.GetLender(ctx, id)
}

func (s *Service) ListLenders(ctx context.Context) ([]model.Lender, error) {
	return s.store.ListLenders(ctx)
}

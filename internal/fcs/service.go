package fcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crestfund/lead-crm/internal/config"
	"github.com/crestfund/lead-crm/internal/hub"
	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/internal/ocr"
	"github.com/crestfund/lead-crm/pkg/anthropic"
)

// ErrConversationNotFound is returned when a trigger names an unknown lead.
var ErrConversationNotFound = eris.New("fcs: conversation not found")

// PreconditionError names the lead fields that must be filled in before an
// analysis can run.
type PreconditionError struct {
	Missing []string
}

func (e *PreconditionError) Error() string {
	return "fcs: missing required fields: " + strings.Join(e.Missing, ", ")
}

// Store is the slice of persistence the pipeline needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	UpdateConversationFields(ctx context.Context, id string, fields map[string]any) error
	ListDocuments(ctx context.Context, conversationID string) ([]model.Document, error)
	UpsertFCSProcessing(ctx context.Context, conversationID, businessName string) (*model.FCSAnalysis, error)
	CompleteFCS(ctx context.Context, conversationID, reportText string, statementCount int, metrics model.FCSMetrics) error
	FailFCS(ctx context.Context, conversationID, errorMessage string) error
	GetFCS(ctx context.Context, conversationID string) (*model.FCSAnalysis, error)
	InsertFCSResult(ctx context.Context, a model.FCSAnalysis) (string, error)
	ListFCSResults(ctx context.Context, conversationID string) ([]model.FCSAnalysis, error)
	DeleteFCSResult(ctx context.Context, id string) error
	EnqueueJob(ctx context.Context, jobType model.JobType, conversationID string, input []byte) (*model.Job, error)
	CompleteJob(ctx context.Context, conversationID string, jobType model.JobType, result []byte) (bool, error)
	FailJob(ctx context.Context, conversationID string, jobType model.JobType, errMsg string) (bool, error)
}

// Documents opens stored files for text extraction.
type Documents interface {
	Open(ctx context.Context, id string) (*model.Document, io.ReadCloser, error)
}

const (
	defaultTriggerWindow = 5 * time.Minute
	defaultDocCharBudget = 40000
	defaultLLMTimeout    = 90 * time.Second
	defaultMaxTokens     = 4096
	extractConcurrency   = 4
)

// Service runs the financial analysis pipeline: bank statement OCR, report
// generation, and metric extraction.
type Service struct {
	store     Store
	docs      Documents
	extractor ocr.Extractor
	llm       anthropic.Client
	notifier  hub.Notifier

	triggerWindow time.Duration
	docCharBudget int
	llmModel      string
	llmMaxTokens  int64
	llmTimeout    time.Duration

	mu          sync.Mutex
	lastTrigger map[string]time.Time
}

func NewService(st Store, docs Documents, extractor ocr.Extractor, llm anthropic.Client, notifier hub.Notifier, fcsCfg config.FCSConfig, llmCfg config.AnthropicConfig) *Service {
	window := defaultTriggerWindow
	if fcsCfg.TriggerWindowMins > 0 {
		window = time.Duration(fcsCfg.TriggerWindowMins) * time.Minute
	}
	budget := fcsCfg.DocCharBudget
	if budget <= 0 {
		budget = defaultDocCharBudget
	}
	timeout := defaultLLMTimeout
	if llmCfg.TimeoutSecs > 0 {
		timeout = time.Duration(llmCfg.TimeoutSecs) * time.Second
	}
	maxTokens := int64(llmCfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Service{
		store:         st,
		docs:          docs,
		extractor:     extractor,
		llm:           llm,
		notifier:      notifier,
		triggerWindow: window,
		docCharBudget: budget,
		llmModel:      llmCfg.Model,
		llmMaxTokens:  maxTokens,
		llmTimeout:    timeout,
		lastTrigger:   make(map[string]time.Time),
	}
}

// TriggerResult reports what a trigger request did.
type TriggerResult struct {
	Skipped bool       `json:"skipped"`
	Job     *model.Job `json:"job,omitempty"`
}

// Trigger validates preconditions, enqueues an analysis job, and starts
// generation in the background. A repeat trigger inside the dedup window is
// acknowledged but skipped.
func (s *Service) Trigger(ctx context.Context, conversationID string) (*TriggerResult, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	var missing []string
	if conv.Details == nil || conv.Details.MonthlyRevenue == nil {
		missing = append(missing, "monthly_revenue")
	}
	if conv.Details == nil || conv.Details.TIBMonths == nil {
		missing = append(missing, "time_in_business_months")
	}
	if len(missing) > 0 {
		return nil, &PreconditionError{Missing: missing}
	}

	s.mu.Lock()
	if last, ok := s.lastTrigger[conversationID]; ok && time.Since(last) < s.triggerWindow {
		s.mu.Unlock()
		zap.L().Info("fcs trigger skipped, recently triggered",
			zap.String("conversation_id", conversationID),
			zap.Time("last_trigger", last))
		return &TriggerResult{Skipped: true}, nil
	}
	s.lastTrigger[conversationID] = time.Now()
	s.mu.Unlock()

	input, err := json.Marshal(map[string]any{
		"conversation_id":         conversationID,
		"business_name":           conv.BusinessName,
		"monthly_revenue":         conv.Details.MonthlyRevenue,
		"time_in_business_months": conv.Details.TIBMonths,
	})
	if err != nil {
		return nil, eris.Wrap(err, "fcs: marshal job input")
	}

	job, err := s.store.EnqueueJob(ctx, model.JobTypeFCSAnalysis, conversationID, input)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateConversationFields(ctx, conversationID, map[string]any{"state": string(model.StateFCSRunning)}); err != nil {
		zap.L().Warn("fcs: update conversation state", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	s.notifier.NotifyRoom(conversationID, hub.Event{
		Type:           hub.EventFCSTriggered,
		ConversationID: conversationID,
		Payload:        map[string]any{"job_id": job.ID},
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.Generate(ctx, conversationID); err != nil {
			zap.L().Error("fcs generation failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
		}
	}()

	return &TriggerResult{Job: job}, nil
}

// Generate runs the full pipeline for a conversation and records the outcome.
// Unrecoverable errors mark the analysis and job failed before returning.
func (s *Service) Generate(ctx context.Context, conversationID string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	if _, err := s.store.UpsertFCSProcessing(ctx, conversationID, conv.BusinessName); err != nil {
		return err
	}

	report, statementCount, err := s.buildReport(ctx, conv)
	if err != nil {
		s.fail(ctx, conversationID, err)
		return err
	}

	metrics := ExtractMetrics(report)
	if err := s.store.CompleteFCS(ctx, conversationID, report, statementCount, metrics); err != nil {
		s.fail(ctx, conversationID, err)
		return err
	}

	if _, err := s.store.InsertFCSResult(ctx, model.FCSAnalysis{
		ConversationID: conversationID,
		BusinessName:   conv.BusinessName,
		StatementCount: statementCount,
		ReportText:     report,
		Metrics:        metrics,
		Status:         model.FCSStatusCompleted,
	}); err != nil {
		zap.L().Warn("fcs: insert history row", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	result, _ := json.Marshal(map[string]any{"statement_count": statementCount, "report_chars": len(report)})
	if _, err := s.store.CompleteJob(ctx, conversationID, model.JobTypeFCSAnalysis, result); err != nil {
		zap.L().Warn("fcs: complete job", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	s.notifier.NotifyRoom(conversationID, hub.Event{
		Type:           hub.EventFCSCompleted,
		ConversationID: conversationID,
		Payload:        map[string]any{"status": string(model.FCSStatusCompleted), "statement_count": statementCount},
	})

	zap.L().Info("fcs analysis completed",
		zap.String("conversation_id", conversationID),
		zap.Int("statement_count", statementCount),
		zap.Int("report_chars", len(report)))
	return nil
}

func (s *Service) fail(ctx context.Context, conversationID string, cause error) {
	if err := s.store.FailFCS(ctx, conversationID, cause.Error()); err != nil {
		zap.L().Error("fcs: mark analysis failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	if _, err := s.store.FailJob(ctx, conversationID, model.JobTypeFCSAnalysis, cause.Error()); err != nil {
		zap.L().Error("fcs: mark job failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	s.notifier.NotifyRoom(conversationID, hub.Event{
		Type:           hub.EventFCSCompleted,
		ConversationID: conversationID,
		Payload:        map[string]any{"status": string(model.FCSStatusFailed), "error": cause.Error()},
	})
}

// buildReport extracts statement text and asks the model for the analysis.
// An unreachable or empty model response falls back to a templated report so
// the pipeline still completes; no documents or zero successful extractions
// is fatal to the run.
func (s *Service) buildReport(ctx context.Context, conv *model.Conversation) (string, int, error) {
	docs, err := s.store.ListDocuments(ctx, conv.ID)
	if err != nil {
		return "", 0, err
	}
	statements := selectStatements(docs)
	if len(statements) == 0 {
		return "", 0, eris.Errorf("fcs: no documents to analyze for %s", conv.ID)
	}

	texts := make([]string, len(statements))
	errs := make([]error, len(statements))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, doc := range statements {
		g.Go(func() error {
			text, err := s.extractDocument(gctx, doc.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("fcs: statement extraction failed, skipping",
					zap.String("document_id", doc.ID),
					zap.String("filename", doc.OriginalFilename),
					zap.Error(err))
				errs[i] = err
				return nil
			}
			if len(text) > s.docCharBudget {
				text = text[:s.docCharBudget]
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", 0, eris.Wrap(err, "fcs: extract statements")
	}

	var extracted []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			extracted = append(extracted, t)
		}
	}
	if len(extracted) == 0 {
		for _, err := range errs {
			if err != nil {
				return "", 0, eris.Wrapf(err, "fcs: no statement text extracted from %d documents", len(statements))
			}
		}
		return "", 0, eris.Errorf("fcs: no statement text extracted from %d documents", len(statements))
	}

	report := s.generateWithLLM(ctx, conv, extracted)
	if strings.TrimSpace(report) == "" {
		report = fallbackReport(conv, len(extracted))
	}
	return report, len(extracted), nil
}

func (s *Service) extractDocument(ctx context.Context, documentID string) (string, error) {
	_, rc, err := s.docs.Open(ctx, documentID)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", eris.Wrap(err, "fcs: read document")
	}
	return s.extractor.ExtractText(ctx, data)
}

// selectStatements picks the documents worth analyzing. Typed bank statements
// win; an untyped upload set is taken as-is.
func selectStatements(docs []model.Document) []model.Document {
	var typed []model.Document
	for _, d := range docs {
		if d.DocumentType == "bank_statement" {
			typed = append(typed, d)
		}
	}
	if len(typed) > 0 {
		return typed
	}
	return docs
}

func (s *Service) generateWithLLM(ctx context.Context, conv *model.Conversation, statements []string) string {
	if s.llm == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	resp, err := s.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.llmModel,
		MaxTokens: s.llmMaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(analysisSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildUserPrompt(conv, statements)},
		},
	})
	if err != nil {
		zap.L().Warn("fcs: model call failed, using fallback report",
			zap.String("conversation_id", conv.ID),
			zap.Error(err))
		return ""
	}
	resp.Usage.LogCost(s.llmModel, "fcs")
	return resp.Text()
}

func fallbackReport(conv *model.Conversation, statementCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Financial Condition Summary: %s\n\n", conv.BusinessName)
	fmt.Fprintf(&b, "Statements Analyzed: %d\n", statementCount)
	if conv.Details != nil && conv.Details.MonthlyRevenue != nil {
		fmt.Fprintf(&b, "Average Monthly Revenue: $%.2f (reported)\n", *conv.Details.MonthlyRevenue)
	}
	if conv.Details != nil && conv.Details.TIBMonths != nil {
		fmt.Fprintf(&b, "Time in Business: %d months\n", *conv.Details.TIBMonths)
	}
	if conv.USState != "" {
		fmt.Fprintf(&b, "State: %s\n", conv.USState)
	}
	b.WriteString("\nAutomated analysis was unavailable for this run. Figures above are taken from the lead profile; rerun the analysis once the statement review service is reachable.\n")
	return b.String()
}

// SubmitResult is the external-worker callback path: it persists a finished
// report, closes out the open analysis job, and fans out the completion
// event. Metrics are extracted server-side so both paths parse identically.
func (s *Service) SubmitResult(ctx context.Context, conversationID, reportText string, statementCount int) (*model.FCSAnalysis, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	// A worker may report results for a run it started itself, with no
	// local processing row yet.
	if _, err := s.store.UpsertFCSProcessing(ctx, conversationID, conv.BusinessName); err != nil {
		return nil, err
	}

	metrics := ExtractMetrics(reportText)
	if err := s.store.CompleteFCS(ctx, conversationID, reportText, statementCount, metrics); err != nil {
		return nil, err
	}
	if _, err := s.store.InsertFCSResult(ctx, model.FCSAnalysis{
		ConversationID: conversationID,
		BusinessName:   conv.BusinessName,
		StatementCount: statementCount,
		ReportText:     reportText,
		Metrics:        metrics,
		Status:         model.FCSStatusCompleted,
	}); err != nil {
		zap.L().Warn("fcs: insert history row", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	if _, err := s.store.CompleteJob(ctx, conversationID, model.JobTypeFCSAnalysis, nil); err != nil {
		zap.L().Warn("fcs: complete job", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	s.notifier.NotifyRoom(conversationID, hub.Event{
		Type:           hub.EventFCSCompleted,
		ConversationID: conversationID,
		Payload:        map[string]any{"status": string(model.FCSStatusCompleted), "statement_count": statementCount},
	})
	return s.store.GetFCS(ctx, conversationID)
}

// Current returns the live analysis row for a conversation, nil when none.
func (s *Service) Current(ctx context.Context, conversationID string) (*model.FCSAnalysis, error) {
	return s.store.GetFCS(ctx, conversationID)
}

// History returns past analysis runs, newest first.
func (s *Service) History(ctx context.Context, conversationID string) ([]model.FCSAnalysis, error) {
	return s.store.ListFCSResults(ctx, conversationID)
}

// DeleteResult removes a single saved run from the history.
func (s *Service) DeleteResult(ctx context.Context, id string) error {
	return s.store.DeleteFCSResult(ctx, id)
}

package fcs

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestfund/lead-crm/internal/config"
	"github.com/crestfund/lead-crm/internal/hub"
	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/pkg/anthropic"
)

type fakeStore struct {
	mu sync.Mutex

	conv    *model.Conversation
	docs    []model.Document
	docsErr error

	processingCalls int
	completedReport string
	completedCount  int
	completedWith   model.FCSMetrics
	failedMsg       string
	history         []model.FCSAnalysis
	jobs            []*model.Job
	completedJobs   int
	failedJobMsgs   []string
	fieldUpdates    []map[string]any
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conv != nil && f.conv.ID == id {
		return f.conv, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateConversationFields(_ context.Context, _ string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldUpdates = append(f.fieldUpdates, fields)
	return nil
}

func (f *fakeStore) ListDocuments(_ context.Context, _ string) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs, f.docsErr
}

func (f *fakeStore) UpsertFCSProcessing(_ context.Context, conversationID, businessName string) (*model.FCSAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processingCalls++
	return &model.FCSAnalysis{ConversationID: conversationID, BusinessName: businessName, Status: model.FCSStatusProcessing}, nil
}

func (f *fakeStore) CompleteFCS(_ context.Context, _ string, reportText string, statementCount int, metrics model.FCSMetrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completedReport = reportText
	f.completedCount = statementCount
	f.completedWith = metrics
	return nil
}

func (f *fakeStore) FailFCS(_ context.Context, _ string, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedMsg = errorMessage
	return nil
}

func (f *fakeStore) GetFCS(_ context.Context, _ string) (*model.FCSAnalysis, error) {
	return nil, nil
}

func (f *fakeStore) InsertFCSResult(_ context.Context, a model.FCSAnalysis) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, a)
	return "result-1", nil
}

func (f *fakeStore) ListFCSResults(_ context.Context, _ string) ([]model.FCSAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeStore) DeleteFCSResult(_ context.Context, _ string) error { return nil }

func (f *fakeStore) EnqueueJob(_ context.Context, jobType model.JobType, conversationID string, input []byte) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &model.Job{ID: "job-1", Type: jobType, ConversationID: conversationID, InputData: input, Status: model.JobStatusQueued}
	f.jobs = append(f.jobs, job)
	return job, nil
}

func (f *fakeStore) CompleteJob(_ context.Context, _ string, _ model.JobType, _ []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completedJobs++
	return true, nil
}

func (f *fakeStore) FailJob(_ context.Context, _ string, _ model.JobType, errMsg string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedJobMsgs = append(f.failedJobMsgs, errMsg)
	return true, nil
}

func (f *fakeStore) snapshot() fakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeStore{
		processingCalls: f.processingCalls,
		completedReport: f.completedReport,
		completedCount:  f.completedCount,
		completedWith:   f.completedWith,
		failedMsg:       f.failedMsg,
		history:         append([]model.FCSAnalysis(nil), f.history...),
		jobs:            append([]*model.Job(nil), f.jobs...),
		completedJobs:   f.completedJobs,
		failedJobMsgs:   append([]string(nil), f.failedJobMsgs...),
		fieldUpdates:    append([]map[string]any(nil), f.fieldUpdates...),
	}
}

type fakeDocs struct {
	files map[string][]byte
}

func (f *fakeDocs) Open(_ context.Context, id string) (*model.Document, io.ReadCloser, error) {
	data, ok := f.files[id]
	if !ok {
		return nil, nil, eris.New("document not found")
	}
	return &model.Document{ID: id}, io.NopCloser(bytes.NewReader(data)), nil
}

type fakeExtractor struct {
	texts map[string]string // keyed by document content
	err   error
}

func (f *fakeExtractor) ExtractText(_ context.Context, pdf []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	text, ok := f.texts[string(pdf)]
	if !ok {
		return "", eris.New("unreadable document")
	}
	return text, nil
}

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}}}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []hub.Event
}

func (f *fakeNotifier) NotifyRoom(_ string, ev hub.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) NotifyAll(ev hub.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func qualifiedConversation() *model.Conversation {
	return &model.Conversation{
		ID:           "conv-1",
		BusinessName: "Harbor Deli LLC",
		USState:      "NJ",
		State:        model.StateActive,
		Details: &model.LeadDetails{
			ConversationID: "conv-1",
			MonthlyRevenue: floatPtr(48000),
			TIBMonths:      intPtr(30),
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestExtractMetrics(t *testing.T) {
	report := `Average Monthly Deposits: $52,340.18
Average Monthly Revenue: $48,000
Negative Days: 4
State: NJ
Industry: Food Service
Existing Positions: 2

Deposits are consistent across all three statements.`

	m := ExtractMetrics(report)
	require.NotNil(t, m.AvgDeposits)
	assert.InDelta(t, 52340.18, *m.AvgDeposits, 0.001)
	require.NotNil(t, m.AvgRevenue)
	assert.InDelta(t, 48000.0, *m.AvgRevenue, 0.001)
	require.NotNil(t, m.NegativeDays)
	assert.Equal(t, 4, *m.NegativeDays)
	assert.Equal(t, "NJ", m.USState)
	assert.Equal(t, "Food Service", m.Industry)
	require.NotNil(t, m.PositionCount)
	assert.Equal(t, 2, *m.PositionCount)
}

func TestExtractMetrics_NoMatchesStayNil(t *testing.T) {
	m := ExtractMetrics("The statements were not legible.")
	assert.Nil(t, m.AvgDeposits)
	assert.Nil(t, m.AvgRevenue)
	assert.Nil(t, m.NegativeDays)
	assert.Empty(t, m.USState)
	assert.Empty(t, m.Industry)
	assert.Nil(t, m.PositionCount)
}

func newTestService(st *fakeStore, docs *fakeDocs, ex *fakeExtractor, llm anthropic.Client) (*Service, *fakeNotifier) {
	notifier := &fakeNotifier{}
	svc := NewService(st, docs, ex, llm, notifier,
		config.FCSConfig{TriggerWindowMins: 5},
		config.AnthropicConfig{Model: "claude-sonnet-4-5", MaxTokens: 1024, TimeoutSecs: 5})
	return svc, notifier
}

func TestTrigger_MissingFieldsNamed(t *testing.T) {
	st := &fakeStore{conv: &model.Conversation{ID: "conv-1", BusinessName: "Harbor Deli LLC"}}
	svc, _ := newTestService(st, &fakeDocs{}, &fakeExtractor{}, &fakeLLM{})

	_, err := svc.Trigger(context.Background(), "conv-1")
	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, []string{"monthly_revenue", "time_in_business_months"}, pre.Missing)
}

func TestTrigger_UnknownConversation(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, &fakeDocs{}, &fakeExtractor{}, &fakeLLM{})

	_, err := svc.Trigger(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestTrigger_RunsFullPipeline(t *testing.T) {
	st := &fakeStore{
		conv: qualifiedConversation(),
		docs: []model.Document{
			{ID: "doc-1", ConversationID: "conv-1", DocumentType: "bank_statement", OriginalFilename: "jan.pdf"},
		},
	}
	docs := &fakeDocs{files: map[string][]byte{"doc-1": []byte("jan-bytes")}}
	ex := &fakeExtractor{texts: map[string]string{"jan-bytes": "deposits ledger for january"}}
	llm := &fakeLLM{text: "Average Monthly Deposits: $51,000\nNegative Days: 1\nState: NJ"}
	svc, notifier := newTestService(st, docs, ex, llm)

	res, err := svc.Trigger(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	require.NotNil(t, res.Job)
	assert.Equal(t, model.JobTypeFCSAnalysis, res.Job.Type)

	waitFor(t, func() bool { return st.snapshot().completedJobs == 1 })

	snap := st.snapshot()
	assert.Equal(t, 1, snap.processingCalls)
	assert.Equal(t, 1, snap.completedCount)
	assert.Contains(t, snap.completedReport, "Average Monthly Deposits: $51,000")
	require.NotNil(t, snap.completedWith.AvgDeposits)
	assert.InDelta(t, 51000.0, *snap.completedWith.AvgDeposits, 0.001)
	assert.Equal(t, "NJ", snap.completedWith.USState)
	require.Len(t, snap.history, 1)
	assert.Equal(t, model.FCSStatusCompleted, snap.history[0].Status)

	require.Len(t, snap.fieldUpdates, 1)
	assert.Equal(t, string(model.StateFCSRunning), snap.fieldUpdates[0]["state"])

	waitFor(t, func() bool { return len(notifier.types()) == 2 })
	assert.Equal(t, []string{hub.EventFCSTriggered, hub.EventFCSCompleted}, notifier.types())
}

func TestTrigger_DedupWindowSkips(t *testing.T) {
	st := &fakeStore{
		conv: qualifiedConversation(),
		docs: []model.Document{{ID: "doc-1", DocumentType: "bank_statement"}},
	}
	docs := &fakeDocs{files: map[string][]byte{"doc-1": []byte("jan-bytes")}}
	ex := &fakeExtractor{texts: map[string]string{"jan-bytes": "deposits ledger"}}
	svc, _ := newTestService(st, docs, ex, &fakeLLM{text: "State: NJ"})

	first, err := svc.Trigger(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := svc.Trigger(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Nil(t, second.Job)

	waitFor(t, func() bool { return st.snapshot().completedJobs == 1 })
	assert.Len(t, st.snapshot().jobs, 1)
}

func TestGenerate_SkipsFailedExtraction(t *testing.T) {
	st := &fakeStore{
		conv: qualifiedConversation(),
		docs: []model.Document{
			{ID: "doc-1", DocumentType: "bank_statement"},
			{ID: "doc-2", DocumentType: "bank_statement"},
		},
	}
	docs := &fakeDocs{files: map[string][]byte{
		"doc-1": []byte("good"),
		"doc-2": []byte("scanned-garbage"),
	}}
	ex := &fakeExtractor{texts: map[string]string{"good": "january deposits"}}
	svc, _ := newTestService(st, docs, ex, &fakeLLM{text: "Negative Days: 0"})

	require.NoError(t, svc.Generate(context.Background(), "conv-1"))

	snap := st.snapshot()
	assert.Equal(t, 1, snap.completedCount)
	assert.Empty(t, snap.failedMsg)
}

func TestGenerate_LLMDownUsesFallback(t *testing.T) {
	st := &fakeStore{
		conv: qualifiedConversation(),
		docs: []model.Document{{ID: "doc-1", DocumentType: "bank_statement"}},
	}
	docs := &fakeDocs{files: map[string][]byte{"doc-1": []byte("good")}}
	ex := &fakeExtractor{texts: map[string]string{"good": "january deposits"}}
	svc, _ := newTestService(st, docs, ex, &fakeLLM{err: eris.New("connection refused")})

	require.NoError(t, svc.Generate(context.Background(), "conv-1"))

	snap := st.snapshot()
	assert.Contains(t, snap.completedReport, "Harbor Deli LLC")
	assert.Contains(t, snap.completedReport, "Average Monthly Revenue: $48000.00")
	require.NotNil(t, snap.completedWith.AvgRevenue)
	assert.InDelta(t, 48000.0, *snap.completedWith.AvgRevenue, 0.001)
	assert.Equal(t, 1, snap.completedJobs)
}

func TestGenerate_NoDocumentsMarksFailed(t *testing.T) {
	st := &fakeStore{conv: qualifiedConversation()}
	svc, _ := newTestService(st, &fakeDocs{}, &fakeExtractor{}, &fakeLLM{text: "unused"})

	err := svc.Generate(context.Background(), "conv-1")
	require.Error(t, err)

	snap := st.snapshot()
	assert.Contains(t, snap.failedMsg, "no documents")
	assert.Equal(t, 0, snap.completedJobs)
	require.Len(t, snap.failedJobMsgs, 1)
}

func TestGenerate_AllExtractionsFailMarksFailed(t *testing.T) {
	st := &fakeStore{
		conv: qualifiedConversation(),
		docs: []model.Document{
			{ID: "doc-1", DocumentType: "bank_statement"},
			{ID: "doc-2", DocumentType: "bank_statement"},
			{ID: "doc-3", DocumentType: "bank_statement"},
		},
	}
	docs := &fakeDocs{files: map[string][]byte{
		"doc-1": []byte("blurry"),
		"doc-2": []byte("blurry"),
		"doc-3": []byte("blurry"),
	}}
	ex := &fakeExtractor{err: eris.New("ocr rejected page")}
	svc, notifier := newTestService(st, docs, ex, &fakeLLM{text: "unused"})

	err := svc.Generate(context.Background(), "conv-1")
	require.Error(t, err)

	snap := st.snapshot()
	assert.Contains(t, snap.failedMsg, "no statement text extracted")
	assert.Contains(t, snap.failedMsg, "ocr rejected page")
	assert.Empty(t, snap.completedReport)
	assert.Equal(t, 0, snap.completedJobs)
	require.Len(t, snap.failedJobMsgs, 1)
	assert.Contains(t, strings.Join(notifier.types(), ","), hub.EventFCSCompleted)
}

func TestGenerate_DocumentListFailureMarksFailed(t *testing.T) {
	st := &fakeStore{conv: qualifiedConversation(), docsErr: eris.New("storage offline")}
	svc, notifier := newTestService(st, &fakeDocs{}, &fakeExtractor{}, &fakeLLM{})

	err := svc.Generate(context.Background(), "conv-1")
	require.Error(t, err)

	snap := st.snapshot()
	assert.Contains(t, snap.failedMsg, "storage offline")
	require.Len(t, snap.failedJobMsgs, 1)
	assert.Equal(t, 0, snap.completedJobs)
	assert.Contains(t, strings.Join(notifier.types(), ","), hub.EventFCSCompleted)
}

func TestSubmitResult_WorkerCallback(t *testing.T) {
	st := &fakeStore{conv: qualifiedConversation()}
	svc, notifier := newTestService(st, &fakeDocs{}, &fakeExtractor{}, &fakeLLM{})

	_, err := svc.SubmitResult(context.Background(), "conv-1", "Negative Days: 7\nState: NJ", 3)
	require.NoError(t, err)

	snap := st.snapshot()
	assert.Equal(t, 3, snap.completedCount)
	require.NotNil(t, snap.completedWith.NegativeDays)
	assert.Equal(t, 7, *snap.completedWith.NegativeDays)
	assert.Equal(t, 1, snap.completedJobs)
	require.Len(t, snap.history, 1)
	assert.Equal(t, []string{hub.EventFCSCompleted}, notifier.types())
}

func TestSelectStatements_PrefersTyped(t *testing.T) {
	docs := []model.Document{
		{ID: "a", DocumentType: "contract"},
		{ID: "b", DocumentType: "bank_statement"},
	}
	picked := selectStatements(docs)
	require.Len(t, picked, 1)
	assert.Equal(t, "b", picked[0].ID)

	untyped := []model.Document{{ID: "a"}, {ID: "b"}}
	assert.Len(t, selectStatements(untyped), 2)
}

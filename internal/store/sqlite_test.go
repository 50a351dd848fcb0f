package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestfund/lead-crm/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func mustCreateConversation(t *testing.T, st *SQLiteStore, businessName, phone string) *model.Conversation {
	t.Helper()
	c, err := st.CreateConversation(context.Background(), model.Conversation{
		BusinessName: businessName,
		Phone:        phone,
	})
	require.NoError(t, err)
	return c
}

// --- Conversations ---

func TestSQLite_CreateConversation_SequenceIncrements(t *testing.T) {
	st := newTestSQLiteStore(t)

	c1 := mustCreateConversation(t, st, "First LLC", "+15550100001")
	c2 := mustCreateConversation(t, st, "Second LLC", "+15550100002")

	assert.Equal(t, int64(1), c1.SequenceNum)
	assert.Equal(t, int64(2), c2.SequenceNum)
	assert.Equal(t, model.StateNew, c1.State)
}

func TestSQLite_GetConversationBySeq(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created := mustCreateConversation(t, st, "Seq Lookup Inc", "+15550100003")

	got, err := st.GetConversationBySeq(ctx, created.SequenceNum)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)

	missing, err := st.GetConversationBySeq(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_UpdateConversationFields_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "Update Me", "+15550100004")

	err := st.UpdateConversationFields(ctx, c.ID, map[string]any{
		"state":      "INTERESTED",
		"city":       "Austin",
		"lead_phone": "(555) 010-9876",
	})
	require.NoError(t, err)

	got, err := st.GetConversation(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StateInterested, got.State)
	assert.Equal(t, "Austin", got.City)
	assert.Equal(t, "(555) 010-9876", got.Phone)
}

func TestSQLite_FindConversationByPhoneSuffix(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := mustCreateConversation(t, st, "Older Shop", "+15550105555")
	time.Sleep(5 * time.Millisecond)
	newer := mustCreateConversation(t, st, "Newer Shop", "(555) 010-5555")

	// Both normalize to the same 10 digits; most recent activity wins.
	got, err := st.FindConversationByPhoneSuffix(ctx, "5550105555")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)

	// Touching the older one flips the winner.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.TouchConversation(ctx, older.ID))
	got, err = st.FindConversationByPhoneSuffix(ctx, "5550105555")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, older.ID, got.ID)

	none, err := st.FindConversationByPhoneSuffix(ctx, "0000000000")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLite_ListConversations_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := mustCreateConversation(t, st, "Alpha", "+15550100010")
	mustCreateConversation(t, st, "Beta", "+15550100011")
	require.NoError(t, st.UpdateConversationFields(ctx, a.ID, map[string]any{"state": "QUALIFIED"}))

	qualified, err := st.ListConversations(ctx, ConversationFilter{State: model.StateQualified})
	require.NoError(t, err)
	require.Len(t, qualified, 1)
	assert.Equal(t, "Alpha", qualified[0].BusinessName)

	all, err := st.ListConversations(ctx, ConversationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_BulkDeleteConversations(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c1 := mustCreateConversation(t, st, "Doomed One", "+15550100020")
	c2 := mustCreateConversation(t, st, "Doomed Two", "+15550100021")
	keep := mustCreateConversation(t, st, "Keeper", "+15550100022")

	_, err := st.InsertMessage(ctx, model.Message{
		ConversationID: c1.ID, Direction: model.DirectionInbound, Content: "hi",
	})
	require.NoError(t, err)
	require.NoError(t, st.UpsertLeadDetails(ctx, c1.ID, map[string]any{"fico_score": 700}))

	counts, err := st.BulkDeleteConversations(ctx, []string{c1.ID, c2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["conversations"])
	assert.Equal(t, int64(1), counts["messages"])
	assert.Equal(t, int64(1), counts["lead_details"])

	gone, err := st.GetConversation(ctx, c1.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	still, err := st.GetConversation(ctx, keep.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

// --- Lead details ---

func TestSQLite_UpsertLeadDetails_InsertThenUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "Details Co", "+15550100030")

	require.NoError(t, st.UpsertLeadDetails(ctx, c.ID, map[string]any{
		"monthly_revenue": 45000.0,
		"fico_score":      660,
	}))
	require.NoError(t, st.UpsertLeadDetails(ctx, c.ID, map[string]any{
		"fico_score": 685,
		"campaign":   "spring-mailer",
	}))

	d, err := st.GetLeadDetails(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NotNil(t, d.MonthlyRevenue)
	assert.Equal(t, 45000.0, *d.MonthlyRevenue)
	require.NotNil(t, d.FICOScore)
	assert.Equal(t, 685, *d.FICOScore)
	assert.Equal(t, "spring-mailer", d.Campaign)
}

// --- Messages ---

func TestSQLite_Messages_InsertAndStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "Msg Biz", "+15550100040")

	m, err := st.InsertMessage(ctx, model.Message{
		ConversationID: c.ID,
		Direction:      model.DirectionOutbound,
		Content:        "Thanks for your interest!",
		SentBy:         "broker-1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusPending, m.Status)
	assert.Equal(t, "sms", m.MessageType)

	require.NoError(t, st.UpdateMessageStatus(ctx, m.ID, model.MessageStatusSent, "SM900"))

	msgs, err := st.ListMessages(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageStatusSent, msgs[0].Status)
	assert.Equal(t, "SM900", msgs[0].CarrierID)
}

// --- FCS ---

func TestSQLite_FCS_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "FCS Biz", "+15550100050")

	a, err := st.UpsertFCSProcessing(ctx, c.ID, "FCS Biz")
	require.NoError(t, err)
	assert.Equal(t, model.FCSStatusProcessing, a.Status)

	deposits := 52000.0
	negDays := 4
	require.NoError(t, st.CompleteFCS(ctx, c.ID, "report body", 3, model.FCSMetrics{
		AvgDeposits:  &deposits,
		NegativeDays: &negDays,
		USState:      "TX",
	}))

	got, err := st.GetFCS(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.FCSStatusCompleted, got.Status)
	assert.Equal(t, 3, got.StatementCount)
	require.NotNil(t, got.Metrics.AvgDeposits)
	assert.Equal(t, 52000.0, *got.Metrics.AvgDeposits)

	// A rerun resets the row back to processing and clears prior metrics.
	_, err = st.UpsertFCSProcessing(ctx, c.ID, "FCS Biz")
	require.NoError(t, err)
	got, err = st.GetFCS(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FCSStatusProcessing, got.Status)
	assert.Nil(t, got.Metrics.AvgDeposits)
}

func TestSQLite_FCSResults_History(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "History Biz", "+15550100051")

	id1, err := st.InsertFCSResult(ctx, model.FCSAnalysis{
		ConversationID: c.ID, BusinessName: "History Biz", ReportText: "first",
	})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = st.InsertFCSResult(ctx, model.FCSAnalysis{
		ConversationID: c.ID, BusinessName: "History Biz", ReportText: "second",
	})
	require.NoError(t, err)

	results, err := st.ListFCSResults(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "second", results[0].ReportText)

	require.NoError(t, st.DeleteFCSResult(ctx, id1))
	results, err = st.ListFCSResults(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	err = st.DeleteFCSResult(ctx, id1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// --- Lenders and matches ---

func TestSQLite_Lenders_CRUD(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	minFICO := 620
	l, err := st.CreateLender(ctx, model.Lender{
		Name:           "Rapid Capital",
		Industries:     []string{"trucking", "retail"},
		MinCreditScore: &minFICO,
	})
	require.NoError(t, err)

	l.Notes = "fast approvals"
	require.NoError(t, st.UpdateLender(ctx, *l))

	got, err := st.GetLender(ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fast approvals", got.Notes)
	assert.Equal(t, []string{"trucking", "retail"}, got.Industries)

	require.NoError(t, st.DeleteLender(ctx, l.ID))
	gone, err := st.GetLender(ctx, l.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSQLite_ReplaceLenderMatches_OrderAndTop(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "Match Biz", "+15550100060")

	first := []model.LenderMatch{
		{LenderName: "Stale Lender", Qualified: true, Tier: 2, MatchScore: 70},
	}
	require.NoError(t, st.ReplaceLenderMatches(ctx, c.ID, first))

	second := []model.LenderMatch{
		{LenderName: "Tier Two High", Qualified: true, Tier: 2, MatchScore: 90},
		{LenderName: "Tier One Low", Qualified: true, Tier: 1, MatchScore: 60},
		{LenderName: "Declined", Qualified: false, Tier: 3, BlockingReason: "minimum FICO 650"},
	}
	require.NoError(t, st.ReplaceLenderMatches(ctx, c.ID, second))

	all, err := st.ListLenderMatches(ctx, c.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Tier One Low", all[0].LenderName)

	qualified, err := st.ListLenderMatches(ctx, c.ID, true)
	require.NoError(t, err)
	assert.Len(t, qualified, 2)

	top, err := st.TopLenderMatch(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "Tier One Low", top.LenderName)
}

// --- Job queue ---

func TestSQLite_Jobs_CompleteOpenEntry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "Job Biz", "+15550100070")

	j, err := st.EnqueueJob(ctx, model.JobTypeFCSAnalysis, c.ID, []byte(`{"docs":2}`))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, j.Status)

	matched, err := st.CompleteJob(ctx, c.ID, model.JobTypeFCSAnalysis, []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.True(t, matched)

	// No open entry remains; a second completion is a no-op.
	matched, err = st.CompleteJob(ctx, c.ID, model.JobTypeFCSAnalysis, nil)
	require.NoError(t, err)
	assert.False(t, matched)

	jobs, err := st.ListJobs(ctx, JobFilter{ConversationID: c.ID})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobStatusCompleted, jobs[0].Status)
	assert.JSONEq(t, `{"ok":true}`, string(jobs[0].ResultData))
}

func TestSQLite_Jobs_FailRecordsError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "Fail Biz", "+15550100071")

	_, err := st.EnqueueJob(ctx, model.JobTypeLenderQualification, c.ID, nil)
	require.NoError(t, err)

	matched, err := st.FailJob(ctx, c.ID, model.JobTypeLenderQualification, "worker timeout")
	require.NoError(t, err)
	assert.True(t, matched)

	jobs, err := st.ListJobs(ctx, JobFilter{Status: model.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.JSONEq(t, `{"error":"worker timeout"}`, string(jobs[0].ResultData))
}

// --- CSV imports ---

func TestSQLite_CSVImports_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	imp, err := st.InsertCSVImport(ctx, model.CSVImport{
		Filename: "leads-march.csv", TotalRows: 10, CreatedCount: 8, FailedCount: 1, SkippedCount: 1,
	})
	require.NoError(t, err)

	c, err := st.CreateConversation(ctx, model.Conversation{
		BusinessName: "Imported Biz", Phone: "+15550100080", CSVImportID: imp.ID,
	})
	require.NoError(t, err)

	got, err := st.GetCSVImport(ctx, imp.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 8, got.CreatedCount)

	convs, err := st.ListImportConversations(ctx, imp.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, c.ID, convs[0].ID)
}

// --- AI chat ---

func TestSQLite_ChatMessages_OldestFirstWindow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := mustCreateConversation(t, st, "Chat Biz", "+15550100090")

	for i, content := range []string{"one", "two", "three"} {
		role := model.ChatRoleUser
		if i%2 == 1 {
			role = model.ChatRoleAssistant
		}
		_, err := st.InsertChatMessage(ctx, model.ChatMessage{
			ConversationID: c.ID, Role: role, Content: content,
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	// Limit keeps the most recent turns but returns them oldest first.
	msgs, err := st.ListChatMessages(ctx, c.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "three", msgs[1].Content)
}

// --- Stats ---

func TestSQLite_Stats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := mustCreateConversation(t, st, "Stat A", "+15550100095")
	mustCreateConversation(t, st, "Stat B", "+15550100096")
	require.NoError(t, st.UpdateConversationFields(ctx, a.ID, map[string]any{"state": "FUNDED"}))

	_, err := st.InsertMessage(ctx, model.Message{
		ConversationID: a.ID, Direction: model.DirectionInbound, Content: "hello",
	})
	require.NoError(t, err)
	_, err = st.EnqueueJob(ctx, model.JobTypeFCSAnalysis, a.ID, nil)
	require.NoError(t, err)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalConversations)
	assert.Equal(t, int64(1), stats.ConversationsByState["FUNDED"])
	assert.Equal(t, int64(1), stats.ConversationsByState["NEW"])
	assert.Equal(t, int64(1), stats.JobsByStatus["queued"])
	assert.Equal(t, int64(1), stats.TotalMessages)
	assert.Equal(t, int64(0), stats.TotalDocuments)
}

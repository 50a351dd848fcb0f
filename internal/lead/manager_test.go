package lead

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/internal/store"
)

type fakeStore struct {
	conversations map[string]*model.Conversation
	details       map[string]map[string]any
	createErr     error
	updatedFields map[string]any
	deletedIDs    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: map[string]*model.Conversation{},
		details:       map[string]map[string]any{},
	}
}

func (f *fakeStore) CreateConversation(_ context.Context, c model.Conversation) (*model.Conversation, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	c.ID = "conv-" + c.BusinessName
	c.SequenceNum = int64(len(f.conversations) + 1)
	f.conversations[c.ID] = &c
	return &c, nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) GetConversationBySeq(_ context.Context, seq int64) (*model.Conversation, error) {
	for _, c := range f.conversations {
		if c.SequenceNum == seq {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListConversations(_ context.Context, _ store.ConversationFilter) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, c := range f.conversations {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) UpdateConversationFields(_ context.Context, id string, fields map[string]any) error {
	f.updatedFields = fields
	c, ok := f.conversations[id]
	if !ok {
		return eris.Errorf("conversation not found: %s", id)
	}
	if v, ok := fields["state"].(string); ok {
		c.State = model.State(v)
	}
	if v, ok := fields["city"].(string); ok {
		c.City = v
	}
	return nil
}

func (f *fakeStore) BulkDeleteConversations(_ context.Context, ids []string) (store.DeleteCounts, error) {
	f.deletedIDs = ids
	var n int64
	for _, id := range ids {
		if _, ok := f.conversations[id]; ok {
			delete(f.conversations, id)
			n++
		}
	}
	return store.DeleteCounts{"conversations": n}, nil
}

func (f *fakeStore) UpsertLeadDetails(_ context.Context, conversationID string, fields map[string]any) error {
	existing, ok := f.details[conversationID]
	if !ok {
		existing = map[string]any{}
		f.details[conversationID] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func TestManager_Create_RequiresNameAndPhone(t *testing.T) {
	m := NewManager(newFakeStore())

	_, err := m.Create(context.Background(), map[string]any{"city": "Austin"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []string{"business_name", "lead_phone"}, ve.Fields)
}

func TestManager_Create_NormalizesAliases(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)

	c, err := m.Create(context.Background(), map[string]any{
		"businessName":   "Acme Trucking",
		"Phone":          "+15550101234",
		"monthlyRevenue": "$48,000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Trucking", c.BusinessName)
	assert.Equal(t, model.StateNew, c.State)
	assert.Equal(t, 48000.0, fs.details[c.ID]["monthly_revenue"])
}

func TestManager_Create_KeepsPriority(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)

	c, err := m.Create(context.Background(), map[string]any{
		"business_name": "Acme Trucking",
		"lead_phone":    "+15550101234",
		"priority":      2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Priority)
}

func TestManager_Get_ByIDOrSequence(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)

	created, err := m.Create(context.Background(), map[string]any{
		"business_name": "Seq Biz", "lead_phone": "+15550100001",
	})
	require.NoError(t, err)

	byID, err := m.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	bySeq, err := m.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySeq.ID)

	_, err = m.Get(context.Background(), "999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get(context.Background(), "no-such-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Update_NoResolvableFieldsIsNoOp(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)

	created, err := m.Create(context.Background(), map[string]any{
		"business_name": "Noop Biz", "lead_phone": "+15550100002",
	})
	require.NoError(t, err)

	got, err := m.Update(context.Background(), created.ID, map[string]any{
		"definitely_not_a_field": "x",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Nil(t, fs.updatedFields)
}

func TestManager_Update_AnyStateTransitionAllowed(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)

	created, err := m.Create(context.Background(), map[string]any{
		"business_name": "Jumpy Biz", "lead_phone": "+15550100003",
	})
	require.NoError(t, err)

	// NEW straight to FUNDED; no transition table exists.
	got, err := m.Update(context.Background(), created.ID, map[string]any{"state": "FUNDED"})
	require.NoError(t, err)
	assert.Equal(t, model.StateFunded, got.State)

	got, err = m.Update(context.Background(), created.ID, map[string]any{"state": "NEW"})
	require.NoError(t, err)
	assert.Equal(t, model.StateNew, got.State)
}

func TestManager_Create_DescribesConstraintViolation(t *testing.T) {
	fs := newFakeStore()
	fs.createErr = eris.Wrap(&pgconn.PgError{
		Code:       "23505",
		ColumnName: "lead_phone",
		TableName:  "conversations",
	}, "postgres: insert conversation")
	m := NewManager(fs)

	_, err := m.Create(context.Background(), map[string]any{
		"business_name": "Dup Biz", "lead_phone": "+15550100004",
	})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "lead_phone")
	assert.Equal(t, "already exists", ve.Reason)
}

func TestManager_BulkDelete_RequiresIDs(t *testing.T) {
	m := NewManager(newFakeStore())

	_, err := m.BulkDelete(context.Background(), nil)
	require.Error(t, err)

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestManager_BulkDelete_ReturnsCounts(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)

	c, err := m.Create(context.Background(), map[string]any{
		"business_name": "Gone Biz", "lead_phone": "+15550100005",
	})
	require.NoError(t, err)

	counts, err := m.BulkDelete(context.Background(), []string{c.ID, "missing-id"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["conversations"])
	assert.Equal(t, []string{c.ID, "missing-id"}, fs.deletedIDs)
}

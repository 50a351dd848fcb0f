// Package lead owns the conversation pipeline: creation, field updates,
// lookup by id or sequence number, and bulk deletion.
package lead

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/db"
	"github.com/crestfund/lead-crm/internal/fields"
	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/internal/store"
)

// ErrNotFound is returned when no conversation matches the given reference.
var ErrNotFound = eris.New("lead: conversation not found")

// ValidationError names the fields that made a request unprocessable.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := "lead: invalid request"
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Store is the slice of persistence the manager needs.
type Store interface {
	CreateConversation(ctx context.Context, c model.Conversation) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetConversationBySeq(ctx context.Context, seq int64) (*model.Conversation, error)
	ListConversations(ctx context.Context, filter store.ConversationFilter) ([]model.Conversation, error)
	UpdateConversationFields(ctx context.Context, id string, fields map[string]any) error
	BulkDeleteConversations(ctx context.Context, ids []string) (store.DeleteCounts, error)
	UpsertLeadDetails(ctx context.Context, conversationID string, fields map[string]any) error
}

// Manager coordinates conversation lifecycle operations.
type Manager struct {
	store Store
}

// NewManager creates a lead manager.
func NewManager(s Store) *Manager {
	return &Manager{store: s}
}

// Create normalizes the payload and inserts a new conversation in state NEW.
// business name and phone are required; all other recognized fields are
// applied, detail fields through the lead_details upsert.
func (m *Manager) Create(ctx context.Context, payload map[string]any) (*model.Conversation, error) {
	return m.create(ctx, payload, "")
}

// CreateImported is Create with the originating CSV import recorded on the
// conversation.
func (m *Manager) CreateImported(ctx context.Context, payload map[string]any, importID string) (*model.Conversation, error) {
	return m.create(ctx, payload, importID)
}

func (m *Manager) create(ctx context.Context, payload map[string]any, importID string) (*model.Conversation, error) {
	upd := fields.Normalize(payload)
	for _, k := range upd.Unknown {
		zap.L().Debug("lead: dropping unknown field", zap.String("field", k))
	}

	var missing []string
	businessName, _ := upd.Conversations["business_name"].(string)
	if strings.TrimSpace(businessName) == "" {
		missing = append(missing, "business_name")
	}
	phone, _ := upd.Conversations["lead_phone"].(string)
	if strings.TrimSpace(phone) == "" {
		missing = append(missing, "lead_phone")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing, Reason: "required"}
	}

	c := model.Conversation{
		BusinessName: businessName,
		Phone:        phone,
		State:        model.StateNew,
		CSVImportID:  importID,
	}
	if v, ok := upd.Conversations["dba"].(string); ok {
		c.DBA = v
	}
	if v, ok := upd.Conversations["email"].(string); ok {
		c.Email = v
	}
	if v, ok := upd.Conversations["address"].(string); ok {
		c.Address = v
	}
	if v, ok := upd.Conversations["city"].(string); ok {
		c.City = v
	}
	if v, ok := upd.Conversations["us_state"].(string); ok {
		c.USState = v
	}
	if v, ok := upd.Conversations["zip"].(string); ok {
		c.Zip = v
	}
	if v, ok := upd.Conversations["owner_name"].(string); ok {
		c.OwnerName = v
	}
	if v, ok := upd.Conversations["current_step"].(string); ok {
		c.CurrentStep = v
	}
	if v, ok := upd.Conversations["priority"].(int64); ok {
		c.Priority = int(v)
	}

	created, err := m.store.CreateConversation(ctx, c)
	if err != nil {
		return nil, describeConstraint(err)
	}

	if len(upd.LeadDetails) > 0 {
		if err := m.store.UpsertLeadDetails(ctx, created.ID, upd.LeadDetails); err != nil {
			return nil, describeConstraint(err)
		}
	}

	return m.Get(ctx, created.ID)
}

// Get resolves a conversation by UUID or numeric sequence number.
func (m *Manager) Get(ctx context.Context, ref string) (*model.Conversation, error) {
	var c *model.Conversation
	var err error

	if seq, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		c, err = m.store.GetConversationBySeq(ctx, seq)
	} else {
		c, err = m.store.GetConversation(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// List returns conversations matching the filter, most recent activity first.
func (m *Manager) List(ctx context.Context, filter store.ConversationFilter) ([]model.Conversation, error) {
	return m.store.ListConversations(ctx, filter)
}

// Update applies a partial payload through field normalization. A payload
// with no resolvable fields is a no-op that returns the current record.
// State changes pass through unchecked; the pipeline has no transition table.
func (m *Manager) Update(ctx context.Context, ref string, payload map[string]any) (*model.Conversation, error) {
	c, err := m.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	upd := fields.Normalize(payload)
	for _, k := range upd.Unknown {
		zap.L().Debug("lead: dropping unknown field", zap.String("field", k))
	}
	if upd.Empty() {
		return c, nil
	}

	if len(upd.Conversations) > 0 {
		if err := m.store.UpdateConversationFields(ctx, c.ID, upd.Conversations); err != nil {
			return nil, describeConstraint(err)
		}
	}
	if len(upd.LeadDetails) > 0 {
		if err := m.store.UpsertLeadDetails(ctx, c.ID, upd.LeadDetails); err != nil {
			return nil, describeConstraint(err)
		}
	}

	return m.store.GetConversation(ctx, c.ID)
}

// BulkDelete removes conversations and their dependent rows. Counts are
// per-table; dependent tables that failed are absent from the map.
func (m *Manager) BulkDelete(ctx context.Context, ids []string) (store.DeleteCounts, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Fields: []string{"ids"}, Reason: "required"}
	}
	counts, err := m.store.BulkDeleteConversations(ctx, ids)
	if err != nil {
		return counts, err
	}
	zap.L().Info("lead: bulk delete",
		zap.Int("requested", len(ids)),
		zap.Int64("deleted", counts["conversations"]))
	return counts, nil
}

// describeConstraint rewrites database constraint violations into
// validation errors that name the offending column.
func describeConstraint(err error) error {
	if err == nil {
		return nil
	}
	cv := db.ParseConstraintError(err)
	if cv == nil {
		return err
	}

	field := cv.Column
	if field == "" {
		field = cv.Constraint
	}
	switch {
	case db.IsUniqueViolation(err):
		return &ValidationError{Fields: []string{field}, Reason: "already exists"}
	case cv.Code == "23502":
		return &ValidationError{Fields: []string{field}, Reason: "required"}
	default:
		return &ValidationError{Fields: []string{field}, Reason: "invalid value"}
	}
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/db"
	"github.com/crestfund/lead-crm/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	sequence_num  BIGINT GENERATED BY DEFAULT AS IDENTITY UNIQUE,
	business_name TEXT NOT NULL,
	dba           TEXT NOT NULL DEFAULT '',
	lead_phone    TEXT NOT NULL,
	phone_digits  TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	us_state      TEXT NOT NULL DEFAULT '',
	zip           TEXT NOT NULL DEFAULT '',
	owner_name    TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT 'NEW',
	current_step  TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 0,
	metadata      JSONB,
	csv_import_id TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_activity TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversations_state ON conversations(state);
CREATE INDEX IF NOT EXISTS idx_conversations_phone_digits ON conversations(phone_digits);
CREATE INDEX IF NOT EXISTS idx_conversations_last_activity ON conversations(last_activity DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_csv_import ON conversations(csv_import_id);

CREATE TABLE IF NOT EXISTS lead_details (
	conversation_id         TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
	business_type           TEXT NOT NULL DEFAULT '',
	monthly_revenue         DOUBLE PRECISION,
	annual_revenue          DOUBLE PRECISION,
	business_start_date     TEXT NOT NULL DEFAULT '',
	time_in_business_months INTEGER,
	funding_amount          DOUBLE PRECISION,
	factor_rate             DOUBLE PRECISION,
	term_months             INTEGER,
	fico_score              INTEGER,
	campaign                TEXT NOT NULL DEFAULT '',
	date_of_birth           TEXT NOT NULL DEFAULT '',
	tax_id                  TEXT NOT NULL DEFAULT '',
	ssn                     TEXT NOT NULL DEFAULT '',
	funding_date            TIMESTAMPTZ,
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	direction       TEXT NOT NULL,
	content         TEXT NOT NULL,
	message_type    TEXT NOT NULL DEFAULT 'sms',
	sent_by         TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'pending',
	carrier_id      TEXT NOT NULL DEFAULT '',
	timestamp       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	conversation_id   TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	stored_filename   TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	size              BIGINT NOT NULL DEFAULT 0,
	mime_type         TEXT NOT NULL DEFAULT '',
	document_type     TEXT NOT NULL DEFAULT '',
	bucket            TEXT NOT NULL DEFAULT '',
	object_key        TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	ai_analysis       JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_conversation ON documents(conversation_id);

CREATE TABLE IF NOT EXISTS fcs_analyses (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	conversation_id TEXT NOT NULL UNIQUE REFERENCES conversations(id) ON DELETE CASCADE,
	business_name   TEXT NOT NULL DEFAULT '',
	statement_count INTEGER NOT NULL DEFAULT 0,
	report_text     TEXT NOT NULL DEFAULT '',
	avg_deposits    DOUBLE PRECISION,
	avg_revenue     DOUBLE PRECISION,
	negative_days   INTEGER,
	us_state        TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	position_count  INTEGER,
	status          TEXT NOT NULL DEFAULT 'processing',
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fcs_results (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	business_name   TEXT NOT NULL DEFAULT '',
	statement_count INTEGER NOT NULL DEFAULT 0,
	report_text     TEXT NOT NULL DEFAULT '',
	avg_deposits    DOUBLE PRECISION,
	avg_revenue     DOUBLE PRECISION,
	negative_days   INTEGER,
	us_state        TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	position_count  INTEGER,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fcs_results_conversation ON fcs_results(conversation_id, created_at DESC);

CREATE TABLE IF NOT EXISTS lenders (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name             TEXT NOT NULL UNIQUE,
	contact_email    TEXT NOT NULL DEFAULT '',
	contact_phone    TEXT NOT NULL DEFAULT '',
	min_amount       DOUBLE PRECISION,
	max_amount       DOUBLE PRECISION,
	industries       JSONB,
	states           JSONB,
	min_credit_score INTEGER,
	min_tib_months   INTEGER,
	notes            TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lender_matches (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	lender_name     TEXT NOT NULL,
	qualified       BOOLEAN NOT NULL DEFAULT false,
	tier            INTEGER NOT NULL DEFAULT 0,
	position        INTEGER NOT NULL DEFAULT 1,
	match_score     INTEGER NOT NULL DEFAULT 0,
	max_amount      DOUBLE PRECISION,
	factor_rate     DOUBLE PRECISION,
	term_months     INTEGER,
	is_preferred    BOOLEAN NOT NULL DEFAULT false,
	blocking_reason TEXT NOT NULL DEFAULT '',
	requirements    JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lender_matches_conversation ON lender_matches(conversation_id, tier, match_score DESC);

CREATE TABLE IF NOT EXISTS job_queue (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_type        TEXT NOT NULL,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	input_data      JSONB,
	status          TEXT NOT NULL DEFAULT 'queued',
	result_data     JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_job_queue_status ON job_queue(status);
CREATE INDEX IF NOT EXISTS idx_job_queue_conversation ON job_queue(conversation_id, job_type);

CREATE TABLE IF NOT EXISTS csv_imports (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	filename      TEXT NOT NULL,
	total_rows    INTEGER NOT NULL DEFAULT 0,
	created_count INTEGER NOT NULL DEFAULT 0,
	failed_count  INTEGER NOT NULL DEFAULT 0,
	skipped_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ai_chat_messages (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ai_chat_conversation ON ai_chat_messages(conversation_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// conversationColumns is the scan order shared by all conversation reads.
const conversationColumns = `id, sequence_num, business_name, dba, lead_phone, email, address, city, us_state, zip, owner_name, state, current_step, priority, metadata, csv_import_id, created_at, last_activity`

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var c model.Conversation
	var metadata *[]byte
	err := row.Scan(&c.ID, &c.SequenceNum, &c.BusinessName, &c.DBA, &c.Phone,
		&c.Email, &c.Address, &c.City, &c.USState, &c.Zip, &c.OwnerName,
		&c.State, &c.CurrentStep, &c.Priority, &metadata, &c.CSVImportID,
		&c.CreatedAt, &c.LastActivity)
	if err != nil {
		return nil, err
	}
	if metadata != nil {
		c.Metadata = json.RawMessage(*metadata)
	}
	return &c, nil
}

// conversationUpdateColumns whitelists what UpdateConversationFields may set.
var conversationUpdateColumns = map[string]bool{
	"business_name": true, "dba": true, "lead_phone": true, "email": true,
	"address": true, "city": true, "us_state": true, "zip": true,
	"owner_name": true, "state": true, "current_step": true, "priority": true,
	"metadata": true,
}

// leadDetailsColumns whitelists what UpsertLeadDetails may set.
var leadDetailsColumns = map[string]bool{
	"business_type": true, "monthly_revenue": true, "annual_revenue": true,
	"business_start_date": true, "time_in_business_months": true,
	"funding_amount": true, "factor_rate": true, "term_months": true,
	"fico_score": true, "campaign": true, "date_of_birth": true,
	"tax_id": true, "ssn": true, "funding_date": true,
}

func (s *PostgresStore) CreateConversation(ctx context.Context, c model.Conversation) (*model.Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.State == "" {
		c.State = model.StateNew
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.LastActivity = now

	var metadata any
	if len(c.Metadata) > 0 {
		metadata = []byte(c.Metadata)
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations
		 (id, business_name, dba, lead_phone, phone_digits, email, address, city, us_state, zip, owner_name, state, current_step, priority, metadata, csv_import_id, created_at, last_activity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 RETURNING sequence_num`,
		c.ID, c.BusinessName, c.DBA, c.Phone, model.PhoneDigits(c.Phone),
		c.Email, c.Address, c.City, c.USState, c.Zip, c.OwnerName,
		string(c.State), c.CurrentStep, c.Priority, metadata, c.CSVImportID,
		now, now,
	).Scan(&c.SequenceNum)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert conversation")
	}

	return &c, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get conversation %s", id)
	}

	details, err := s.GetLeadDetails(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Details = details
	return c, nil
}

func (s *PostgresStore) GetConversationBySeq(ctx context.Context, seq int64) (*model.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE sequence_num = $1`, seq))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get conversation by seq %d", seq)
	}

	details, err := s.GetLeadDetails(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Details = details
	return c, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, filter ConversationFilter) ([]model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, string(filter.State))
		argIdx++
	}
	if filter.Priority != nil {
		query += fmt.Sprintf(` AND priority = $%d`, argIdx)
		args = append(args, *filter.Priority)
		argIdx++
	}
	query += ` ORDER BY last_activity DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list conversations")
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan conversation")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list conversations iterate")
}

func (s *PostgresStore) UpdateConversationFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !conversationUpdateColumns[col] {
			return eris.Errorf("postgres: column not updatable: %s", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	setClauses := ""
	args := []any{}
	argIdx := 1
	for _, col := range cols {
		if setClauses != "" {
			setClauses += ", "
		}
		setClauses += fmt.Sprintf("%s = $%d", col, argIdx)
		args = append(args, fields[col])
		argIdx++

		// Keep the routing column in lockstep with the raw phone.
		if col == "lead_phone" {
			phone, _ := fields[col].(string)
			setClauses += fmt.Sprintf(", phone_digits = $%d", argIdx)
			args = append(args, model.PhoneDigits(phone))
			argIdx++
		}
	}

	args = append(args, id)
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE conversations SET %s WHERE id = $%d`, setClauses, argIdx),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update conversation %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("conversation not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) TouchConversation(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET last_activity = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: touch conversation %s", id)
}

func (s *PostgresStore) FindConversationByPhoneSuffix(ctx context.Context, digits string) (*model.Conversation, error) {
	if digits == "" {
		return nil, nil
	}
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE phone_digits <> '' AND phone_digits LIKE '%' || $1
		 ORDER BY last_activity DESC LIMIT 1`,
		digits,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find conversation by phone suffix")
	}
	return c, nil
}

// conversationDependents lists the tables bulk delete sweeps, leaf-first.
// Each table is deleted independently so one failure (including a table that
// does not exist yet) does not abort the rest.
var conversationDependents = []string{
	"messages", "documents", "fcs_analyses", "fcs_results",
	"lender_matches", "job_queue", "ai_chat_messages", "lead_details",
}

func (s *PostgresStore) BulkDeleteConversations(ctx context.Context, ids []string) (DeleteCounts, error) {
	if len(ids) == 0 {
		return DeleteCounts{}, nil
	}

	counts := DeleteCounts{}
	for _, table := range conversationDependents {
		tag, err := s.pool.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = ANY($1)`, table), ids)
		if err != nil {
			zap.L().Warn("postgres: bulk delete dependent table failed",
				zap.String("table", table), zap.Error(err))
			continue
		}
		counts[table] = tag.RowsAffected()
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = ANY($1)`, ids)
	if err != nil {
		return counts, eris.Wrap(err, "postgres: bulk delete conversations")
	}
	counts["conversations"] = tag.RowsAffected()
	return counts, nil
}

func (s *PostgresStore) UpsertLeadDetails(ctx context.Context, conversationID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !leadDetailsColumns[col] {
			return eris.Errorf("postgres: lead_details column not updatable: %s", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	insertCols := "conversation_id"
	placeholders := "$1"
	updates := ""
	args := []any{conversationID}
	argIdx := 2
	for _, col := range cols {
		insertCols += ", " + col
		placeholders += fmt.Sprintf(", $%d", argIdx)
		if updates != "" {
			updates += ", "
		}
		updates += fmt.Sprintf("%s = $%d", col, argIdx)
		args = append(args, fields[col])
		argIdx++
	}
	now := time.Now().UTC()
	insertCols += ", updated_at"
	placeholders += fmt.Sprintf(", $%d", argIdx)
	updates += fmt.Sprintf(", updated_at = $%d", argIdx)
	args = append(args, now)

	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO lead_details (%s) VALUES (%s)
		 ON CONFLICT (conversation_id) DO UPDATE SET %s`,
			insertCols, placeholders, updates),
		args...,
	)
	return eris.Wrapf(err, "postgres: upsert lead details %s", conversationID)
}

func (s *PostgresStore) GetLeadDetails(ctx context.Context, conversationID string) (*model.LeadDetails, error) {
	var d model.LeadDetails
	err := s.pool.QueryRow(ctx,
		`SELECT conversation_id, business_type, monthly_revenue, annual_revenue,
		        business_start_date, time_in_business_months, funding_amount,
		        factor_rate, term_months, fico_score, campaign, date_of_birth,
		        tax_id, ssn, funding_date, updated_at
		 FROM lead_details WHERE conversation_id = $1`,
		conversationID,
	).Scan(&d.ConversationID, &d.BusinessType, &d.MonthlyRevenue, &d.AnnualRevenue,
		&d.BusinessStartDate, &d.TIBMonths, &d.FundingAmount,
		&d.FactorRate, &d.TermMonths, &d.FICOScore, &d.Campaign, &d.DateOfBirth,
		&d.TaxID, &d.SSN, &d.FundingDate, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lead details %s", conversationID)
	}
	return &d, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, m model.Message) (*model.Message, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.MessageType == "" {
		m.MessageType = "sms"
	}
	if m.Status == "" {
		m.Status = model.MessageStatusPending
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, direction, content, message_type, sent_by, status, carrier_id, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.ConversationID, string(m.Direction), m.Content, m.MessageType,
		m.SentBy, string(m.Status), m.CarrierID, m.Timestamp,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert message")
	}
	return &m, nil
}

func (s *PostgresStore) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, carrierID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET status = $1, carrier_id = $2 WHERE id = $3`,
		string(status), carrierID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update message status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("message not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, direction, content, message_type, sent_by, status, carrier_id, timestamp
		 FROM messages WHERE conversation_id = $1 ORDER BY timestamp ASC LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.Content,
			&m.MessageType, &m.SentBy, &m.Status, &m.CarrierID, &m.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list messages iterate")
}

func (s *PostgresStore) InsertDocument(ctx context.Context, d model.Document) (*model.Document, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	var analysis any
	if len(d.AIAnalysis) > 0 {
		analysis = []byte(d.AIAnalysis)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, conversation_id, stored_filename, original_filename, size, mime_type, document_type, bucket, object_key, url, ai_analysis, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.ConversationID, d.StoredFilename, d.OriginalFilename, d.Size,
		d.MimeType, d.DocumentType, d.Bucket, d.ObjectKey, d.URL, analysis,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert document")
	}
	return &d, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	var analysis *[]byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, conversation_id, stored_filename, original_filename, size, mime_type, document_type, bucket, object_key, url, ai_analysis, created_at, updated_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.ConversationID, &d.StoredFilename, &d.OriginalFilename,
		&d.Size, &d.MimeType, &d.DocumentType, &d.Bucket, &d.ObjectKey, &d.URL,
		&analysis, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	if analysis != nil {
		d.AIAnalysis = json.RawMessage(*analysis)
	}
	return &d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, conversationID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, stored_filename, original_filename, size, mime_type, document_type, bucket, object_key, url, ai_analysis, created_at, updated_at
		 FROM documents WHERE conversation_id = $1 ORDER BY created_at DESC`,
		conversationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		var analysis *[]byte
		if err := rows.Scan(&d.ID, &d.ConversationID, &d.StoredFilename,
			&d.OriginalFilename, &d.Size, &d.MimeType, &d.DocumentType,
			&d.Bucket, &d.ObjectKey, &d.URL, &analysis, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		if analysis != nil {
			d.AIAnalysis = json.RawMessage(*analysis)
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpsertFCSProcessing(ctx context.Context, conversationID, businessName string) (*model.FCSAnalysis, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var outID string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO fcs_analyses (id, conversation_id, business_name, status, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, 'processing', '', $4, $4)
		 ON CONFLICT (conversation_id) DO UPDATE SET
		   business_name = $3, statement_count = 0, report_text = '',
		   avg_deposits = NULL, avg_revenue = NULL, negative_days = NULL,
		   us_state = '', industry = '', position_count = NULL,
		   status = 'processing', error_message = '', updated_at = $4
		 RETURNING id`,
		id, conversationID, businessName, now,
	).Scan(&outID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert fcs processing %s", conversationID)
	}

	return &model.FCSAnalysis{
		ID:             outID,
		ConversationID: conversationID,
		BusinessName:   businessName,
		Status:         model.FCSStatusProcessing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *PostgresStore) CompleteFCS(ctx context.Context, conversationID, reportText string, statementCount int, metrics model.FCSMetrics) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fcs_analyses SET
		   report_text = $1, statement_count = $2,
		   avg_deposits = $3, avg_revenue = $4, negative_days = $5,
		   us_state = $6, industry = $7, position_count = $8,
		   status = 'completed', error_message = '', updated_at = $9
		 WHERE conversation_id = $10`,
		reportText, statementCount,
		metrics.AvgDeposits, metrics.AvgRevenue, metrics.NegativeDays,
		metrics.USState, metrics.Industry, metrics.PositionCount,
		time.Now().UTC(), conversationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete fcs %s", conversationID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("fcs analysis not found: %s", conversationID)
	}
	return nil
}

func (s *PostgresStore) FailFCS(ctx context.Context, conversationID, errorMessage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fcs_analyses SET status = 'failed', error_message = $1, updated_at = $2
		 WHERE conversation_id = $3`,
		errorMessage, time.Now().UTC(), conversationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail fcs %s", conversationID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("fcs analysis not found: %s", conversationID)
	}
	return nil
}

const fcsColumns = `id, conversation_id, business_name, statement_count, report_text, avg_deposits, avg_revenue, negative_days, us_state, industry, position_count, status, error_message, created_at, updated_at`

func scanFCS(row pgx.Row) (*model.FCSAnalysis, error) {
	var a model.FCSAnalysis
	err := row.Scan(&a.ID, &a.ConversationID, &a.BusinessName, &a.StatementCount,
		&a.ReportText, &a.Metrics.AvgDeposits, &a.Metrics.AvgRevenue,
		&a.Metrics.NegativeDays, &a.Metrics.USState, &a.Metrics.Industry,
		&a.Metrics.PositionCount, &a.Status, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) GetFCS(ctx context.Context, conversationID string) (*model.FCSAnalysis, error) {
	a, err := scanFCS(s.pool.QueryRow(ctx,
		`SELECT `+fcsColumns+` FROM fcs_analyses WHERE conversation_id = $1`,
		conversationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get fcs %s", conversationID)
	}
	return a, nil
}

func (s *PostgresStore) InsertFCSResult(ctx context.Context, a model.FCSAnalysis) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fcs_results (id, conversation_id, business_name, statement_count, report_text, avg_deposits, avg_revenue, negative_days, us_state, industry, position_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, a.ConversationID, a.BusinessName, a.StatementCount, a.ReportText,
		a.Metrics.AvgDeposits, a.Metrics.AvgRevenue, a.Metrics.NegativeDays,
		a.Metrics.USState, a.Metrics.Industry, a.Metrics.PositionCount,
		time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert fcs result")
	}
	return id, nil
}

func (s *PostgresStore) ListFCSResults(ctx context.Context, conversationID string) ([]model.FCSAnalysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, business_name, statement_count, report_text, avg_deposits, avg_revenue, negative_days, us_state, industry, position_count, created_at
		 FROM fcs_results WHERE conversation_id = $1 ORDER BY created_at DESC`,
		conversationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fcs results")
	}
	defer rows.Close()

	var out []model.FCSAnalysis
	for rows.Next() {
		var a model.FCSAnalysis
		if err := rows.Scan(&a.ID, &a.ConversationID, &a.BusinessName,
			&a.StatementCount, &a.ReportText, &a.Metrics.AvgDeposits,
			&a.Metrics.AvgRevenue, &a.Metrics.NegativeDays, &a.Metrics.USState,
			&a.Metrics.Industry, &a.Metrics.PositionCount, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fcs result")
		}
		a.Status = model.FCSStatusCompleted
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list fcs results iterate")
}

func (s *PostgresStore) DeleteFCSResult(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fcs_results WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete fcs result %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("fcs result not found: %s", id)
	}
	return nil
}

func marshalStrings(v []string) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal string list")
	}
	return b, nil
}

func (s *PostgresStore) CreateLender(ctx context.Context, l model.Lender) (*model.Lender, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	industries, err := marshalStrings(l.Industries)
	if err != nil {
		return nil, err
	}
	states, err := marshalStrings(l.States)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO lenders (id, name, contact_email, contact_phone, min_amount, max_amount, industries, states, min_credit_score, min_tib_months, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		l.ID, l.Name, l.ContactEmail, l.ContactPhone, l.MinAmount, l.MaxAmount,
		industries, states, l.MinCreditScore, l.MinTIBMonths, l.Notes, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lender")
	}
	return &l, nil
}

func (s *PostgresStore) UpdateLender(ctx context.Context, l model.Lender) error {
	industries, err := marshalStrings(l.Industries)
	if err != nil {
		return err
	}
	states, err := marshalStrings(l.States)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE lenders SET name = $1, contact_email = $2, contact_phone = $3,
		   min_amount = $4, max_amount = $5, industries = $6, states = $7,
		   min_credit_score = $8, min_tib_months = $9, notes = $10, updated_at = $11
		 WHERE id = $12`,
		l.Name, l.ContactEmail, l.ContactPhone, l.MinAmount, l.MaxAmount,
		industries, states, l.MinCreditScore, l.MinTIBMonths, l.Notes,
		time.Now().UTC(), l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lender %s", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lender not found: %s", l.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteLender(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lenders WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete lender %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lender not found: %s", id)
	}
	return nil
}

const lenderColumns = `id, name, contact_email, contact_phone, min_amount, max_amount, industries, states, min_credit_score, min_tib_months, notes, created_at, updated_at`

func scanLender(row pgx.Row) (*model.Lender, error) {
	var l model.Lender
	var industries, states *[]byte
	err := row.Scan(&l.ID, &l.Name, &l.ContactEmail, &l.ContactPhone,
		&l.MinAmount, &l.MaxAmount, &industries, &states,
		&l.MinCreditScore, &l.MinTIBMonths, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if industries != nil {
		if err := json.Unmarshal(*industries, &l.Industries); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lender industries")
		}
	}
	if states != nil {
		if err := json.Unmarshal(*states, &l.States); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lender states")
		}
	}
	return &l, nil
}

func (s *PostgresStore) GetLender(ctx context.Context, id string) (*model.Lender, error) {
	l, err := scanLender(s.pool.QueryRow(ctx,
		`SELECT `+lenderColumns+` FROM lenders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lender %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLenders(ctx context.Context) ([]model.Lender, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+lenderColumns+` FROM lenders ORDER BY name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lenders")
	}
	defer rows.Close()

	var out []model.Lender
	for rows.Next() {
		l, err := scanLender(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lender")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lenders iterate")
}

// ReplaceLenderMatches swaps the full match set for a conversation inside a
// transaction so a crash cannot leave the conversation with zero matches.
func (s *PostgresStore) ReplaceLenderMatches(ctx context.Context, conversationID string, matches []model.LenderMatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: replace matches begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM lender_matches WHERE conversation_id = $1`, conversationID); err != nil {
		return eris.Wrap(err, "postgres: replace matches delete")
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(matches))
	for _, m := range matches {
		id := m.ID
		if id == "" {
			id = uuid.New().String()
		}
		var requirements any
		if len(m.Requirements) > 0 {
			requirements = []byte(m.Requirements)
		}
		rows = append(rows, []any{
			id, conversationID, m.LenderName, m.Qualified, m.Tier, m.Position,
			m.MatchScore, m.MaxAmount, m.FactorRate, m.TermMonths,
			m.IsPreferred, m.BlockingReason, requirements, now,
		})
	}

	if _, err := db.CopyFrom(ctx, tx, "lender_matches",
		[]string{"id", "conversation_id", "lender_name", "qualified", "tier",
			"position", "match_score", "max_amount", "factor_rate", "term_months",
			"is_preferred", "blocking_reason", "requirements", "created_at"},
		rows,
	); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: replace matches commit")
}

const matchColumns = `id, conversation_id, lender_name, qualified, tier, position, match_score, max_amount, factor_rate, term_months, is_preferred, blocking_reason, requirements, created_at`

func scanMatch(row pgx.Row) (*model.LenderMatch, error) {
	var m model.LenderMatch
	var requirements *[]byte
	err := row.Scan(&m.ID, &m.ConversationID, &m.LenderName, &m.Qualified,
		&m.Tier, &m.Position, &m.MatchScore, &m.MaxAmount, &m.FactorRate,
		&m.TermMonths, &m.IsPreferred, &m.BlockingReason, &requirements, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if requirements != nil {
		m.Requirements = json.RawMessage(*requirements)
	}
	return &m, nil
}

func (s *PostgresStore) ListLenderMatches(ctx context.Context, conversationID string, qualifiedOnly bool) ([]model.LenderMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM lender_matches WHERE conversation_id = $1`
	if qualifiedOnly {
		query += ` AND qualified = true`
	}
	query += ` ORDER BY tier ASC, match_score DESC`

	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lender matches")
	}
	defer rows.Close()

	var out []model.LenderMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lender match")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lender matches iterate")
}

func (s *PostgresStore) TopLenderMatch(ctx context.Context, conversationID string) (*model.LenderMatch, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM lender_matches
		 WHERE conversation_id = $1 AND qualified = true
		 ORDER BY tier ASC, match_score DESC LIMIT 1`,
		conversationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: top lender match")
	}
	return m, nil
}

func (s *PostgresStore) EnqueueJob(ctx context.Context, jobType model.JobType, conversationID string, input []byte) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var inputData any
	if len(input) > 0 {
		inputData = input
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_queue (id, job_type, conversation_id, input_data, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'queued', $5, $5)`,
		id, string(jobType), conversationID, inputData, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: enqueue job")
	}

	return &model.Job{
		ID:             id,
		Type:           jobType,
		ConversationID: conversationID,
		InputData:      input,
		Status:         model.JobStatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CompleteJob closes the most recent open queue entry for the conversation
// and job type. The worker owns the queued→processing transition but not
// every worker performs it, so either open status is accepted here.
func (s *PostgresStore) CompleteJob(ctx context.Context, conversationID string, jobType model.JobType, result []byte) (bool, error) {
	var resultData any
	if len(result) > 0 {
		resultData = result
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE job_queue SET status = 'completed', result_data = $1, updated_at = $2
		 WHERE id = (
		   SELECT id FROM job_queue
		   WHERE conversation_id = $3 AND job_type = $4 AND status IN ('processing', 'queued')
		   ORDER BY created_at DESC LIMIT 1
		 )`,
		resultData, time.Now().UTC(), conversationID, string(jobType),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: complete job %s/%s", conversationID, jobType)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) FailJob(ctx context.Context, conversationID string, jobType model.JobType, errMsg string) (bool, error) {
	resultData, _ := json.Marshal(map[string]string{"error": errMsg})

	tag, err := s.pool.Exec(ctx,
		`UPDATE job_queue SET status = 'failed', result_data = $1, updated_at = $2
		 WHERE id = (
		   SELECT id FROM job_queue
		   WHERE conversation_id = $3 AND job_type = $4 AND status IN ('processing', 'queued')
		   ORDER BY created_at DESC LIMIT 1
		 )`,
		resultData, time.Now().UTC(), conversationID, string(jobType),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: fail job %s/%s", conversationID, jobType)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, job_type, conversation_id, input_data, status, result_data, created_at, updated_at FROM job_queue WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ConversationID != "" {
		query += fmt.Sprintf(` AND conversation_id = $%d`, argIdx)
		args = append(args, filter.ConversationID)
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND job_type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		var j model.Job
		var input, result *[]byte
		if err := rows.Scan(&j.ID, &j.Type, &j.ConversationID, &input,
			&j.Status, &result, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		if input != nil {
			j.InputData = json.RawMessage(*input)
		}
		if result != nil {
			j.ResultData = json.RawMessage(*result)
		}
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) InsertCSVImport(ctx context.Context, imp model.CSVImport) (*model.CSVImport, error) {
	if imp.ID == "" {
		imp.ID = uuid.New().String()
	}
	imp.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO csv_imports (id, filename, total_rows, created_count, failed_count, skipped_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		imp.ID, imp.Filename, imp.TotalRows, imp.CreatedCount, imp.FailedCount,
		imp.SkippedCount, imp.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert csv import")
	}
	return &imp, nil
}

func (s *PostgresStore) ListCSVImports(ctx context.Context, limit int) ([]model.CSVImport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, total_rows, created_count, failed_count, skipped_count, created_at
		 FROM csv_imports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list csv imports")
	}
	defer rows.Close()

	var out []model.CSVImport
	for rows.Next() {
		var imp model.CSVImport
		if err := rows.Scan(&imp.ID, &imp.Filename, &imp.TotalRows,
			&imp.CreatedCount, &imp.FailedCount, &imp.SkippedCount, &imp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan csv import")
		}
		out = append(out, imp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list csv imports iterate")
}

func (s *PostgresStore) GetCSVImport(ctx context.Context, id string) (*model.CSVImport, error) {
	var imp model.CSVImport
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, total_rows, created_count, failed_count, skipped_count, created_at
		 FROM csv_imports WHERE id = $1`, id,
	).Scan(&imp.ID, &imp.Filename, &imp.TotalRows, &imp.CreatedCount,
		&imp.FailedCount, &imp.SkippedCount, &imp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get csv import %s", id)
	}
	return &imp, nil
}

func (s *PostgresStore) ListImportConversations(ctx context.Context, importID string) ([]model.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE csv_import_id = $1 ORDER BY sequence_num ASC`, importID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list import conversations")
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan import conversation")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list import conversations iterate")
}

func (s *PostgresStore) InsertChatMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_chat_messages (id, conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert chat message")
	}
	return &m, nil
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM ai_chat_messages WHERE conversation_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list chat messages")
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chat message")
		}
		out = append(out, m)
	}
	// Oldest first for prompt assembly.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, eris.Wrap(rows.Err(), "postgres: list chat messages iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ConversationsByState: map[string]int64{},
		JobsByStatus:         map[string]int64{},
	}

	rows, err := s.pool.Query(ctx,
		`SELECT state, COUNT(*) FROM conversations GROUP BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats conversations")
	}
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan conversation stats")
		}
		stats.ConversationsByState[state] = n
		stats.TotalConversations += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: stats conversations iterate")
	}

	rows, err = s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM job_queue GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats jobs")
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan job stats")
		}
		stats.JobsByStatus[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: stats jobs iterate")
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&stats.TotalMessages); err != nil {
		return nil, eris.Wrap(err, "postgres: stats messages")
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.TotalDocuments); err != nil {
		return nil, eris.Wrap(err, "postgres: stats documents")
	}

	return stats, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/crestfund/lead-crm/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for
// single-box installs and local development where Postgres is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	sequence_num  INTEGER NOT NULL UNIQUE,
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
	metadata      TEXT,
	csv_import_id TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	last_activity DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_state ON conversations(state);
CREATE INDEX IF NOT EXISTS idx_conversations_phone_digits ON conversations(phone_digits);
CREATE INDEX IF NOT EXISTS idx_conversations_csv_import ON conversations(csv_import_id);

CREATE TABLE IF NOT EXISTS lead_details (
	conversation_id         TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
	business_type           TEXT NOT NULL DEFAULT '',
	monthly_revenue         REAL,
	annual_revenue          REAL,
	business_start_date     TEXT NOT NULL DEFAULT '',
	time_in_business_months INTEGER,
	funding_amount          REAL,
	factor_rate             REAL,
	term_months             INTEGER,
	fico_score              INTEGER,
	campaign                TEXT NOT NULL DEFAULT '',
	date_of_birth           TEXT NOT NULL DEFAULT '',
	tax_id                  TEXT NOT NULL DEFAULT '',
	ssn                     TEXT NOT NULL DEFAULT '',
	funding_date            DATETIME,
	updated_at              DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	direction       TEXT NOT NULL,
	content         TEXT NOT NULL,
	message_type    TEXT NOT NULL DEFAULT 'sms',
	sent_by         TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'pending',
	carrier_id      TEXT NOT NULL DEFAULT '',
	timestamp       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp);

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	conversation_id   TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	stored_filename   TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	size              INTEGER NOT NULL DEFAULT 0,
	mime_type         TEXT NOT NULL DEFAULT '',
	document_type     TEXT NOT NULL DEFAULT '',
	bucket            TEXT NOT NULL DEFAULT '',
	object_key        TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	ai_analysis       TEXT,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_conversation ON documents(conversation_id);

CREATE TABLE IF NOT EXISTS fcs_analyses (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL UNIQUE REFERENCES conversations(id) ON DELETE CASCADE,
	business_name   TEXT NOT NULL DEFAULT '',
	statement_count INTEGER NOT NULL DEFAULT 0,
	report_text     TEXT NOT NULL DEFAULT '',
	avg_deposits    REAL,
	avg_revenue     REAL,
	negative_days   INTEGER,
	us_state        TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	position_count  INTEGER,
	status          TEXT NOT NULL DEFAULT 'processing',
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fcs_results (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	business_name   TEXT NOT NULL DEFAULT '',
	statement_count INTEGER NOT NULL DEFAULT 0,
	report_text     TEXT NOT NULL DEFAULT '',
	avg_deposits    REAL,
	avg_revenue     REAL,
	negative_days   INTEGER,
	us_state        TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	position_count  INTEGER,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fcs_results_conversation ON fcs_results(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS lenders (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	contact_email    TEXT NOT NULL DEFAULT '',
	contact_phone    TEXT NOT NULL DEFAULT '',
	min_amount       REAL,
	max_amount       REAL,
	industries       TEXT,
	states           TEXT,
	min_credit_score INTEGER,
	min_tib_months   INTEGER,
	notes            TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lender_matches (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	lender_name     TEXT NOT NULL,
	qualified       INTEGER NOT NULL DEFAULT 0,
	tier            INTEGER NOT NULL DEFAULT 0,
	position        INTEGER NOT NULL DEFAULT 1,
	match_score     INTEGER NOT NULL DEFAULT 0,
	max_amount      REAL,
	factor_rate     REAL,
	term_months     INTEGER,
	is_preferred    INTEGER NOT NULL DEFAULT 0,
	blocking_reason TEXT NOT NULL DEFAULT '',
	requirements    TEXT,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lender_matches_conversation ON lender_matches(conversation_id, tier);

CREATE TABLE IF NOT EXISTS job_queue (
	id              TEXT PRIMARY KEY,
	job_type        TEXT NOT NULL,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	input_data      TEXT,
	status          TEXT NOT NULL DEFAULT 'queued',
	result_data     TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_queue_status ON job_queue(status);
CREATE INDEX IF NOT EXISTS idx_job_queue_conversation ON job_queue(conversation_id, job_type);

CREATE TABLE IF NOT EXISTS csv_imports (
	id            TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	total_rows    INTEGER NOT NULL DEFAULT 0,
	created_count INTEGER NOT NULL DEFAULT 0,
	failed_count  INTEGER NOT NULL DEFAULT 0,
	skipped_count INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_chat_messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ai_chat_conversation ON ai_chat_messages(conversation_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversationRow(row rowScanner) (*model.Conversation, error) {
	var c model.Conversation
	var metadata sql.NullString
	err := row.Scan(&c.ID, &c.SequenceNum, &c.BusinessName, &c.DBA, &c.Phone,
		&c.Email, &c.Address, &c.City, &c.USState, &c.Zip, &c.OwnerName,
		&c.State, &c.CurrentStep, &c.Priority, &metadata, &c.CSVImportID,
		&c.CreatedAt, &c.LastActivity)
	if err != nil {
		return nil, err
	}
	if metadata.Valid {
		c.Metadata = json.RawMessage(metadata.String)
	}
	return &c, nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, c model.Conversation) (*model.Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.State == "" {
		c.State = model.StateNew
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.LastActivity = now

	// Sequence numbers come from a MAX+1 subquery; the busy_timeout pragma
	// serializes concurrent writers.
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO conversations
		 (id, sequence_num, business_name, dba, lead_phone, phone_digits, email, address, city, us_state, zip, owner_name, state, current_step, priority, metadata, csv_import_id, created_at, last_activity)
		 VALUES (?, (SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM conversations), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING sequence_num`,
		c.ID, c.BusinessName, c.DBA, c.Phone, model.PhoneDigits(c.Phone),
		c.Email, c.Address, c.City, c.USState, c.Zip, c.OwnerName,
		string(c.State), c.CurrentStep, c.Priority, nullJSON(c.Metadata),
		c.CSVImportID, now, now,
	).Scan(&c.SequenceNum)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert conversation")
	}
	return &c, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, err := scanConversationRow(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get conversation %s", id)
	}
	details, err := s.GetLeadDetails(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Details = details
	return c, nil
}

func (s *SQLiteStore) GetConversationBySeq(ctx context.Context, seq int64) (*model.Conversation, error) {
	c, err := scanConversationRow(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE sequence_num = ?`, seq))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get conversation by seq %d", seq)
	}
	details, err := s.GetLeadDetails(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Details = details
	return c, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, filter ConversationFilter) ([]model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.Priority != nil {
		query += ` AND priority = ?`
		args = append(args, *filter.Priority)
	}
	query += ` ORDER BY last_activity DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list conversations")
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversationRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan conversation")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list conversations iterate")
}

func (s *SQLiteStore) UpdateConversationFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !conversationUpdateColumns[col] {
			return eris.Errorf("sqlite: column not updatable: %s", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var setClauses []string
	var args []any
	for _, col := range cols {
		setClauses = append(setClauses, col+" = ?")
		args = append(args, fields[col])
		if col == "lead_phone" {
			phone, _ := fields[col].(string)
			setClauses = append(setClauses, "phone_digits = ?")
			args = append(args, model.PhoneDigits(phone))
		}
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE conversations SET %s WHERE id = ?`, strings.Join(setClauses, ", ")),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update conversation %s", id)
	}
	return checkRowsAffected(res, "conversation", id)
}

func (s *SQLiteStore) TouchConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_activity = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: touch conversation %s", id)
}

func (s *SQLiteStore) FindConversationByPhoneSuffix(ctx context.Context, digits string) (*model.Conversation, error) {
	if digits == "" {
		return nil, nil
	}
	c, err := scanConversationRow(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE phone_digits <> '' AND phone_digits LIKE '%' || ?
		 ORDER BY last_activity DESC LIMIT 1`,
		digits,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find conversation by phone suffix")
	}
	return c, nil
}

func (s *SQLiteStore) BulkDeleteConversations(ctx context.Context, ids []string) (DeleteCounts, error) {
	if len(ids) == 0 {
		return DeleteCounts{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	counts := DeleteCounts{}
	for _, table := range conversationDependents {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE conversation_id IN (%s)`, table, placeholders),
			args...,
		)
		if err != nil {
			zap.L().Warn("sqlite: bulk delete dependent table failed",
				zap.String("table", table), zap.Error(err))
			continue
		}
		n, _ := res.RowsAffected()
		counts[table] = n
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM conversations WHERE id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return counts, eris.Wrap(err, "sqlite: bulk delete conversations")
	}
	n, _ := res.RowsAffected()
	counts["conversations"] = n
	return counts, nil
}

func (s *SQLiteStore) UpsertLeadDetails(ctx context.Context, conversationID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !leadDetailsColumns[col] {
			return eris.Errorf("sqlite: lead_details column not updatable: %s", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	insertCols := "conversation_id"
	placeholders := "?"
	var updates []string
	args := []any{conversationID}
	for _, col := range cols {
		insertCols += ", " + col
		placeholders += ", ?"
		updates = append(updates, col+" = excluded."+col)
		args = append(args, fields[col])
	}
	insertCols += ", updated_at"
	placeholders += ", ?"
	updates = append(updates, "updated_at = excluded.updated_at")
	args = append(args, time.Now().UTC())

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO lead_details (%s) VALUES (%s)
		 ON CONFLICT (conversation_id) DO UPDATE SET %s`,
			insertCols, placeholders, strings.Join(updates, ", ")),
		args...,
	)
	return eris.Wrapf(err, "sqlite: upsert lead details %s", conversationID)
}

func (s *SQLiteStore) GetLeadDetails(ctx context.Context, conversationID string) (*model.LeadDetails, error) {
	var d model.LeadDetails
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, business_type, monthly_revenue, annual_revenue,
		        business_start_date, time_in_business_months, funding_amount,
		        factor_rate, term_months, fico_score, campaign, date_of_birth,
		        tax_id, ssn, funding_date, updated_at
		 FROM lead_details WHERE conversation_id = ?`,
		conversationID,
	).Scan(&d.ConversationID, &d.BusinessType, &d.MonthlyRevenue, &d.AnnualRevenue,
		&d.BusinessStartDate, &d.TIBMonths, &d.FundingAmount,
		&d.FactorRate, &d.TermMonths, &d.FICOScore, &d.Campaign, &d.DateOfBirth,
		&d.TaxID, &d.SSN, &d.FundingDate, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get lead details %s", conversationID)
	}
	return &d, nil
}

func (s *SQLiteStore) InsertMessage(ctx context.Context, m model.Message) (*model.Message, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, direction, content, message_type, sent_by, status, carrier_id, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.Direction), m.Content, m.MessageType,
		m.SentBy, string(m.Status), m.CarrierID, m.Timestamp,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert message")
	}
	return &m, nil
}

func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, carrierID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, carrier_id = ? WHERE id = ?`,
		string(status), carrierID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update message status %s", id)
	}
	return checkRowsAffected(res, "message", id)
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, direction, content, message_type, sent_by, status, carrier_id, timestamp
		 FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages")
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.Content,
			&m.MessageType, &m.SentBy, &m.Status, &m.CarrierID, &m.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list messages iterate")
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, d model.Document) (*model.Document, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, conversation_id, stored_filename, original_filename, size, mime_type, document_type, bucket, object_key, url, ai_analysis, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ConversationID, d.StoredFilename, d.OriginalFilename, d.Size,
		d.MimeType, d.DocumentType, d.Bucket, d.ObjectKey, d.URL,
		nullJSON(d.AIAnalysis), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert document")
	}
	return &d, nil
}

func scanDocumentRow(row rowScanner) (*model.Document, error) {
	var d model.Document
	var analysis sql.NullString
	err := row.Scan(&d.ID, &d.ConversationID, &d.StoredFilename,
		&d.OriginalFilename, &d.Size, &d.MimeType, &d.DocumentType,
		&d.Bucket, &d.ObjectKey, &d.URL, &analysis, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if analysis.Valid {
		d.AIAnalysis = json.RawMessage(analysis.String)
	}
	return &d, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	d, err := scanDocumentRow(s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, stored_filename, original_filename, size, mime_type, document_type, bucket, object_key, url, ai_analysis, created_at, updated_at
		 FROM documents WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, conversationID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, stored_filename, original_filename, size, mime_type, document_type, bucket, object_key, url, ai_analysis, created_at, updated_at
		 FROM documents WHERE conversation_id = ? ORDER BY created_at DESC`,
		conversationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanDocumentRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete document %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) UpsertFCSProcessing(ctx context.Context, conversationID, businessName string) (*model.FCSAnalysis, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var outID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO fcs_analyses (id, conversation_id, business_name, status, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, 'processing', '', ?, ?)
		 ON CONFLICT (conversation_id) DO UPDATE SET
		   business_name = excluded.business_name, statement_count = 0,
		   report_text = '', avg_deposits = NULL, avg_revenue = NULL,
		   negative_days = NULL, us_state = '', industry = '',
		   position_count = NULL, status = 'processing', error_message = '',
		   updated_at = excluded.updated_at
		 RETURNING id`,
		id, conversationID, businessName, now, now,
	).Scan(&outID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert fcs processing %s", conversationID)
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

func (s *SQLiteStore) CompleteFCS(ctx context.Context, conversationID, reportText string, statementCount int, metrics model.FCSMetrics) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fcs_analyses SET
		   report_text = ?, statement_count = ?,
		   avg_deposits = ?, avg_revenue = ?, negative_days = ?,
		   us_state = ?, industry = ?, position_count = ?,
		   status = 'completed', error_message = '', updated_at = ?
		 WHERE conversation_id = ?`,
		reportText, statementCount,
		metrics.AvgDeposits, metrics.AvgRevenue, metrics.NegativeDays,
		metrics.USState, metrics.Industry, metrics.PositionCount,
		time.Now().UTC(), conversationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete fcs %s", conversationID)
	}
	return checkRowsAffected(res, "fcs analysis", conversationID)
}

func (s *SQLiteStore) FailFCS(ctx context.Context, conversationID, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fcs_analyses SET status = 'failed', error_message = ?, updated_at = ?
		 WHERE conversation_id = ?`,
		errorMessage, time.Now().UTC(), conversationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail fcs %s", conversationID)
	}
	return checkRowsAffected(res, "fcs analysis", conversationID)
}

func (s *SQLiteStore) GetFCS(ctx context.Context, conversationID string) (*model.FCSAnalysis, error) {
	var a model.FCSAnalysis
	err := s.db.QueryRowContext(ctx,
		`SELECT `+fcsColumns+` FROM fcs_analyses WHERE conversation_id = ?`,
		conversationID,
	).Scan(&a.ID, &a.ConversationID, &a.BusinessName, &a.StatementCount,
		&a.ReportText, &a.Metrics.AvgDeposits, &a.Metrics.AvgRevenue,
		&a.Metrics.NegativeDays, &a.Metrics.USState, &a.Metrics.Industry,
		&a.Metrics.PositionCount, &a.Status, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get fcs %s", conversationID)
	}
	return &a, nil
}

func (s *SQLiteStore) InsertFCSResult(ctx context.Context, a model.FCSAnalysis) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fcs_results (id, conversation_id, business_name, statement_count, report_text, avg_deposits, avg_revenue, negative_days, us_state, industry, position_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.ConversationID, a.BusinessName, a.StatementCount, a.ReportText,
		a.Metrics.AvgDeposits, a.Metrics.AvgRevenue, a.Metrics.NegativeDays,
		a.Metrics.USState, a.Metrics.Industry, a.Metrics.PositionCount,
		time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert fcs result")
	}
	return id, nil
}

func (s *SQLiteStore) ListFCSResults(ctx context.Context, conversationID string) ([]model.FCSAnalysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, business_name, statement_count, report_text, avg_deposits, avg_revenue, negative_days, us_state, industry, position_count, created_at
		 FROM fcs_results WHERE conversation_id = ? ORDER BY created_at DESC`,
		conversationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fcs results")
	}
	defer rows.Close()

	var out []model.FCSAnalysis
	for rows.Next() {
		var a model.FCSAnalysis
		if err := rows.Scan(&a.ID, &a.ConversationID, &a.BusinessName,
			&a.StatementCount, &a.ReportText, &a.Metrics.AvgDeposits,
			&a.Metrics.AvgRevenue, &a.Metrics.NegativeDays, &a.Metrics.USState,
			&a.Metrics.Industry, &a.Metrics.PositionCount, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fcs result")
		}
		a.Status = model.FCSStatusCompleted
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list fcs results iterate")
}

func (s *SQLiteStore) DeleteFCSResult(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fcs_results WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete fcs result %s", id)
	}
	return checkRowsAffected(res, "fcs result", id)
}

func (s *SQLiteStore) CreateLender(ctx context.Context, l model.Lender) (*model.Lender, error) {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lenders (id, name, contact_email, contact_phone, min_amount, max_amount, industries, states, min_credit_score, min_tib_months, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.ContactEmail, l.ContactPhone, l.MinAmount, l.MaxAmount,
		industries, states, l.MinCreditScore, l.MinTIBMonths, l.Notes, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lender")
	}
	return &l, nil
}

func (s *SQLiteStore) UpdateLender(ctx context.Context, l model.Lender) error {
	industries, err := marshalStrings(l.Industries)
	if err != nil {
		return err
	}
	states, err := marshalStrings(l.States)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE lenders SET name = ?, contact_email = ?, contact_phone = ?,
		   min_amount = ?, max_amount = ?, industries = ?, states = ?,
		   min_credit_score = ?, min_tib_months = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		l.Name, l.ContactEmail, l.ContactPhone, l.MinAmount, l.MaxAmount,
		industries, states, l.MinCreditScore, l.MinTIBMonths, l.Notes,
		time.Now().UTC(), l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lender %s", l.ID)
	}
	return checkRowsAffected(res, "lender", l.ID)
}

func (s *SQLiteStore) DeleteLender(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lenders WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete lender %s", id)
	}
	return checkRowsAffected(res, "lender", id)
}

func scanLenderRow(row rowScanner) (*model.Lender, error) {
	var l model.Lender
	var industries, states sql.NullString
	err := row.Scan(&l.ID, &l.Name, &l.ContactEmail, &l.ContactPhone,
		&l.MinAmount, &l.MaxAmount, &industries, &states,
		&l.MinCreditScore, &l.MinTIBMonths, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if industries.Valid {
		if err := json.Unmarshal([]byte(industries.String), &l.Industries); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lender industries")
		}
	}
	if states.Valid {
		if err := json.Unmarshal([]byte(states.String), &l.States); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lender states")
		}
	}
	return &l, nil
}

func (s *SQLiteStore) GetLender(ctx context.Context, id string) (*model.Lender, error) {
	l, err := scanLenderRow(s.db.QueryRowContext(ctx,
		`SELECT `+lenderColumns+` FROM lenders WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get lender %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLenders(ctx context.Context) ([]model.Lender, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lenderColumns+` FROM lenders ORDER BY name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lenders")
	}
	defer rows.Close()

	var out []model.Lender
	for rows.Next() {
		l, err := scanLenderRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lender")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lenders iterate")
}

func (s *SQLiteStore) ReplaceLenderMatches(ctx context.Context, conversationID string, matches []model.LenderMatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace matches begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM lender_matches WHERE conversation_id = ?`, conversationID); err != nil {
		return eris.Wrap(err, "sqlite: replace matches delete")
	}

	now := time.Now().UTC()
	for _, m := range matches {
		id := m.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lender_matches (id, conversation_id, lender_name, qualified, tier, position, match_score, max_amount, factor_rate, term_months, is_preferred, blocking_reason, requirements, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, conversationID, m.LenderName, m.Qualified, m.Tier, m.Position,
			m.MatchScore, m.MaxAmount, m.FactorRate, m.TermMonths,
			m.IsPreferred, m.BlockingReason, nullJSON(m.Requirements), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert lender match %s", m.LenderName)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: replace matches commit")
}

func scanMatchRow(row rowScanner) (*model.LenderMatch, error) {
	var m model.LenderMatch
	var requirements sql.NullString
	err := row.Scan(&m.ID, &m.ConversationID, &m.LenderName, &m.Qualified,
		&m.Tier, &m.Position, &m.MatchScore, &m.MaxAmount, &m.FactorRate,
		&m.TermMonths, &m.IsPreferred, &m.BlockingReason, &requirements, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if requirements.Valid {
		m.Requirements = json.RawMessage(requirements.String)
	}
	return &m, nil
}

func (s *SQLiteStore) ListLenderMatches(ctx context.Context, conversationID string, qualifiedOnly bool) ([]model.LenderMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM lender_matches WHERE conversation_id = ?`
	if qualifiedOnly {
		query += ` AND qualified = 1`
	}
	query += ` ORDER BY tier ASC, match_score DESC`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lender matches")
	}
	defer rows.Close()

	var out []model.LenderMatch
	for rows.Next() {
		m, err := scanMatchRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lender match")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lender matches iterate")
}

func (s *SQLiteStore) TopLenderMatch(ctx context.Context, conversationID string) (*model.LenderMatch, error) {
	m, err := scanMatchRow(s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM lender_matches
		 WHERE conversation_id = ? AND qualified = 1
		 ORDER BY tier ASC, match_score DESC LIMIT 1`,
		conversationID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: top lender match")
	}
	return m, nil
}

func (s *SQLiteStore) EnqueueJob(ctx context.Context, jobType model.JobType, conversationID string, input []byte) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_queue (id, job_type, conversation_id, input_data, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'queued', ?, ?)`,
		id, string(jobType), conversationID, nullJSON(input), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: enqueue job")
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

func (s *SQLiteStore) CompleteJob(ctx context.Context, conversationID string, jobType model.JobType, result []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_queue SET status = 'completed', result_data = ?, updated_at = ?
		 WHERE id = (
		   SELECT id FROM job_queue
		   WHERE conversation_id = ? AND job_type = ? AND status IN ('processing', 'queued')
		   ORDER BY created_at DESC LIMIT 1
		 )`,
		nullJSON(result), time.Now().UTC(), conversationID, string(jobType),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: complete job %s/%s", conversationID, jobType)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: complete job rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) FailJob(ctx context.Context, conversationID string, jobType model.JobType, errMsg string) (bool, error) {
	resultData, _ := json.Marshal(map[string]string{"error": errMsg})

	res, err := s.db.ExecContext(ctx,
		`UPDATE job_queue SET status = 'failed', result_data = ?, updated_at = ?
		 WHERE id = (
		   SELECT id FROM job_queue
		   WHERE conversation_id = ? AND job_type = ? AND status IN ('processing', 'queued')
		   ORDER BY created_at DESC LIMIT 1
		 )`,
		string(resultData), time.Now().UTC(), conversationID, string(jobType),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: fail job %s/%s", conversationID, jobType)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: fail job rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, job_type, conversation_id, input_data, status, result_data, created_at, updated_at FROM job_queue WHERE 1=1`
	var args []any

	if filter.ConversationID != "" {
		query += ` AND conversation_id = ?`
		args = append(args, filter.ConversationID)
	}
	if filter.Type != "" {
		query += ` AND job_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		var j model.Job
		var input, result sql.NullString
		if err := rows.Scan(&j.ID, &j.Type, &j.ConversationID, &input,
			&j.Status, &result, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		if input.Valid {
			j.InputData = json.RawMessage(input.String)
		}
		if result.Valid {
			j.ResultData = json.RawMessage(result.String)
		}
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) InsertCSVImport(ctx context.Context, imp model.CSVImport) (*model.CSVImport, error) {
	if imp.ID == "" {
		imp.ID = uuid.New().String()
	}
	imp.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO csv_imports (id, filename, total_rows, created_count, failed_count, skipped_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.Filename, imp.TotalRows, imp.CreatedCount, imp.FailedCount,
		imp.SkippedCount, imp.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert csv import")
	}
	return &imp, nil
}

func (s *SQLiteStore) ListCSVImports(ctx context.Context, limit int) ([]model.CSVImport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, total_rows, created_count, failed_count, skipped_count, created_at
		 FROM csv_imports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list csv imports")
	}
	defer rows.Close()

	var out []model.CSVImport
	for rows.Next() {
		var imp model.CSVImport
		if err := rows.Scan(&imp.ID, &imp.Filename, &imp.TotalRows,
			&imp.CreatedCount, &imp.FailedCount, &imp.SkippedCount, &imp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan csv import")
		}
		out = append(out, imp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list csv imports iterate")
}

func (s *SQLiteStore) GetCSVImport(ctx context.Context, id string) (*model.CSVImport, error) {
	var imp model.CSVImport
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, total_rows, created_count, failed_count, skipped_count, created_at
		 FROM csv_imports WHERE id = ?`, id,
	).Scan(&imp.ID, &imp.Filename, &imp.TotalRows, &imp.CreatedCount,
		&imp.FailedCount, &imp.SkippedCount, &imp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get csv import %s", id)
	}
	return &imp, nil
}

func (s *SQLiteStore) ListImportConversations(ctx context.Context, importID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE csv_import_id = ? ORDER BY sequence_num ASC`, importID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list import conversations")
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversationRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan import conversation")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list import conversations iterate")
}

func (s *SQLiteStore) InsertChatMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_chat_messages (id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert chat message")
	}
	return &m, nil
}

func (s *SQLiteStore) ListChatMessages(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM ai_chat_messages WHERE conversation_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list chat messages")
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chat message")
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list chat messages iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ConversationsByState: map[string]int64{},
		JobsByStatus:         map[string]int64{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM conversations GROUP BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats conversations")
	}
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan conversation stats")
		}
		stats.ConversationsByState[state] = n
		stats.TotalConversations += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats conversations iterate")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM job_queue GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats jobs")
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan job stats")
		}
		stats.JobsByStatus[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats jobs iterate")
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&stats.TotalMessages); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats messages")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.TotalDocuments); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats documents")
	}

	return stats, nil
}

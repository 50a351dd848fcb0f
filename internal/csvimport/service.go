package csvimport

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/crestfund/lead-crm/internal/fields"
	"github.com/crestfund/lead-crm/internal/model"
)

// Creator inserts one lead per usable CSV row.
type Creator interface {
	CreateImported(ctx context.Context, payload map[string]any, importID string) (*model.Conversation, error)
}

// Store is the slice of persistence the importer needs.
type Store interface {
	InsertCSVImport(ctx context.Context, imp model.CSVImport) (*model.CSVImport, error)
	ListCSVImports(ctx context.Context, limit int) ([]model.CSVImport, error)
	GetCSVImport(ctx context.Context, id string) (*model.CSVImport, error)
	ListImportConversations(ctx context.Context, importID string) ([]model.Conversation, error)
}

// Service turns exported spreadsheets into leads. Header names are matched
// fuzzily onto the canonical field schema; unmatched columns are ignored.
type Service struct {
	store   Store
	creator Creator
}

func NewService(st Store, creator Creator) *Service {
	return &Service{store: st, creator: creator}
}

// Import reads a CSV export and creates one conversation per row. Row
// failures are counted, never fatal; rows with no usable cells are skipped.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) (*model.CSVImport, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "csvimport: read upload")
	}
	raw = toUTF8(raw)

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "csvimport: read header row")
	}

	columns := make([]*fields.Field, len(header))
	matchedAny := false
	for i, h := range header {
		if f, ok := fields.MatchHeader(h); ok {
			columns[i] = f
			matchedAny = true
		}
	}
	if !matchedAny {
		return nil, eris.New("csvimport: no header matched a known field")
	}

	importID := uuid.New().String()
	imp := model.CSVImport{ID: importID, Filename: filename}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			imp.TotalRows++
			imp.FailedCount++
			zap.L().Warn("csvimport: unreadable row skipped", zap.Int("row", imp.TotalRows), zap.Error(err))
			continue
		}
		imp.TotalRows++

		payload := rowPayload(columns, record)
		if len(payload) == 0 {
			imp.SkippedCount++
			continue
		}

		if _, err := s.creator.CreateImported(ctx, payload, importID); err != nil {
			imp.FailedCount++
			zap.L().Warn("csvimport: row rejected",
				zap.Int("row", imp.TotalRows),
				zap.String("filename", filename),
				zap.Error(err))
			continue
		}
		imp.CreatedCount++
	}

	return s.store.InsertCSVImport(ctx, imp)
}

func rowPayload(columns []*fields.Field, record []string) map[string]any {
	payload := make(map[string]any)
	for i, cell := range record {
		if i >= len(columns) || columns[i] == nil {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if _, seen := payload[columns[i].Canonical]; seen {
			continue
		}
		payload[columns[i].Canonical] = cell
	}
	return payload
}

// toUTF8 passes valid UTF-8 through (minus any BOM) and re-decodes anything
// else as windows-1252, the usual culprit in spreadsheet exports.
func toUTF8(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data
	}

	enc, err := htmlindex.Get("windows-1252")
	if err != nil {
		return data
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		zap.L().Warn("csvimport: charset decode failed, using raw bytes", zap.Error(err))
		return data
	}
	return decoded
}

// History lists past imports, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]model.CSVImport, error) {
	return s.store.ListCSVImports(ctx, limit)
}

// Get returns one import record, nil when unknown.
func (s *Service) Get(ctx context.Context, id string) (*model.CSVImport, error) {
	return s.store.GetCSVImport(ctx, id)
}

// Conversations lists the leads created by an import.
func (s *Service) Conversations(ctx context.Context, importID string) ([]model.Conversation, error) {
	return s.store.ListImportConversations(ctx, importID)
}

package documents

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestfund/lead-crm/internal/hub"
	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/internal/storage"
)

type fakeDocStore struct {
	conversation *model.Conversation
	docs         map[string]*model.Document
	insertErr    error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		conversation: &model.Conversation{ID: "conv-1"},
		docs:         map[string]*model.Document{},
	}
}

func (f *fakeDocStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	if f.conversation != nil && f.conversation.ID == id {
		return f.conversation, nil
	}
	return nil, nil
}

func (f *fakeDocStore) InsertDocument(_ context.Context, d model.Document) (*model.Document, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	d.ID = "doc-1"
	f.docs[d.ID] = &d
	return &d, nil
}

func (f *fakeDocStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	return d, nil
}

func (f *fakeDocStore) ListDocuments(_ context.Context, _ string) ([]model.Document, error) {
	var out []model.Document
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDocStore) DeleteDocument(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return eris.Errorf("document not found: %s", id)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocStore) TouchConversation(_ context.Context, _ string) error {
	return nil
}

type fakeNotifier struct {
	events []hub.Event
}

func (f *fakeNotifier) NotifyRoom(conversationID string, event hub.Event) {
	event.ConversationID = conversationID
	f.events = append(f.events, event)
}

func (f *fakeNotifier) NotifyAll(event hub.Event) {
	f.events = append(f.events, event)
}

func newTestService(t *testing.T, fs *fakeDocStore, n *fakeNotifier) (*Service, storage.ObjectStore) {
	t.Helper()
	objects, err := storage.NewFilesystem(t.TempDir())
	require.NoError(t, err)
	return NewService(fs, objects, n, 0), objects
}

func TestUpload_WritesObjectAndRow(t *testing.T) {
	fs := newFakeDocStore()
	n := &fakeNotifier{}
	svc, objects := newTestService(t, fs, n)

	doc, err := svc.Upload(context.Background(), "conv-1", "march.pdf",
		"application/pdf", "bank_statement", 9, strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	assert.Equal(t, "march.pdf", doc.OriginalFilename)
	assert.True(t, strings.HasSuffix(doc.StoredFilename, ".pdf"))
	assert.True(t, strings.HasPrefix(doc.ObjectKey, "conv-1/"))
	assert.Equal(t, "bank_statement", doc.DocumentType)

	r, err := objects.Download(context.Background(), doc.ObjectKey)
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	r.Close() //nolint:errcheck
	assert.Equal(t, "pdf bytes", string(data))

	require.Len(t, n.events, 1)
	assert.Equal(t, hub.EventDocumentUploaded, n.events[0].Type)
	assert.Equal(t, "conv-1", n.events[0].ConversationID)
}

func TestUpload_RowFailureSweepsObject(t *testing.T) {
	fs := newFakeDocStore()
	fs.insertErr = eris.New("postgres: insert document")
	svc, _ := newTestService(t, fs, &fakeNotifier{})

	_, err := svc.Upload(context.Background(), "conv-1", "march.pdf",
		"application/pdf", "", 9, strings.NewReader("pdf bytes"))
	require.Error(t, err)

	listed, err := fs.ListDocuments(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestUpload_UnknownConversation(t *testing.T) {
	svc, _ := newTestService(t, newFakeDocStore(), &fakeNotifier{})

	_, err := svc.Upload(context.Background(), "missing", "x.pdf",
		"application/pdf", "", 1, strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversation not found")
}

func TestDelete_RowGoneObjectBestEffort(t *testing.T) {
	fs := newFakeDocStore()
	n := &fakeNotifier{}
	svc, _ := newTestService(t, fs, n)

	doc, err := svc.Upload(context.Background(), "conv-1", "march.pdf",
		"application/pdf", "", 9, strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	n.events = nil
	require.NoError(t, svc.Delete(context.Background(), doc.ID))

	_, err = svc.Get(context.Background(), doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again reports not found from the row, object state aside.
	err = svc.Delete(context.Background(), doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.Len(t, n.events, 1)
	assert.Equal(t, hub.EventDocumentDeleted, n.events[0].Type)
}

func TestOpen_StreamsBytes(t *testing.T) {
	fs := newFakeDocStore()
	svc, _ := newTestService(t, fs, &fakeNotifier{})

	doc, err := svc.Upload(context.Background(), "conv-1", "march.pdf",
		"application/pdf", "", 9, strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	got, r, err := svc.Open(context.Background(), doc.ID)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	assert.Equal(t, doc.ID, got.ID)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "pdf bytes", string(data))
}

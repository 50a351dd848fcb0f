// Package documents manages uploaded files for a conversation: object-store
// bytes plus a metadata row. The database row is authoritative; losing the
// object behind it is tolerated.
package documents

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/hub"
	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/internal/storage"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = eris.New("documents: not found")

// Store is the slice of persistence the service needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	InsertDocument(ctx context.Context, d model.Document) (*model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, conversationID string) ([]model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	TouchConversation(ctx context.Context, id string) error
}

// Service stores and serves conversation documents.
type Service struct {
	store     Store
	objects   storage.ObjectStore
	notifier  hub.Notifier
	signedTTL time.Duration
}

// NewService creates a documents service. signedTTL bounds download links.
func NewService(s Store, objects storage.ObjectStore, notifier hub.Notifier, signedTTL time.Duration) *Service {
	if signedTTL <= 0 {
		signedTTL = 15 * time.Minute
	}
	return &Service{store: s, objects: objects, notifier: notifier, signedTTL: signedTTL}
}

// Upload writes the bytes to the object store and records the metadata row.
func (s *Service) Upload(ctx context.Context, conversationID, originalFilename, mimeType, documentType string, size int64, r io.Reader) (*model.Document, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, eris.Errorf("documents: conversation not found: %s", conversationID)
	}

	stored := uuid.New().String() + path.Ext(originalFilename)
	key := conversationID + "/" + stored

	if err := s.objects.Upload(ctx, key, mimeType, r); err != nil {
		return nil, err
	}

	doc, err := s.store.InsertDocument(ctx, model.Document{
		ConversationID:   conversationID,
		StoredFilename:   stored,
		OriginalFilename: originalFilename,
		Size:             size,
		MimeType:         mimeType,
		DocumentType:     documentType,
		Bucket:           s.objects.Bucket(),
		ObjectKey:        key,
	})
	if err != nil {
		// Orphaned object; sweep it so the bucket does not accumulate
		// rows nothing references.
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			zap.L().Warn("documents: orphan cleanup failed",
				zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	if err := s.store.TouchConversation(ctx, conversationID); err != nil {
		zap.L().Warn("documents: touch conversation failed", zap.Error(err))
	}

	s.notifier.NotifyRoom(conversationID, hub.Event{
		Type:    hub.EventDocumentUploaded,
		Payload: doc,
	})

	return doc, nil
}

// Get returns a document's metadata.
func (s *Service) Get(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// List returns a conversation's documents, newest first.
func (s *Service) List(ctx context.Context, conversationID string) ([]model.Document, error) {
	return s.store.ListDocuments(ctx, conversationID)
}

// DownloadURL returns a time-limited direct link to the object.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.objects.SignedURL(doc.ObjectKey, s.signedTTL)
}

// Open streams the object bytes; the proxy fallback when signing is
// unavailable.
func (s *Service) Open(ctx context.Context, id string) (*model.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.objects.Download(ctx, doc.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, r, nil
}

// Delete removes the metadata row, then best-effort deletes the object.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}

	if err := s.objects.Delete(ctx, doc.ObjectKey); err != nil {
		zap.L().Warn("documents: object delete failed",
			zap.String("key", doc.ObjectKey), zap.Error(err))
	}

	s.notifier.NotifyRoom(doc.ConversationID, hub.Event{
		Type:    hub.EventDocumentDeleted,
		Payload: map[string]string{"id": id},
	})

	return nil
}

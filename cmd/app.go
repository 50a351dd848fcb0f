package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestfund/lead-crm/internal/aichat"
	"github.com/crestfund/lead-crm/internal/csvimport"
	"github.com/crestfund/lead-crm/internal/documents"
	"github.com/crestfund/lead-crm/internal/fcs"
	"github.com/crestfund/lead-crm/internal/hub"
	"github.com/crestfund/lead-crm/internal/jobs"
	"github.com/crestfund/lead-crm/internal/lead"
	"github.com/crestfund/lead-crm/internal/lender"
	"github.com/crestfund/lead-crm/internal/messaging"
	"github.com/crestfund/lead-crm/internal/ocr"
	"github.com/crestfund/lead-crm/internal/storage"
	"github.com/crestfund/lead-crm/internal/store"
	"github.com/crestfund/lead-crm/internal/submission"
	"github.com/crestfund/lead-crm/pkg/anthropic"
	"github.com/crestfund/lead-crm/pkg/twilio"
)

// localDocumentsDir is the filesystem fallback when no GCS bucket is set.
const localDocumentsDir = "data/documents"

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("database URL is required (CRM_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// disabledCarrier stands in when no Twilio credentials are configured.
// Outbound sends settle as failed rather than erroring the request.
type disabledCarrier struct{}

func (disabledCarrier) SendSMS(context.Context, twilio.SendRequest) (*twilio.SendResponse, error) {
	return nil, eris.New("sms dispatch is not configured")
}

// app is the wired service graph behind both the API server and the
// one-shot CLI commands.
type app struct {
	store       store.Store
	hub         *hub.Hub
	leads       *lead.Manager
	messages    *messaging.Service
	documents   *documents.Service
	fcs         *fcs.Service
	lenders     *lender.Service
	chat        *aichat.Service
	imports     *csvimport.Service
	queue       *jobs.Queue
	submissions *submission.Service
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initApp(ctx context.Context) (*app, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	var objects storage.ObjectStore
	if cfg.Storage.Bucket != "" {
		objects, err = storage.NewGCS(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsJSON)
	} else {
		zap.L().Info("no storage bucket configured, using local document store",
			zap.String("dir", localDocumentsDir))
		objects, err = storage.NewFilesystem(localDocumentsDir)
	}
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	var carrier twilio.Client = disabledCarrier{}
	if cfg.Twilio.AccountSID != "" {
		carrier = twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	}

	extractor, err := ocr.NewExtractor(cfg.OCR, cfg.FCS)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	var llm anthropic.Client
	if cfg.Anthropic.Key != "" {
		llm = anthropic.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("no anthropic key configured, analysis reports fall back to templates")
	}

	var qualifier lender.Qualifier
	if cfg.Qualify.BaseURL != "" {
		qualifier = lender.NewHTTPQualifier(cfg.Qualify.BaseURL, cfg.Qualify.Key,
			time.Duration(cfg.Qualify.TimeoutSecs)*time.Second)
	}

	h := hub.New(nil)
	leads := lead.NewManager(st)
	docs := documents.NewService(st, objects, h,
		time.Duration(cfg.Storage.SignedURLMins)*time.Minute)

	a := &app{
		store:     st,
		hub:       h,
		leads:     leads,
		messages:  messaging.NewService(st, carrier, h, cfg.Twilio.FromNumber),
		documents: docs,
		fcs:       fcs.NewService(st, docs, extractor, llm, h, cfg.FCS, cfg.Anthropic),
		lenders:   lender.NewService(st, qualifier, h),
		chat:      aichat.NewService(st, llm, cfg.Chat, cfg.Anthropic),
		imports:   csvimport.NewService(st, leads),
		queue:     jobs.NewQueue(st),
	}
	if cfg.Submission.FTPHost != "" {
		a.submissions = submission.NewService(st, submission.NewFTPUploader(cfg.Submission))
	}
	return a, nil
}

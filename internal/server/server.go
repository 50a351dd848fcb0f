package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
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
	"github.com/crestfund/lead-crm/internal/store"
	"github.com/crestfund/lead-crm/internal/submission"
)

// Server wires the domain services onto the HTTP surface.
type Server struct {
	store       store.Store
	leads       *lead.Manager
	messages    *messaging.Service
	documents   *documents.Service
	fcs         *fcs.Service
	lenders     *lender.Service
	chat        *aichat.Service
	imports     *csvimport.Service
	queue       *jobs.Queue
	submissions *submission.Service
	hub         *hub.Hub
}

// Deps carries everything the server needs. Submissions may be nil when no
// FTP drop is configured; its route then returns 503.
type Deps struct {
	Store       store.Store
	Leads       *lead.Manager
	Messages    *messaging.Service
	Documents   *documents.Service
	FCS         *fcs.Service
	Lenders     *lender.Service
	Chat        *aichat.Service
	Imports     *csvimport.Service
	Queue       *jobs.Queue
	Submissions *submission.Service
	Hub         *hub.Hub
}

func New(deps Deps) *Server {
	return &Server{
		store:       deps.Store,
		leads:       deps.Leads,
		messages:    deps.Messages,
		documents:   deps.Documents,
		fcs:         deps.FCS,
		lenders:     deps.Lenders,
		chat:        deps.Chat,
		imports:     deps.Imports,
		queue:       deps.Queue,
		submissions: deps.Submissions,
		hub:         deps.Hub,
	}
}

// Router builds the full route tree.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/jobs", s.handleListJobs)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Post("/", s.handleCreateConversation)
			r.Post("/bulk-delete", s.handleBulkDelete)
			r.Get("/{id}", s.handleGetConversation)
			r.Put("/{id}", s.handleUpdateConversation)
			r.Get("/{id}/messages", s.handleListMessages)
			r.Post("/{id}/messages", s.handleSendMessage)
		})

		r.Post("/messages/webhook/receive", s.handleInboundWebhook)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", s.handleUploadDocument)
			r.Get("/download/{id}", s.handleDownloadDocument)
			r.Get("/{conversationID}", s.handleListDocuments)
			r.Delete("/{id}", s.handleDeleteDocument)
		})

		r.Route("/fcs", func(r chi.Router) {
			r.Post("/trigger/{conversationID}", s.handleTriggerFCS)
			r.Get("/results/{conversationID}", s.handleGetFCS)
			r.Get("/results/{conversationID}/history", s.handleFCSHistory)
			r.Post("/results", s.handleSubmitFCSResult)
			r.Delete("/results/{id}", s.handleDeleteFCSResult)
		})

		r.Route("/lenders", func(r chi.Router) {
			r.Get("/", s.handleListLenders)
			r.Post("/", s.handleCreateLender)
			r.Put("/{id}", s.handleUpdateLender)
			r.Delete("/{id}", s.handleDeleteLender)

			r.Post("/qualify/{conversationID}", s.handleQualify)
			r.Get("/matches/{conversationID}", s.handleQualifiedMatches)
			r.Get("/matches/{conversationID}/all", s.handleAllMatches)
			r.Get("/recommendation/{conversationID}", s.handleRecommendation)
			r.Post("/matches", s.handleSubmitMatches)
			r.Post("/qualification-complete/{conversationID}", s.handleQualificationComplete)
			r.Post("/submissions/{conversationID}", s.handleSubmitPacket)
		})

		r.Route("/csv-import", func(r chi.Router) {
			r.Post("/upload", s.handleCSVUpload)
			r.Get("/history", s.handleCSVHistory)
			r.Get("/{importID}", s.handleCSVImport)
			r.Get("/{importID}/conversations", s.handleCSVConversations)
		})

		r.Post("/ai/chat", s.handleChat)
		r.Get("/ai/chat/{conversationID}", s.handleChatHistory)
	})

	r.Get("/ws", s.hub.ServeWS)
	return r
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

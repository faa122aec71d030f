package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/davidtorcivia/stifle-sub001/internal/api/http/handler"
	"github.com/davidtorcivia/stifle-sub001/internal/api/http/middleware"
	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router wires handlers and middleware into the HTTP API.
type Router struct {
	syncService    handler.SyncService
	scoreService   handler.ScoreService
	contextManager model.ContextManager
	pinger         Pinger
	loc            *time.Location
	logger         *logger.Logger
}

// New creates a new Router instance. loc is the scoring zone; date parameters
// are interpreted in it.
func New(
	syncService handler.SyncService,
	scoreService handler.ScoreService,
	contextManager model.ContextManager,
	pinger Pinger,
	loc *time.Location,
	logger *logger.Logger,
) *Router {
	return &Router{
		syncService:    syncService,
		scoreService:   scoreService,
		contextManager: contextManager,
		pinger:         pinger,
		loc:            loc,
		logger:         logger,
	}
}

// Register builds the route table. Every /api/v1 route runs behind the
// logging and identity middleware; /healthz stays open for probes.
func (r *Router) Register() http.Handler {
	m := mux.NewRouter()

	logging := middleware.NewLogging(r.logger)
	identity := middleware.NewIdentity(r.contextManager, r.logger)

	m.HandleFunc("/healthz", r.health).Methods(http.MethodGet)

	api := m.PathPrefix("/api/v1").Subrouter()
	api.Use(logging.Handle)
	api.Use(identity.Handle)

	syncHandler := handler.NewSync(r.syncService, r.contextManager, r.logger)
	api.HandleFunc("/sync", syncHandler.ProcessRound).Methods(http.MethodPost)
	api.HandleFunc("/status", syncHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/events", syncHandler.Events).Methods(http.MethodGet)

	scoreHandler := handler.NewScore(r.scoreService, r.contextManager, r.loc, r.logger)
	api.HandleFunc("/scores", scoreHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/scores/recompute", scoreHandler.Recompute).Methods(http.MethodPost)

	return m
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.pinger.Ping(req.Context()); err != nil {
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

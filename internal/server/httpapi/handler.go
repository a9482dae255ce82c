// Package httpapi exposes the relay's HTTP surface: account endpoints,
// history paging and clearing, the live channel upgrade and metrics.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/metrics"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
)

const (
	RegisterPath = "/auth/register"
	LoginPath    = "/auth/login"
	RefreshPath  = "/auth/refresh"
	MessagesPath = "/chat/messages"
	LivePath     = "/ws/chat"
	MetricsPath  = "/metrics"
	HealthPath   = "/healthz"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type UserService interface {
	Register(ctx context.Context, username string, password []byte) (*services.TokenPair, error)
	Login(ctx context.Context, username string, password []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(accessToken string) (*auth.Claims, error)
}

type MessageService interface {
	Page(ctx context.Context, page, limit int) (*services.Page, error)
	Clear(ctx context.Context) (int64, error)
}

// Broadcaster notifies live clients that the history was cleared.
type Broadcaster interface {
	BroadcastCleared()
}

type Handler struct {
	users    UserService
	messages MessageService
	live     http.Handler
	notifier Broadcaster
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// NewHandler wires the services into a router. live serves the WebSocket
// upgrade and notifier receives clear events; both are usually the hub.
func NewHandler(us UserService, ms MessageService, live http.Handler, notifier Broadcaster, m *metrics.Metrics, l logging.Logger) *Handler {
	return &Handler{
		users:    us,
		messages: ms,
		live:     live,
		notifier: notifier,
		metrics:  m,
		logger:   l.With("module", "http_api"),
	}
}

// Router returns the routes of the relay.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.instrument)

	r.HandleFunc(RegisterPath, h.register).Methods(http.MethodPost)
	r.HandleFunc(LoginPath, h.login).Methods(http.MethodPost)
	r.HandleFunc(RefreshPath, h.refresh).Methods(http.MethodPost)

	r.Handle(MessagesPath, h.requireAuth(http.HandlerFunc(h.listMessages))).Methods(http.MethodGet)
	r.Handle(MessagesPath, h.requireAuth(http.HandlerFunc(h.clearMessages))).Methods(http.MethodDelete)

	r.Handle(LivePath, h.live).Methods(http.MethodGet)
	r.Handle(MetricsPath, h.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
	return r
}

// Package audit provides middleware for auditing admin mutations
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/guard"
)

// Config holds the configuration for the audit middleware
type Config struct {
	// Source names the component emitting the events
	Source string
	// Sink receives every audit event. Defaults to a slog sink.
	Sink Sink
	// Methods restricts auditing to these HTTP methods. Defaults to the mutating ones.
	Methods []string
}

// Sink receives audit events
type Sink interface {
	Record(ctx context.Context, event AuditEvent)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, event AuditEvent)

func (f SinkFunc) Record(ctx context.Context, event AuditEvent) { f(ctx, event) }

// Middleware handles HTTP request auditing
type Middleware struct {
	config  Config
	methods map[string]bool
}

// NewMiddleware creates a new audit middleware instance
func NewMiddleware(config Config) *Middleware {
	if config.Source == "" {
		config.Source = "admin-dashboard"
	}
	if config.Sink == nil {
		config.Sink = LogSink(slog.Default())
	}
	if len(config.Methods) == 0 {
		config.Methods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	}

	methods := make(map[string]bool, len(config.Methods))
	for _, m := range config.Methods {
		methods[m] = true
	}
	return &Middleware{config: config, methods: methods}
}

// AuditEvent represents an audit event
type AuditEvent struct {
	Source    string
	UserID    uuid.UUID
	Role      string
	URI       string
	Method    string
	Status    int
	Duration  time.Duration
	Message   string
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// Handler audits requests that pass through it. The actor is taken from the
// auth state a route guard stored on the request context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.methods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		event := AuditEvent{
			Source:    m.config.Source,
			URI:       r.RequestURI,
			Method:    r.Method,
			Timestamp: time.Now(),
		}
		if st, ok := guard.StateFromContext(r.Context()); ok {
			if st.User != nil {
				event.UserID = st.User.ID
			}
			if st.Role != nil {
				event.Role = st.Role.Name
			}
		} else {
			event.Message = "no auth state"
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event.Status = ww.Status()
		if event.Status == 0 {
			event.Status = http.StatusOK
		}
		event.Duration = time.Since(event.Timestamp)
		m.config.Sink.Record(r.Context(), event)
	})
}

// LogSink writes audit events to logger
func LogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(ctx context.Context, e AuditEvent) {
		attrs := []any{
			"source", e.Source,
			"method", e.Method,
			"uri", e.URI,
			"status", e.Status,
			"duration", e.Duration,
		}
		if e.UserID != uuid.Nil {
			attrs = append(attrs, "user_id", e.UserID)
		}
		if e.Role != "" {
			attrs = append(attrs, "role", e.Role)
		}
		if e.Message != "" {
			attrs = append(attrs, "message", e.Message)
		}
		if len(e.Metadata) > 0 {
			attrs = append(attrs, "metadata", e.Metadata)
		}
		logger.InfoContext(ctx, "Admin audit", attrs...)
	})
}

// WithMetadata adds metadata to the audit event
func (e AuditEvent) WithMetadata(key string, value interface{}) AuditEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

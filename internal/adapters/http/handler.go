package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/farum-triage/internal/app/conversation"
	"github.com/PabloGalante/farum-triage/internal/app/feedback"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	svc      *conversation.Service
	feedback *feedback.Service
	metrics  *observability.Metrics
	checks   []HealthCheck
	now      func() time.Time
}

func NewServer(svc *conversation.Service, fb *feedback.Service, m *observability.Metrics, checks ...HealthCheck) http.Handler {
	s := &Server{svc: svc, feedback: fb, metrics: m, checks: checks, now: time.Now}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", m.Handler())

	// /chat → one conversation turn (POST)
	mux.HandleFunc("/chat", s.handleChat)

	// /feedback → intervention outcome (POST)
	mux.HandleFunc("/feedback", s.handleFeedback)

	// /sessions → create session (POST)
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}            → GET: session + transcript, DELETE: close
	// /sessions/{id}/deescalate → POST: lower crisis level
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	// /users/{id}/profile     → GET
	// /users/{id}/preferences → PUT
	mux.HandleFunc("/users/", s.handleUsers)

	return chainMiddlewares(mux,
		withRecover,
		withMetrics(m),
		withLogging,
		withRequestID,
		withCORS,
	)
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleTurn(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleRecordFeedback(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id} or /sessions/{id}/deescalate
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := splitID(r.URL.Path, "/sessions/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, domain.SessionID(id))
		case http.MethodDelete:
			s.handleCloseSession(w, r, domain.SessionID(id))
		default:
			methodNotAllowed(w)
		}
	case rest == "deescalate":
		switch r.Method {
		case http.MethodPost:
			s.handleDeescalate(w, r, domain.SessionID(id))
		default:
			methodNotAllowed(w)
		}
	default:
		http.NotFound(w, r)
	}
}

// /users/{id}/profile or /users/{id}/preferences
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := splitID(r.URL.Path, "/users/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch rest {
	case "profile":
		switch r.Method {
		case http.MethodGet:
			s.handleGetProfile(w, r, domain.UserID(id))
		default:
			methodNotAllowed(w)
		}
	case "preferences":
		switch r.Method {
		case http.MethodPut:
			s.handleUpdatePreferences(w, r, domain.UserID(id))
		default:
			methodNotAllowed(w)
		}
	default:
		http.NotFound(w, r)
	}
}

// splitID parses prefix + "{id}" + optional "/{rest}".
func splitID(path, prefix string) (id, rest string, ok bool) {
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		if strings.Contains(parts[1], "/") {
			return "", "", false
		}
		rest = parts[1]
	}
	return parts[0], rest, true
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			observability.LoggerFromContext(ctx).Warn("health check failed", "check", c.Name, "error", err)
			status[c.Name] = "unavailable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[c.Name] = "ok"
	}
	writeJSON(w, code, status)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	in := conversation.TurnInput{
		SessionID: domain.SessionID(req.SessionID),
		UserID:    domain.UserID(req.UserID),
		Text:      req.Message,
	}
	if c := req.Context; c != nil {
		in.Preferences = c.Preferences
		in.Vitals = c.Vitals
		in.CulturalContext = c.CulturalContext
	}

	resp, err := s.svc.HandleTurn(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(resp))
}

func (s *Server) handleRecordFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.InterventionKey == "" {
		badRequest(w, "user_id and intervention_key are required")
		return
	}

	err := s.feedback.RecordOutcome(r.Context(),
		domain.UserID(req.UserID),
		domain.InterventionKey(req.InterventionKey),
		req.Outcome.Success,
		req.Feedback.Rating,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	out, err := s.svc.StartSession(r.Context(), conversation.StartSessionInput{
		UserID:    domain.UserID(req.UserID),
		SessionID: domain.SessionID(req.SessionID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := createSessionResponse{Session: toSessionResponse(out.Session, s.now())}
	if out.Welcome != nil {
		m := toMessageResponse(out.Welcome)
		resp.Welcome = &m
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	session, msgs, err := s.svc.GetSessionTimeline(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, getSessionResponse{
		Session:  toSessionResponse(session, s.now()),
		Messages: toMessagesResponse(msgs),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if err := s.svc.CloseSession(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeescalate(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req deescalateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Level == nil {
		badRequest(w, "level is required")
		return
	}

	session, err := s.svc.Deescalate(r.Context(), conversation.DeescalateInput{
		SessionID: id,
		Level:     *req.Level,
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session, s.now()))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, id domain.UserID) {
	p, err := s.svc.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request, id domain.UserID) {
	var patch conversation.PreferencesPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	p, err := s.svc.UpdatePreferences(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Anything unknown is a 500
// with a generic body; details only go to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrProfileNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrSessionOwnership):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "session belongs to another user"})
	case errors.Is(err, domain.ErrSessionExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session already exists"})
	case errors.Is(err, domain.ErrUserRequired),
		errors.Is(err, domain.ErrUnknownIntervention),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidDeescalation):
		badRequest(w, err.Error())
	default:
		internalError(w, r, err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"muhuratai/internal/ratelimit"
	"muhuratai/internal/security"
	"muhuratai/internal/usertoken"
	"muhuratai/internal/util"
	"muhuratai/pkg/localdb"
	"muhuratai/services/muhurat/internal/app"
)

const maxBodyBytes = 1 << 20

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (usertoken.Identity, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TokenVerifier  TokenVerifier
	CatalogLimiter *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	Alerter        *security.AuditAlerter
}

// Server exposes HTTP endpoints for the muhurat service.
type Server struct {
	app            *app.App
	tokenVerifier  TokenVerifier
	catalogLimiter *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	alerter        *security.AuditAlerter
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("token verifier is required")
	}
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		catalogLimiter: cfg.CatalogLimiter,
		trustedProxies: cfg.TrustedProxies,
		alerter:        cfg.Alerter,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.Chain("muhurat", s.mux, true)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// readings
	s.mux.Handle("/muhurat/readings", s.withCaller(s.handleReadings))
	s.mux.Handle("/muhurat/readings/", s.withCaller(s.handleReadingByID))
	s.mux.Handle("/muhurat/jobs/", s.withCaller(s.handleJob))

	// formats
	s.mux.HandleFunc("/report-formats", s.handleReportFormats)
	s.mux.Handle("/users/me/report-preference", s.withCaller(s.handleReportPreference))

	// embedded catalog
	s.mux.Handle("/catalog/", s.withCaller(s.handleCatalog))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": s.app.Mode()})
}

type callerHandler func(http.ResponseWriter, *http.Request, app.Caller)

func (s *Server) withCaller(next callerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "muhurat.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		identity, err := s.tokenVerifier.Verify(token)
		if err != nil {
			s.audit(r, "muhurat.authorize", "fail", "reason", "invalid_signature_or_claims")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		caller, err := s.app.CallerFor(r.Context(), identity.Subject, identity.Role)
		if err != nil {
			util.LoggerFromContext(r.Context()).Error("resolve caller failed", "user_id", identity.Subject, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.audit(r, "muhurat.authorize", "success", "user_id", caller.UserID, "admin", caller.Admin)
		next(w, r, caller)
	})
}

// /muhurat/readings
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request, caller app.Caller) {
	switch r.Method {
	case http.MethodPost:
		var in app.ReadingInput
		if !decodeJSON(w, r, &in) {
			return
		}
		reading, err := s.app.CreateReading(r.Context(), caller, in)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, reading)
	case http.MethodGet:
		page := queryInt(r, "page")
		pageSize := queryInt(r, "pageSize")
		history, err := s.app.ListHistory(r.Context(), caller, page, pageSize)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	default:
		methodNotAllowed(w)
	}
}

// /muhurat/readings/{id}, /muhurat/readings/{id}/payment or /muhurat/readings/{id}/report
func (s *Server) handleReadingByID(w http.ResponseWriter, r *http.Request, caller app.Caller) {
	path := strings.TrimPrefix(r.URL.Path, "/muhurat/readings/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "payment":
			s.handlePayment(w, r, caller, id)
		case "report":
			s.handleGenerate(w, r, caller, id)
		default:
			notFound(w, "not found")
		}
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	reading, err := s.app.GetReading(r.Context(), caller, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request, caller app.Caller, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var in app.PaymentInput
	if !decodeJSON(w, r, &in) {
		return
	}
	result, err := s.app.ConfirmPayment(r.Context(), caller, id, in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Job != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, caller app.Caller, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	reading, err := s.app.GenerateReport(r.Context(), caller, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// /muhurat/jobs/{id}
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request, caller app.Caller) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/muhurat/jobs/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	job, err := s.app.GetJob(r.Context(), caller, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleReportFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	formats, err := s.app.ListReportFormats(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": formats,
		"count": len(formats),
	})
}

type preferenceRequest struct {
	ReportFormatID string `json:"reportFormatId"`
}

func (s *Server) handleReportPreference(w http.ResponseWriter, r *http.Request, caller app.Caller) {
	switch r.Method {
	case http.MethodGet:
		view, err := s.app.GetReportPreference(r.Context(), caller)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		var req preferenceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		view, err := s.app.SetReportPreference(r.Context(), caller, req.ReportFormatID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	default:
		methodNotAllowed(w)
	}
}

// /catalog/{table}
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request, caller app.Caller) {
	table := strings.TrimPrefix(r.URL.Path, "/catalog/")
	if table == "" || strings.Contains(table, "/") {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		page, err := s.app.Catalog(r.Context(), table, queryInt(r, "limit"), queryInt(r, "offset"))
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	case http.MethodPost:
		if !s.allowRate(w, r, s.catalogLimiter, caller.UserID) {
			return
		}
		var row localdb.Row
		if !decodeJSON(w, r, &row) {
			return
		}
		id, err := s.app.AddCatalogRow(r.Context(), caller, table, row)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"table": table, "id": id})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeErrorCode(w, http.StatusBadRequest, err.Error(), "MUHURAT_INVALID_REQUEST")
	case errors.Is(err, app.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, "forbidden", "MUHURAT_FORBIDDEN")
	case errors.Is(err, app.ErrReadingNotFound):
		writeErrorCode(w, http.StatusNotFound, "reading not found", "MUHURAT_NOT_FOUND")
	case errors.Is(err, app.ErrJobNotFound):
		writeErrorCode(w, http.StatusNotFound, "job not found", "MUHURAT_JOB_NOT_FOUND")
	case errors.Is(err, app.ErrTableNotFound):
		writeErrorCode(w, http.StatusNotFound, "table not found", "CATALOG_TABLE_NOT_FOUND")
	case errors.Is(err, app.ErrNotPaid):
		writeErrorCode(w, http.StatusConflict, "payment required before report generation", "MUHURAT_NOT_PAID")
	case errors.Is(err, app.ErrRateLimited):
		s.audit(r, "muhurat.report.generate", "rate_limited")
		w.Header().Set("Retry-After", "60")
		writeErrorCode(w, http.StatusTooManyRequests, "too many report requests", "MUHURAT_RATE_LIMITED")
	case errors.Is(err, app.ErrGenerationFailed):
		util.LoggerFromContext(r.Context()).Error("report generation failed", "path", r.URL.Path, "err", err)
		writeErrorCode(w, http.StatusBadGateway, "report generation failed", "MUHURAT_GENERATION_FAILED")
	case errors.Is(err, app.ErrUnavailable):
		writeErrorCode(w, http.StatusServiceUnavailable, "feature not configured", "SYSTEM_UNAVAILABLE")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeErrorCode(w, http.StatusInternalServerError, "internal error", "SYSTEM_INTERNAL_ERROR")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(name)))
	if err != nil {
		return 0
	}
	return n
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorCode(w, status, msg, errorCodeForStatus(status, msg))
}

func writeErrorCode(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

func errorCodeForStatus(status int, msg string) string {
	switch strings.ToLower(strings.TrimSpace(msg)) {
	case "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case "invalid json body":
		return "MUHURAT_INVALID_REQUEST"
	case "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case "not found":
		return "SYSTEM_NOT_FOUND"
	}
	switch status {
	case http.StatusBadRequest:
		return "MUHURAT_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trustedProxies)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Debug("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	alert, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert observe failed", "event", event, "err", err)
		return
	}
	if alert.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", alert.Count,
			"threshold", alert.Threshold,
			"window", alert.Window.String(),
		)
	}
}

// allowRate keys the window by path, client IP and user; a nil limiter allows everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, userID string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies) + "|" + userID
	if limiter.Allow(key) {
		return true
	}
	s.audit(r, "muhurat.catalog.write", "rate_limited", "user_id", userID)
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many requests")
	return false
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"muhuratai/internal/security"
	"muhuratai/internal/usertoken"
	"muhuratai/internal/util"
	"muhuratai/pkg/domain"
	"muhuratai/pkg/store"
)

const maxBodyBytes = 1 << 20

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (usertoken.Identity, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	Store          store.Store
	TokenVerifier  TokenVerifier
	TrustedProxies *util.TrustedProxies
	Alerter        *security.AuditAlerter
}

// Server exposes the administrative batch-update endpoint.
type Server struct {
	store          store.Store
	tokenVerifier  TokenVerifier
	trustedProxies *util.TrustedProxies
	alerter        *security.AuditAlerter
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("token verifier is required")
	}
	s := &Server{
		store:          cfg.Store,
		tokenVerifier:  cfg.TokenVerifier,
		trustedProxies: cfg.TrustedProxies,
		alerter:        cfg.Alerter,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler. CORS is answered by the batch
// handler itself so preflight responses carry the permissive headers.
func (s *Server) Router() http.Handler {
	return util.Chain("admin", s.mux, false)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/functions/v1/batch-update", s.handleBatchUpdate)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type batchUpdateRequest struct {
	Table   string                `json:"table"`
	Updates []domain.RecordUpdate `json:"updates"`
}

func (s *Server) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	util.SetCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Any authorization failure, including a missing or bad token, is 403.
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "admin.batch_update.authorize", "fail", "reason", "missing_token")
		writeError(w, http.StatusForbidden, "Unauthorized: Admin access required")
		return
	}
	identity, err := s.tokenVerifier.Verify(token)
	if err != nil {
		s.audit(r, "admin.batch_update.authorize", "fail", "reason", "invalid_signature_or_claims")
		writeError(w, http.StatusForbidden, "Unauthorized: Admin access required")
		return
	}
	admin := strings.EqualFold(identity.Role, string(domain.RoleAdmin))
	if !admin {
		admin, err = s.store.IsAdmin(r.Context(), identity.Subject)
		if err != nil {
			util.LoggerFromContext(r.Context()).Error("admin check failed", "user_id", identity.Subject, "err", err)
			writeError(w, http.StatusInternalServerError, "admin check failed")
			return
		}
	}
	if !admin {
		s.audit(r, "admin.batch_update.authorize", "fail", "user_id", identity.Subject, "reason", "forbidden")
		writeError(w, http.StatusForbidden, "Unauthorized: Admin access required")
		return
	}
	s.audit(r, "admin.batch_update.authorize", "success", "user_id", identity.Subject)

	var req batchUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, "invalid json body")
		return
	}
	result, err := s.store.UpdateRecordsBatch(r.Context(), strings.TrimSpace(req.Table), req.Updates)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("batch update failed", "table", req.Table, "updates", len(req.Updates), "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	util.LoggerFromContext(r.Context()).Info("batch update applied", "table", result.Table, "updated", result.Updated, "user_id", identity.Subject)
	writeJSON(w, http.StatusOK, result)
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

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
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
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	alert, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert observe failed", "event", event, "err", err)
		return
	}
	if alert.Triggered {
		logger.Error("security_alert", "event", event, "ip", ip, "count", alert.Count, "threshold", alert.Threshold)
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"muhuratai/internal/usertoken"
	"muhuratai/pkg/domain"
	"muhuratai/pkg/store"
)

const testSecret = "admin-test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.SaveProfile(domain.Profile{ID: "ops", Email: "ops@example.com", Role: domain.RoleAdmin})
	mem.SaveProfile(domain.Profile{ID: "alice", Email: "alice@example.com", Role: domain.RoleUser})

	verifier, err := usertoken.NewVerifier(usertoken.Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	srv, err := New(Config{Store: mem, TokenVerifier: verifier})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, mem
}

func signToken(t *testing.T, subject, role string) string {
	t.Helper()
	now := time.Now()
	claims := usertoken.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	claims.AppMetadata.Role = role
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func postBatch(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, url+"/functions/v1/batch-update", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

var deactivateRoyal = batchUpdateRequest{
	Table:   store.TableFormats,
	Updates: []domain.RecordUpdate{{ID: "royal", Fields: map[string]any{"active": false}}},
}

func TestBatchUpdateAuthorization(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := map[string]string{
		"missing token": "",
		"garbage token": "not-a-jwt",
		"non-admin":     signToken(t, "alice", ""),
		"wrong secret": func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ops"}).SignedString([]byte("other"))
			return tok
		}(),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postBatch(t, ts.URL, token, deactivateRoyal)
			if resp.StatusCode != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", resp.StatusCode)
			}
			var body map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&body)
			if body["error"] == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestBatchUpdateAppliesForAdmins(t *testing.T) {
	ts, mem := newTestServer(t)

	for _, token := range []string{signToken(t, "ops", ""), signToken(t, "someone", "admin")} {
		resp := postBatch(t, ts.URL, token, deactivateRoyal)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var got domain.BatchResult
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if diff := cmp.Diff(domain.BatchResult{Table: store.TableFormats, Updated: 1}, got); diff != "" {
			t.Fatalf("result mismatch:\n%s", diff)
		}
	}
	formats, _ := mem.ListReportFormats(context.Background())
	for _, f := range formats {
		if f.ID == "royal" && f.Active {
			t.Fatalf("royal format must be inactive")
		}
	}
}

func TestBatchUpdateFailuresReturn500(t *testing.T) {
	ts, _ := newTestServer(t)
	token := signToken(t, "ops", "")

	resp := postBatch(t, ts.URL, token, batchUpdateRequest{Table: "users", Updates: []domain.RecordUpdate{{ID: "x", Fields: map[string]any{"email": "a"}}}})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("disallowed table: expected 500, got %d", resp.StatusCode)
	}
	resp = postBatch(t, ts.URL, token, batchUpdateRequest{Table: store.TableFormats, Updates: []domain.RecordUpdate{{ID: "royal", Fields: map[string]any{"owner": "x"}}}})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unknown column: expected 500, got %d", resp.StatusCode)
	}
}

func TestBatchUpdatePreflight(t *testing.T) {
	ts, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/functions/v1/batch-update", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing permissive CORS headers")
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("preflight must carry a request id")
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" || resp.Header.Get("Cache-Control") != "no-store" {
		t.Fatalf("missing security headers: %v", resp.Header)
	}
}

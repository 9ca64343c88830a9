package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/runs"
)

// TestInjectionPayloads_QueryField verifies that injection payloads in the
// query field are treated as opaque search text: accepted, echoed back only
// JSON-escaped, and never causing a panic or 500.
func TestInjectionPayloads_QueryField(t *testing.T) {
	payloads := []struct {
		name  string
		query string
	}{
		{"drop table", "'; DROP TABLE papers; --"},
		{"boolean tautology", "1 OR 1=1"},
		{"union select", "' UNION SELECT * FROM users --"},
		{"bobby tables", "Robert'); DROP TABLE students;--"},
		{"nested quotes", "'' OR ''='"},
		{"comment injection", "query/* comment */"},
		{"stacked queries", "'; EXEC xp_cmdshell('dir'); --"},
		{"shell metacharacters", "telehealth; rm -rf /"},
	}

	for _, tc := range payloads {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &scriptedRunner{}, runs.Config{})

			body, err := json.Marshal(map[string]string{"query": tc.query})
			require.NoError(t, err)

			rec := doRequest(s, http.MethodPost, "/api/v1/runs", body)
			require.Equal(t, http.StatusCreated, rec.Code)

			var resp startRunResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

			// The payload round-trips as plain data.
			getRec := doRequest(s, http.MethodGet, "/api/v1/runs/"+resp.RunID, nil)
			require.Equal(t, http.StatusOK, getRec.Code)

			var status runStatusResponse
			require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &status))
			assert.Equal(t, tc.query, status.Query)
		})
	}
}

// TestXSSPayloads_JSONEncoded verifies that script payloads in request
// fields come back JSON-encoded, with angle brackets escaped by the
// encoder, under an application/json content type.
func TestXSSPayloads_JSONEncoded(t *testing.T) {
	payload := `<script>alert("xss")</script>`

	s := newTestServer(t, &scriptedRunner{}, runs.Config{})

	body, err := json.Marshal(map[string]interface{}{
		"query":              "telehealth",
		"research_question":  payload,
		"inclusion_criteria": []string{payload},
	})
	require.NoError(t, err)

	rec := doRequest(s, http.MethodPost, "/api/v1/runs", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp startRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	getRec := doRequest(s, http.MethodGet, "/api/v1/runs/"+resp.RunID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.Equal(t, "application/json", getRec.Header().Get("Content-Type"))
	// encoding/json escapes < and > inside strings.
	assert.NotContains(t, getRec.Body.String(), "<script>")
}

// TestMaxQueryLength rejects oversized queries before they reach the
// pipeline.
func TestMaxQueryLength(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{}, runs.Config{})

	body, err := json.Marshal(map[string]string{"query": strings.Repeat("a", 10001)})
	require.NoError(t, err)

	rec := doRequest(s, http.MethodPost, "/api/v1/runs", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 10000")
}

// TestOversizedRequestBody verifies bodies beyond the limit do not reach
// the JSON decoder intact.
func TestOversizedRequestBody(t *testing.T) {
	s := newTestServer(t, &scriptedRunner{}, runs.Config{})

	// 2 MB of padding inside a JSON document; the limited reader truncates
	// it, so decoding fails with a 400 rather than an OOM or 500.
	huge := fmt.Sprintf(`{"query": "telehealth", "research_question": "%s"}`, strings.Repeat("x", 2<<20))
	rec := doRequest(s, http.MethodPost, "/api/v1/runs", []byte(huge))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestInvalidUUID_NotEchoed verifies that malformed run IDs are rejected
// without reflecting the raw input back to the client.
func TestInvalidUUID_NotEchoed(t *testing.T) {
	malicious := `<img src=x onerror=alert(1)>`

	s := newTestServer(t, &scriptedRunner{}, runs.Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/bogus-id", nil)
	req.URL.Path = "/api/v1/runs/" + malicious
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), malicious)
}

// TestWriteDomainError_NeverLeaksInternalDetails verifies that wrapped
// internal errors surface as generic messages only.
func TestWriteDomainError_NeverLeaksInternalDetails(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "not found",
			err:        fmt.Errorf("run lookup pipeline-7f3: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   "resource not found",
		},
		{
			name:       "invalid input",
			err:        fmt.Errorf("query blank: %w", domain.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid input",
		},
		{
			name:       "run active",
			err:        fmt.Errorf("run abc: %w", runs.ErrActive),
			wantStatus: http.StatusConflict,
			wantBody:   "in progress",
		},
		{
			name:       "run terminal",
			err:        fmt.Errorf("run abc: %w", runs.ErrTerminal),
			wantStatus: http.StatusConflict,
			wantBody:   "terminal state",
		},
		{
			name:       "rate limited",
			err:        fmt.Errorf("capacity: %w", domain.ErrRateLimited),
			wantStatus: http.StatusTooManyRequests,
			wantBody:   "too many active runs",
		},
		{
			name:       "service unavailable",
			err:        fmt.Errorf("no sources: %w", domain.ErrServiceUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "service unavailable",
		},
		{
			name:       "unknown error",
			err:        errors.New("pq: connection refused to 10.0.3.7:5432"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
			// The original error text must not leak.
			assert.NotContains(t, rec.Body.String(), "pipeline-7f3")
			assert.NotContains(t, rec.Body.String(), "10.0.3.7")
		})
	}
}

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/Phishtrap/internal/config"
	"github.com/BetterCallFirewall/Phishtrap/internal/extractor"
	"github.com/BetterCallFirewall/Phishtrap/internal/report"
	"github.com/BetterCallFirewall/Phishtrap/internal/schema"
	"github.com/BetterCallFirewall/Phishtrap/internal/scoring"
	"github.com/BetterCallFirewall/Phishtrap/internal/storage"
)

type fakeScorer struct {
	verdict *scoring.Verdict
	err     error
}

func (f *fakeScorer) Score(ctx context.Context, url string) (*scoring.Verdict, error) {
	if f.err != nil {
		return nil, f.err
	}
	v := *f.verdict
	v.URL = url
	return &v, nil
}

func newTestServer(scorer scorerI) *Server {
	cfg := &config.Config{}
	cfg.Web.ListenAddr = ":0"
	return NewServer(cfg, scorer, storage.NewMemoryStorage())
}

func postScan(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleScan(t *testing.T) {
	verdict := &scoring.Verdict{
		ID:                "v-1",
		Label:             scoring.LabelUnsafe,
		ProbabilitySafe:   0.08,
		ProbabilityUnsafe: 0.92,
		LinkRows:          3,
	}
	s := newTestServer(&fakeScorer{verdict: verdict})

	rec := postScan(t, s, `{"url":"https://evil.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got scoring.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, scoring.LabelUnsafe, got.Label)
	assert.Equal(t, "https://evil.example", got.URL)

	// вердикт попадает в историю
	stored, ok := s.storage.GetVerdict("v-1")
	require.True(t, ok)
	assert.Equal(t, "https://evil.example", stored.URL)
}

// TestHandleScan_FailureReasons каждая причина отказа различима для клиента
func TestHandleScan_FailureReasons(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
		wantStatus int
	}{
		{
			name:       "invalid url",
			err:        fmt.Errorf("%w: %q", scoring.ErrInvalidURL, "nope"),
			wantReason: ReasonInvalidURL,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "extraction unavailable",
			err:        fmt.Errorf("%w: timed out", extractor.ErrExtractionUnavailable),
			wantReason: ReasonExtractionUnavailable,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "bad report",
			err:        fmt.Errorf("%w: malformed json", report.ErrBadReport),
			wantReason: ReasonBadReport,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "schema mismatch",
			err:        fmt.Errorf("row 0: %w", &schema.SchemaMismatchError{Missing: []string{"url_entropy"}}),
			wantReason: ReasonSchemaMismatch,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown",
			err:        fmt.Errorf("disk on fire"),
			wantReason: "internal",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeScorer{err: tt.err})

			rec := postScan(t, s, `{"url":"https://a.example"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantReason, body["error"])
		})
	}
}

func TestHandleScan_BadRequests(t *testing.T) {
	s := newTestServer(&fakeScorer{verdict: &scoring.Verdict{ID: "x"}})

	rec := postScan(t, s, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scan", nil)
	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(&fakeScorer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthcheck", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"ok"}`, rec.Body.String())
}

func TestVerdictHistory(t *testing.T) {
	verdict := &scoring.Verdict{ID: "v-1", Label: scoring.LabelSafe}
	s := newTestServer(&fakeScorer{verdict: verdict})

	postScan(t, s, `{"url":"https://a.example"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verdicts", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []scoring.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "v-1", list[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/verdicts/v-1", nil)
	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/verdicts/missing", nil)
	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestStop_ClosesVerdictFeed остановка сервера закрывает топик вердиктов
func TestStop_ClosesVerdictFeed(t *testing.T) {
	s := newTestServer(&fakeScorer{verdict: &scoring.Verdict{ID: "v-1"}})

	ch := s.broker.Subscribe(VerdictsTopic)
	require.NoError(t, s.Stop())

	_, ok := <-ch
	assert.False(t, ok, "verdicts topic must be closed after Stop")
}

// TestCORS_Preflight preflight запрос не доходит до обработчика
func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(&fakeScorer{err: fmt.Errorf("must not be called")})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/scan", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/BetterCallFirewall/Phishtrap/internal/extractor"
	"github.com/BetterCallFirewall/Phishtrap/internal/report"
	"github.com/BetterCallFirewall/Phishtrap/internal/schema"
	"github.com/BetterCallFirewall/Phishtrap/internal/scoring"
)

// ScanRequest тело POST /api/v1/scan
type ScanRequest struct {
	URL string `json:"url"`
}

// коды причин отказа, различимые для пользователя
const (
	ReasonInvalidURL            = "invalid_url"
	ReasonExtractionUnavailable = "extraction_unavailable"
	ReasonBadReport             = "bad_report"
	ReasonSchemaMismatch        = "schema_mismatch"
)

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be json with a url field")
		return
	}

	verdict, err := s.scorer.Score(r.Context(), req.URL)
	if err != nil {
		reason, status := classifyError(err)
		log.Printf("❌ Scan %s failed: %s: %v", req.URL, reason, err)
		writeError(w, status, reason, err.Error())
		return
	}

	s.storage.StoreVerdict(verdict)
	s.broker.Publish(VerdictsTopic, verdict)

	log.Printf("✅ Scan %s: %s (unsafe %.2f)", verdict.URL, verdict.Label, verdict.ProbabilityUnsafe)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verdict)
}

func (s *Server) handleGetVerdicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.storage.GetAllVerdicts())
}

func (s *Server) handleGetVerdict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Path[len("/api/v1/verdicts/"):]
	verdict, ok := s.storage.GetVerdict(id)
	if !ok {
		http.Error(w, "Verdict not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verdict)
}

// classifyError переводит ошибку пайплайна в код причины.
// Никакая причина не схлопывается в generic failure: вызывающему
// нужно различать их без разбора внутренностей.
func classifyError(err error) (reason string, status int) {
	var mismatch *schema.SchemaMismatchError

	switch {
	case errors.Is(err, scoring.ErrInvalidURL):
		return ReasonInvalidURL, http.StatusUnprocessableEntity
	case errors.Is(err, extractor.ErrExtractionUnavailable):
		return ReasonExtractionUnavailable, http.StatusUnprocessableEntity
	case errors.Is(err, report.ErrBadReport):
		return ReasonBadReport, http.StatusUnprocessableEntity
	case errors.As(err, &mismatch):
		return ReasonSchemaMismatch, http.StatusUnprocessableEntity
	default:
		return "internal", http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, reason, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  reason,
		"detail": detail,
	})
}

package orchestrator

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Server exposes the extraction operations over HTTP. Caller identity
// is the opaque X-API-Key header; key issuance and verification belong
// to an upstream collaborator.
type Server struct {
	svc *Service
}

func NewServer(svc *Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ai/generate-pico", s.handleGeneratePICO)
	mux.HandleFunc("POST /api/ai/generate-summary", s.handleGenerateSummary)
	mux.HandleFunc("POST /api/ai/validate-field", s.handleValidateField)
	mux.HandleFunc("POST /api/ai/find-metadata", s.handleFindMetadata)
	mux.HandleFunc("POST /api/ai/extract-tables", s.handleExtractTables)
	mux.HandleFunc("POST /api/ai/analyze-image", s.handleAnalyzeImage)
	mux.HandleFunc("POST /api/ai/deep-analysis", s.handleDeepAnalysis)
	mux.HandleFunc("POST /api/ai/documents/{id}/index", s.handleIndexDocument)
	mux.HandleFunc("POST /api/ai/documents/{id}/query", s.handleQueryDocument)
	mux.HandleFunc("GET /api/ai/documents/{id}/status", s.handleDocumentStatus)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

type textRequest struct {
	DocumentID string `json:"document_id"`
	PDFText    string `json:"pdf_text"`
}

type validateFieldRequest struct {
	DocumentID string `json:"document_id"`
	FieldID    string `json:"field_id"`
	FieldValue string `json:"field_value"`
	PDFText    string `json:"pdf_text"`
}

type imageRequest struct {
	DocumentID  string `json:"document_id"`
	ImageBase64 string `json:"image_base64"`
	Prompt      string `json:"prompt"`
}

type analysisRequest struct {
	DocumentID string `json:"document_id"`
	PDFText    string `json:"pdf_text"`
	Prompt     string `json:"prompt"`
}

type indexRequest struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

type queryRequest struct {
	Question string `json:"question"`
}

// begin stamps the request with an id and extracts the caller key.
func begin(w http.ResponseWriter, r *http.Request) (callerID, requestID string) {
	requestID = uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	return r.Header.Get("X-API-Key"), requestID
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, requestID string, err error) {
	status := StatusFor(err)
	if status >= 500 {
		log.Error().Err(err).Str("request_id", requestID).Int("status", status).Msg("request failed")
	} else {
		log.Warn().Err(err).Str("request_id", requestID).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleGeneratePICO(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	pico, provider, err := s.svc.GeneratePICO(r.Context(), caller, req.PDFText)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("X-Provider", provider)
	writeJSON(w, http.StatusOK, pico)
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	summary, provider, err := s.svc.GenerateSummary(r.Context(), caller, req.PDFText)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("X-Provider", provider)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleValidateField(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	var req validateFieldRequest
	if !decode(w, r, &req) {
		return
	}
	fv, provider, err := s.svc.ValidateField(r.Context(), caller, req.FieldID, req.FieldValue, req.PDFText)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("X-Provider", provider)
	writeJSON(w, http.StatusOK, fv)
}

func (s *Server) handleFindMetadata(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	md, provider, err := s.svc.FindMetadata(r.Context(), caller, req.PDFText)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("X-Provider", provider)
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleExtractTables(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	ts, provider, err := s.svc.ExtractTables(r.Context(), caller, req.PDFText)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("X-Provider", provider)
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	var req imageRequest
	if !decode(w, r, &req) {
		return
	}
	image, mimeType, err := decodeImage(req.ImageBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image encoding"})
		return
	}
	analysis, provider, err := s.svc.AnalyzeImage(r.Context(), caller, image, mimeType, req.Prompt)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("X-Provider", provider)
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleDeepAnalysis(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	var req analysisRequest
	if !decode(w, r, &req) {
		return
	}
	text, provider, err := s.svc.DeepAnalysis(r.Context(), caller, req.PDFText, req.Prompt)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("X-Provider", provider)
	writeJSON(w, http.StatusOK, map[string]string{"analysis": text})
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	docID := r.PathValue("id")
	var req indexRequest
	if !decode(w, r, &req) {
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid content encoding"})
		return
	}
	store, err := s.svc.RegisterForCitations(r.Context(), caller, docID, content, req.Filename)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": docID,
		"store":       store,
		"state":       s.svc.CitationState(r.Context(), docID),
	})
}

func (s *Server) handleQueryDocument(w http.ResponseWriter, r *http.Request) {
	caller, reqID := begin(w, r)
	docID := r.PathValue("id")
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}
	ans, err := s.svc.QueryWithCitations(r.Context(), caller, docID, req.Question)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": docID,
		"state":       s.svc.CitationState(r.Context(), docID),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeImage accepts a raw base64 payload or a data URI. The MIME
// type comes from the URI when present; otherwise it is sniffed from
// the decoded bytes downstream.
func decodeImage(s string) ([]byte, string, error) {
	mimeType := ""
	if strings.HasPrefix(s, "data:") {
		head, rest, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", base64.CorruptInputError(0)
		}
		mimeType = strings.TrimSuffix(strings.TrimPrefix(head, "data:"), ";base64")
		s = rest
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", err
	}
	return raw, mimeType, nil
}

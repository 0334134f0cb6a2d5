package orchestrator

import (
	"context"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/aigateway/internal/dispatcher"
	"github.com/local/aigateway/internal/filesearch"
	"github.com/local/aigateway/internal/limiter"
	"github.com/local/aigateway/internal/metrics"
	"github.com/local/aigateway/internal/parser"
)

// DefaultMaxPayloadBytes is the pre-dispatch input ceiling.
const DefaultMaxPayloadBytes = 1 << 20

// Dispatcher is the provider fallback chain the service sends prompts to.
type Dispatcher interface {
	GenerateText(ctx context.Context, prompt string) (dispatcher.Result, error)
	GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (dispatcher.Result, error)
}

// Service runs the clinical extraction operations: admission control,
// prompt construction, provider dispatch and response parsing.
type Service struct {
	dispatch   Dispatcher
	limiter    *limiter.SlidingWindow
	citations  *filesearch.Manager
	maxPayload int
}

type ServiceOptions struct {
	Dispatcher      Dispatcher
	Limiter         *limiter.SlidingWindow
	Citations       *filesearch.Manager
	MaxPayloadBytes int
}

func NewService(opts ServiceOptions) *Service {
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if opts.Limiter == nil {
		opts.Limiter = limiter.New(limiter.Options{})
	}
	if opts.Citations == nil {
		opts.Citations = filesearch.NewManager(filesearch.Options{})
	}
	return &Service{
		dispatch:   opts.Dispatcher,
		limiter:    opts.Limiter,
		citations:  opts.Citations,
		maxPayload: opts.MaxPayloadBytes,
	}
}

// admit runs the pre-dispatch checks in a fixed order: caller identity,
// size ceiling, then the rate limiter. The size check comes first so an
// oversized request is rejected without consuming limiter capacity.
func (s *Service) admit(callerID string, payloadBytes int) error {
	if callerID == "" {
		return ErrMissingCaller
	}
	if payloadBytes > s.maxPayload {
		return &PayloadTooLargeError{Size: payloadBytes, Limit: s.maxPayload}
	}
	if !s.limiter.Admit(callerID) {
		metrics.IncRateLimited()
		return ErrRateLimited
	}
	return nil
}

func (s *Service) generate(ctx context.Context, op, prompt string) (dispatcher.Result, error) {
	start := time.Now()
	res, err := s.dispatch.GenerateText(ctx, prompt)
	if err != nil {
		metrics.IncOperation(op, "provider_error")
		return dispatcher.Result{}, err
	}
	log.Debug().
		Str("operation", op).
		Str("provider", res.Provider).
		Dur("duration", time.Since(start)).
		Msg("provider dispatch complete")
	return res, nil
}

// GeneratePICO extracts the six PICO-T elements from document text.
func (s *Service) GeneratePICO(ctx context.Context, callerID, docText string) (parser.PICO, string, error) {
	const op = "generate_pico"
	if err := s.admit(callerID, len(docText)); err != nil {
		return parser.PICO{}, "", err
	}
	res, err := s.generate(ctx, op, picoPrompt(docText))
	if err != nil {
		return parser.PICO{}, "", err
	}
	pico, err := parser.ParsePICO(res.Text)
	if err != nil {
		metrics.IncParseFailure(op)
		metrics.IncOperation(op, "parse_failure")
		return parser.PICO{}, res.Provider, err
	}
	metrics.IncOperation(op, "success")
	return pico, res.Provider, nil
}

// GenerateSummary produces a clinician-facing abstract of the document.
func (s *Service) GenerateSummary(ctx context.Context, callerID, docText string) (parser.Summary, string, error) {
	const op = "generate_summary"
	if err := s.admit(callerID, len(docText)); err != nil {
		return parser.Summary{}, "", err
	}
	res, err := s.generate(ctx, op, summaryPrompt(docText))
	if err != nil {
		return parser.Summary{}, "", err
	}
	text, err := parser.ValidateText(op, res.Text, 1)
	if err != nil {
		metrics.IncParseFailure(op)
		metrics.IncOperation(op, "parse_failure")
		return parser.Summary{}, res.Provider, err
	}
	metrics.IncOperation(op, "success")
	return parser.Summary{Summary: text}, res.Provider, nil
}

// ValidateField checks a user-entered field value against the document.
func (s *Service) ValidateField(ctx context.Context, callerID, fieldID, fieldValue, docText string) (parser.FieldValidation, string, error) {
	const op = "validate_field"
	if err := s.admit(callerID, len(docText)); err != nil {
		return parser.FieldValidation{}, "", err
	}
	res, err := s.generate(ctx, op, validateFieldPrompt(fieldID, fieldValue, docText))
	if err != nil {
		return parser.FieldValidation{}, "", err
	}
	fv, err := parser.ParseFieldValidation(res.Text)
	if err != nil {
		metrics.IncParseFailure(op)
		metrics.IncOperation(op, "parse_failure")
		return parser.FieldValidation{}, res.Provider, err
	}
	metrics.IncOperation(op, "success")
	return fv, res.Provider, nil
}

// FindMetadata extracts bibliographic identifiers. Absent identifiers
// are nil fields, never errors.
func (s *Service) FindMetadata(ctx context.Context, callerID, docText string) (parser.Metadata, string, error) {
	const op = "find_metadata"
	if err := s.admit(callerID, len(docText)); err != nil {
		return parser.Metadata{}, "", err
	}
	res, err := s.generate(ctx, op, metadataPrompt(docText))
	if err != nil {
		return parser.Metadata{}, "", err
	}
	md, err := parser.ParseMetadata(res.Text)
	if err != nil {
		metrics.IncParseFailure(op)
		metrics.IncOperation(op, "parse_failure")
		return parser.Metadata{}, res.Provider, err
	}
	metrics.IncOperation(op, "success")
	return md, res.Provider, nil
}

// ExtractTables transcribes the document's tables. No tables is a
// valid, empty result.
func (s *Service) ExtractTables(ctx context.Context, callerID, docText string) (parser.TableSet, string, error) {
	const op = "extract_tables"
	if err := s.admit(callerID, len(docText)); err != nil {
		return parser.TableSet{}, "", err
	}
	res, err := s.generate(ctx, op, tablesPrompt(docText))
	if err != nil {
		return parser.TableSet{}, "", err
	}
	ts, err := parser.ParseTables(res.Text)
	if err != nil {
		metrics.IncParseFailure(op)
		metrics.IncOperation(op, "parse_failure")
		return parser.TableSet{}, res.Provider, err
	}
	metrics.IncOperation(op, "success")
	return ts, res.Provider, nil
}

// AnalyzeImage runs the vision path. When mimeType is empty it is
// sniffed from the image bytes.
func (s *Service) AnalyzeImage(ctx context.Context, callerID string, image []byte, mimeType, prompt string) (parser.ImageAnalysis, string, error) {
	const op = "analyze_image"
	if err := s.admit(callerID, len(image)); err != nil {
		return parser.ImageAnalysis{}, "", err
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(image).String()
	}
	if prompt == "" {
		prompt = defaultImagePrompt
	}

	start := time.Now()
	res, err := s.dispatch.GenerateVision(ctx, prompt, image, mimeType)
	if err != nil {
		metrics.IncOperation(op, "provider_error")
		return parser.ImageAnalysis{}, "", err
	}
	log.Debug().
		Str("operation", op).
		Str("provider", res.Provider).
		Str("mime_type", mimeType).
		Dur("duration", time.Since(start)).
		Msg("vision dispatch complete")

	text, err := parser.ValidateText(op, res.Text, 1)
	if err != nil {
		metrics.IncParseFailure(op)
		metrics.IncOperation(op, "parse_failure")
		return parser.ImageAnalysis{}, res.Provider, err
	}
	metrics.IncOperation(op, "success")
	return parser.ImageAnalysis{Analysis: text}, res.Provider, nil
}

// DeepAnalysis answers a free-form analytical prompt against the
// document. Responses under 50 characters are treated as failures.
func (s *Service) DeepAnalysis(ctx context.Context, callerID, docText, prompt string) (string, string, error) {
	const op = "deep_analysis"
	if err := s.admit(callerID, len(docText)+len(prompt)); err != nil {
		return "", "", err
	}
	res, err := s.generate(ctx, op, deepAnalysisPrompt(prompt, docText))
	if err != nil {
		return "", "", err
	}
	text, err := parser.ValidateText(op, res.Text, 50)
	if err != nil {
		metrics.IncParseFailure(op)
		metrics.IncOperation(op, "parse_failure")
		return "", res.Provider, err
	}
	metrics.IncOperation(op, "success")
	return text, res.Provider, nil
}

// RegisterForCitations indexes a document for grounded querying and
// blocks until indexing completes or fails. The size ceiling does not
// apply: whole PDFs are uploaded to the file-search store, not sent
// through a provider prompt.
func (s *Service) RegisterForCitations(ctx context.Context, callerID, documentID string, content []byte, filename string) (string, error) {
	const op = "register_citations"
	if callerID == "" {
		return "", ErrMissingCaller
	}
	if !s.limiter.Admit(callerID) {
		metrics.IncRateLimited()
		return "", ErrRateLimited
	}
	store, err := s.citations.Register(ctx, documentID, content, filename)
	if err != nil {
		metrics.IncOperation(op, "error")
		return "", err
	}
	metrics.IncOperation(op, "success")
	return store, nil
}

// QueryWithCitations answers a question grounded in a registered
// document.
func (s *Service) QueryWithCitations(ctx context.Context, callerID, documentID, question string) (filesearch.QueryAnswer, error) {
	const op = "query_citations"
	if err := s.admit(callerID, len(question)); err != nil {
		return filesearch.QueryAnswer{}, err
	}
	ans, err := s.citations.Query(ctx, documentID, question)
	if err != nil {
		metrics.IncOperation(op, "error")
		return filesearch.QueryAnswer{}, err
	}
	metrics.IncOperation(op, "success")
	return ans, nil
}

// CitationState reports the indexing lifecycle state for a document.
func (s *Service) CitationState(ctx context.Context, documentID string) string {
	return s.citations.StateOf(ctx, documentID).String()
}

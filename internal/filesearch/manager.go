package filesearch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	mpkg "github.com/local/aigateway/internal/metrics"
)

// State is the per-document indexing lifecycle. Transitions only move
// forward: Unindexed → Uploading → Indexing → Ready, with Failed
// terminal from Uploading or Indexing.
type State int

const (
	StateUnindexed State = iota
	StateUploading
	StateIndexing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUploading:
		return "uploading"
	case StateIndexing:
		return "indexing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unindexed"
	}
}

var (
	// ErrUnavailable means the citation subsystem is not configured or
	// the document is not Ready. Query calls fail fast on it instead of
	// attempting a degraded answer.
	ErrUnavailable = errors.New("file search unavailable")

	// ErrIndexingTimeout means the remote operation did not complete
	// within the maximum wait. The document is Failed; registration
	// must be retried from scratch.
	ErrIndexingTimeout = errors.New("indexing timed out")

	ErrRegistrationInProgress = errors.New("registration already in progress")
)

// MappingStore persists document id → remote store handle. Created on
// first successful upload, immutable thereafter.
type MappingStore interface {
	Get(ctx context.Context, documentID string) (string, bool, error)
	Put(ctx context.Context, documentID, storeName string) error
}

// MemoryMappingStore keeps mappings in process memory; the default
// when no Redis URL is configured.
type MemoryMappingStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryMappingStore() *MemoryMappingStore {
	return &MemoryMappingStore{m: make(map[string]string)}
}

func (s *MemoryMappingStore) Get(_ context.Context, documentID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[documentID]
	return v, ok, nil
}

func (s *MemoryMappingStore) Put(_ context.Context, documentID, storeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[documentID]; !exists {
		s.m[documentID] = storeName
	}
	return nil
}

// Archiver stores a copy of registered content in durable storage.
// Optional; registration proceeds without one.
type Archiver interface {
	Archive(ctx context.Context, documentID, filename string, content []byte) error
}

// Citation maps a span of a grounded answer back to the source
// document.
type Citation struct {
	Text       string  `json:"text"`
	PageNumber *int    `json:"page_number"`
	Confidence float64 `json:"confidence"`
}

// DefaultCitationConfidence is assigned to every citation. The
// provider exposes no native confidence signal, so this is a documented
// fixed approximation, not a computed value.
const DefaultCitationConfidence = 0.95

// QueryAnswer is a grounded answer with its resolved citations.
type QueryAnswer struct {
	DocumentID string     `json:"document_id"`
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
}

// Manager owns the indexing state machine and the grounded query path.
type Manager struct {
	client   Client
	mappings MappingStore
	archiver Archiver

	pollInterval time.Duration
	maxWait      time.Duration

	mu     sync.Mutex
	states map[string]State

	validate func(content []byte) error // overridable in tests
}

func pdfValidate(content []byte) error {
	if _, err := api.PageCount(bytes.NewReader(content), nil); err != nil {
		return fmt.Errorf("content is not a readable PDF: %w", err)
	}
	return nil
}

type Options struct {
	Client       Client // nil means the subsystem is permanently unavailable
	Mappings     MappingStore
	Archiver     Archiver
	PollInterval time.Duration
	MaxWait      time.Duration
}

func NewManager(opts Options) *Manager {
	if opts.Mappings == nil {
		opts.Mappings = NewMemoryMappingStore()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 60 * time.Second
	}
	return &Manager{
		client:       opts.Client,
		mappings:     opts.Mappings,
		archiver:     opts.Archiver,
		pollInterval: opts.PollInterval,
		maxWait:      opts.MaxWait,
		states:       make(map[string]State),
		validate:     pdfValidate,
	}
}

// StateOf returns the current lifecycle state for a document.
func (m *Manager) StateOf(ctx context.Context, documentID string) State {
	m.mu.Lock()
	st, ok := m.states[documentID]
	m.mu.Unlock()
	if ok {
		return st
	}
	if _, found, _ := m.mappings.Get(ctx, documentID); found {
		return StateReady
	}
	return StateUnindexed
}

// Register uploads content into a new file-search store and blocks
// until the remote indexing operation completes, fails or times out.
// Returns the store handle on success. A Ready document returns its
// existing handle; re-upload is not supported.
func (m *Manager) Register(ctx context.Context, documentID string, content []byte, filename string) (string, error) {
	if m.client == nil {
		return "", ErrUnavailable
	}

	// Reject content pdfcpu cannot open before any remote call.
	if err := m.validate(content); err != nil {
		return "", err
	}

	m.mu.Lock()
	switch m.states[documentID] {
	case StateUploading, StateIndexing:
		m.mu.Unlock()
		return "", ErrRegistrationInProgress
	case StateReady:
		m.mu.Unlock()
		if store, ok, err := m.mappings.Get(ctx, documentID); err == nil && ok {
			return store, nil
		}
		return "", ErrUnavailable
	}
	m.states[documentID] = StateUploading
	m.mu.Unlock()

	store, err := m.register(ctx, documentID, content, filename)
	if err != nil {
		m.setState(documentID, StateFailed)
		if errors.Is(err, ErrIndexingTimeout) {
			mpkg.IncIndexing("timeout")
		} else {
			mpkg.IncIndexing("failed")
		}
		log.Error().Err(err).Str("document_id", documentID).Msg("document registration failed")
		return "", err
	}

	if err := m.mappings.Put(ctx, documentID, store); err != nil {
		m.setState(documentID, StateFailed)
		mpkg.IncIndexing("failed")
		return "", fmt.Errorf("record store mapping: %w", err)
	}
	m.setState(documentID, StateReady)
	mpkg.IncIndexing("ready")
	log.Info().Str("document_id", documentID).Str("store", store).Msg("document indexed and ready")
	return store, nil
}

func (m *Manager) register(ctx context.Context, documentID string, content []byte, filename string) (string, error) {
	if m.archiver != nil {
		if err := m.archiver.Archive(ctx, documentID, filename, content); err != nil {
			// Archival is best-effort; indexing continues.
			log.Warn().Err(err).Str("document_id", documentID).Msg("archive copy failed")
		}
	}

	store, err := m.client.CreateStore(ctx, "clinical_doc_"+documentID)
	if err != nil {
		return "", fmt.Errorf("create store: %w", err)
	}

	op, err := m.client.UploadToStore(ctx, store, filename, content)
	if err != nil {
		return "", fmt.Errorf("upload to store: %w", err)
	}
	m.setState(documentID, StateIndexing)

	if err := m.awaitOperation(ctx, op); err != nil {
		return "", err
	}
	return store, nil
}

// awaitOperation polls the remote handle until done, error, timeout or
// caller cancellation. Ticker-driven; no bare sleeps.
func (m *Manager) awaitOperation(ctx context.Context, op Operation) error {
	if op.Done {
		return nil
	}

	deadline := time.NewTimer(m.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrIndexingTimeout
		case <-ticker.C:
			cur, err := m.client.GetOperation(ctx, op.Name)
			if err != nil {
				return fmt.Errorf("poll operation: %w", err)
			}
			if cur.Done {
				return nil
			}
			log.Debug().Str("operation", op.Name).Msg("indexing operation still running")
		}
	}
}

// Query answers a question grounded in one document's store and maps
// the grounding metadata to citations.
func (m *Manager) Query(ctx context.Context, documentID, question string) (QueryAnswer, error) {
	if m.client == nil {
		return QueryAnswer{}, ErrUnavailable
	}

	if st := m.StateOf(ctx, documentID); st != StateReady {
		log.Debug().Str("document_id", documentID).Stringer("state", st).Msg("query on non-ready document")
		return QueryAnswer{}, ErrUnavailable
	}
	store, ok, err := m.mappings.Get(ctx, documentID)
	if err != nil || !ok {
		return QueryAnswer{}, ErrUnavailable
	}

	res, err := m.client.Query(ctx, store, question)
	if err != nil {
		return QueryAnswer{}, err
	}

	answer := res.Answer
	if answer == "" {
		answer = "No answer generated"
	}
	return QueryAnswer{
		DocumentID: documentID,
		Answer:     answer,
		Citations:  CitationsFromGrounding(res.Grounding),
	}, nil
}

func (m *Manager) setState(documentID string, st State) {
	m.mu.Lock()
	m.states[documentID] = st
	m.mu.Unlock()
}

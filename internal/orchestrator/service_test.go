package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/aigateway/internal/dispatcher"
	"github.com/local/aigateway/internal/limiter"
	"github.com/local/aigateway/internal/parser"
)

type fakeDispatch struct {
	text string
	err  error

	textCalls   int32
	visionCalls int32

	lastPrompt string
	lastMIME   string
}

func (f *fakeDispatch) GenerateText(_ context.Context, prompt string) (dispatcher.Result, error) {
	atomic.AddInt32(&f.textCalls, 1)
	f.lastPrompt = prompt
	if f.err != nil {
		return dispatcher.Result{}, f.err
	}
	return dispatcher.Result{Text: f.text, Provider: "gemini"}, nil
}

func (f *fakeDispatch) GenerateVision(_ context.Context, prompt string, _ []byte, mimeType string) (dispatcher.Result, error) {
	atomic.AddInt32(&f.visionCalls, 1)
	f.lastPrompt = prompt
	f.lastMIME = mimeType
	if f.err != nil {
		return dispatcher.Result{}, f.err
	}
	return dispatcher.Result{Text: f.text, Provider: "gemini"}, nil
}

func newTestService(d Dispatcher, capacity int) *Service {
	return NewService(ServiceOptions{
		Dispatcher: d,
		Limiter:    limiter.New(limiter.Options{Capacity: capacity, Window: time.Minute}),
	})
}

const picoJSON = `{
	"population": "Patients with acute cerebellar stroke",
	"intervention": "Decompressive craniectomy",
	"comparator": "Conservative medical management",
	"outcomes": "90-day mortality, mRS scores",
	"timing": "2015-2020, 90-day follow-up",
	"study_type": "Randomized controlled trial"
}`

func TestGeneratePICO(t *testing.T) {
	fake := &fakeDispatch{text: picoJSON}
	svc := newTestService(fake, 10)

	pico, provider, err := svc.GeneratePICO(context.Background(), "caller-1", "study text")
	require.NoError(t, err)
	assert.Equal(t, "gemini", provider)
	assert.Equal(t, "Decompressive craniectomy", pico.Intervention)
	assert.Equal(t, "Randomized controlled trial", pico.StudyType)
	assert.Contains(t, fake.lastPrompt, "study text")
}

func TestOversizedPayloadSkipsDispatch(t *testing.T) {
	fake := &fakeDispatch{text: picoJSON}
	svc := newTestService(fake, 10)

	big := strings.Repeat("a", DefaultMaxPayloadBytes+1)
	_, _, err := svc.GeneratePICO(context.Background(), "caller-1", big)

	var tooLarge *PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, DefaultMaxPayloadBytes+1, tooLarge.Size)
	assert.EqualValues(t, 0, fake.textCalls, "oversized input must never reach a provider")
}

func TestOversizedPayloadLeavesNoLimiterTrace(t *testing.T) {
	fake := &fakeDispatch{text: picoJSON}
	svc := newTestService(fake, 1)

	big := strings.Repeat("a", DefaultMaxPayloadBytes+1)
	_, _, err := svc.GeneratePICO(context.Background(), "caller-1", big)
	require.Error(t, err)

	// The rejection consumed no limiter capacity.
	_, _, err = svc.GeneratePICO(context.Background(), "caller-1", "small text")
	require.NoError(t, err)
}

func TestRateLimitPerCaller(t *testing.T) {
	fake := &fakeDispatch{text: picoJSON}
	svc := newTestService(fake, 1)

	_, _, err := svc.GeneratePICO(context.Background(), "caller-1", "text")
	require.NoError(t, err)

	_, _, err = svc.GeneratePICO(context.Background(), "caller-1", "text")
	assert.ErrorIs(t, err, ErrRateLimited)

	// A different caller has its own window.
	_, _, err = svc.GeneratePICO(context.Background(), "caller-2", "text")
	assert.NoError(t, err)
}

func TestMissingCallerRejected(t *testing.T) {
	fake := &fakeDispatch{text: picoJSON}
	svc := newTestService(fake, 10)

	_, _, err := svc.GeneratePICO(context.Background(), "", "text")
	assert.ErrorIs(t, err, ErrMissingCaller)
	assert.EqualValues(t, 0, fake.textCalls)
}

func TestGeneratePICOParseFailure(t *testing.T) {
	fake := &fakeDispatch{text: `{"population": "patients"}`}
	svc := newTestService(fake, 10)

	_, provider, err := svc.GeneratePICO(context.Background(), "caller-1", "text")
	var parseErr *parser.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "gemini", provider, "parse failures still report which provider answered")
}

func TestProviderErrorPassesThrough(t *testing.T) {
	wantErr := errors.New("upstream boom")
	fake := &fakeDispatch{err: wantErr}
	svc := newTestService(fake, 10)

	_, _, err := svc.GenerateSummary(context.Background(), "caller-1", "text")
	assert.ErrorIs(t, err, wantErr)
}

func TestGenerateSummary(t *testing.T) {
	fake := &fakeDispatch{text: "This trial showed lower mortality with surgery."}
	svc := newTestService(fake, 10)

	sum, _, err := svc.GenerateSummary(context.Background(), "caller-1", "text")
	require.NoError(t, err)
	assert.Equal(t, "This trial showed lower mortality with surgery.", sum.Summary)
}

func TestValidateField(t *testing.T) {
	fake := &fakeDispatch{text: `{"is_supported": true, "quote": "We enrolled 150 patients", "confidence": 0.95}`}
	svc := newTestService(fake, 10)

	fv, _, err := svc.ValidateField(context.Background(), "caller-1", "sample_size", "150", "text")
	require.NoError(t, err)
	assert.True(t, fv.IsSupported)
	assert.Contains(t, fake.lastPrompt, "sample_size")
	assert.Contains(t, fake.lastPrompt, "150")
}

func TestFindMetadataAbsentFieldsAreNil(t *testing.T) {
	fake := &fakeDispatch{text: `{"doi": null, "pmid": null, "journal": "Neurosurgery", "year": 2020}`}
	svc := newTestService(fake, 10)

	md, _, err := svc.FindMetadata(context.Background(), "caller-1", "text")
	require.NoError(t, err)
	assert.Nil(t, md.DOI)
	assert.Nil(t, md.PMID)
	require.NotNil(t, md.Journal)
	assert.Equal(t, "Neurosurgery", *md.Journal)
}

func TestExtractTablesEmptyResult(t *testing.T) {
	fake := &fakeDispatch{text: `{"tables": []}`}
	svc := newTestService(fake, 10)

	ts, _, err := svc.ExtractTables(context.Background(), "caller-1", "no tables here")
	require.NoError(t, err)
	assert.Empty(t, ts.Tables)
}

func TestAnalyzeImageSniffsMIME(t *testing.T) {
	fake := &fakeDispatch{text: "A CT scan showing a cerebellar infarction."}
	svc := newTestService(fake, 10)

	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	res, _, err := svc.AnalyzeImage(context.Background(), "caller-1", png, "", "describe this scan")
	require.NoError(t, err)
	assert.Equal(t, "image/png", fake.lastMIME)
	assert.Contains(t, res.Analysis, "infarction")
}

func TestAnalyzeImageExplicitMIMEWins(t *testing.T) {
	fake := &fakeDispatch{text: "analysis"}
	svc := newTestService(fake, 10)

	_, _, err := svc.AnalyzeImage(context.Background(), "caller-1", []byte{1, 2, 3}, "image/jpeg", "p")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", fake.lastMIME)
}

func TestDeepAnalysisRejectsTrivialAnswer(t *testing.T) {
	fake := &fakeDispatch{text: "too short"}
	svc := newTestService(fake, 10)

	_, _, err := svc.DeepAnalysis(context.Background(), "caller-1", "doc", "evaluate")
	var parseErr *parser.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestDeepAnalysis(t *testing.T) {
	answer := "The study provides strong evidence for early surgical intervention in cerebellar stroke."
	fake := &fakeDispatch{text: answer}
	svc := newTestService(fake, 10)

	text, provider, err := svc.DeepAnalysis(context.Background(), "caller-1", "doc", "evaluate the methodology")
	require.NoError(t, err)
	assert.Equal(t, answer, text)
	assert.Equal(t, "gemini", provider)
	assert.Contains(t, fake.lastPrompt, "evaluate the methodology")
}

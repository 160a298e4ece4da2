package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cleangreen-connect/ecosnap-api/internal/errors"
	"github.com/cleangreen-connect/ecosnap-api/internal/llm"
	"github.com/cleangreen-connect/ecosnap-api/internal/logger"
	"github.com/cleangreen-connect/ecosnap-api/internal/normalize"
	"github.com/cleangreen-connect/ecosnap-api/internal/observer"
	"github.com/cleangreen-connect/ecosnap-api/internal/parser"
)

// syncSubject records events synchronously so tests can inspect them.
type syncSubject struct {
	mu     sync.Mutex
	events []observer.AnalysisEvent
}

func (s *syncSubject) Subscribe(observer.Observer)   {}
func (s *syncSubject) Unsubscribe(observer.Observer) {}
func (s *syncSubject) NotifyObservers(ctx context.Context, ev observer.AnalysisEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *syncSubject) types() []observer.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]observer.EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (s *syncSubject) last() observer.AnalysisEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func testPNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func replying(reply string, err error) (llm.Model, *[]string) {
	var prompts []string
	return llm.ModelFunc(func(ctx context.Context, p string) (string, error) {
		prompts = append(prompts, p)
		return reply, err
	}), &prompts
}

func TestAnalyzeWaste_Success(t *testing.T) {
	model, prompts := replying("```json\n"+`{"waste_type":"Plastic bottle","disposal_methods":["recycle"],"safety_precautions":["rinse"],"environmental_impact":"slow to degrade"}`+"\n```", nil)
	events := &syncSubject{}
	svc := NewWasteAnalysisService(model, events, time.Second)

	ctx := logger.ContextWithRequestID(context.Background(), "req-42")
	out, err := svc.AnalyzeWaste(ctx, "data:image/png;base64,"+testPNG(t))
	require.NoError(t, err)
	require.NotNil(t, out.Report)
	assert.Nil(t, out.Failure)

	assert.Equal(t, "Plastic bottle", out.Report.WasteType)
	assert.Equal(t, []string{"recycle"}, out.Report.DisposalMethods)
	assert.Equal(t, []string{"rinse"}, out.Report.SafetyPrecautions)
	assert.Equal(t, "slow to degrade", out.Report.EnvironmentalImpact)
	assert.Equal(t, "plastic", out.Report.WasteCategory)

	require.Len(t, *prompts, 1)
	assert.Contains(t, (*prompts)[0], normalize.Placeholder)

	assert.Equal(t, []observer.EventType{observer.AnalysisStarted, observer.ModelCalled, observer.AnalysisCompleted}, events.types())
	last := events.last()
	assert.Equal(t, "req-42", last.RequestID)
	assert.Equal(t, ResultSuccess, last.Result)
	assert.Equal(t, "image/png", last.Metadata["image_mime"])
}

func TestAnalyzeWaste_ParseFailureIsPayload(t *testing.T) {
	model, _ := replying("not json at all", nil)
	events := &syncSubject{}
	svc := NewWasteAnalysisService(model, events, time.Second)

	out, err := svc.AnalyzeWaste(context.Background(), testPNG(t))
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Nil(t, out.Report)
	assert.Equal(t, parser.ErrorMarker, out.Failure.Error)
	assert.NotEmpty(t, out.Failure.Details)
	assert.Equal(t, observer.AnalysisParseFailed, events.last().EventType)
}

func TestAnalyzeWaste_SchemaMismatchIsPayload(t *testing.T) {
	model, _ := replying(`{"category":"plastic"}`, nil)
	svc := NewWasteAnalysisService(model, &syncSubject{}, time.Second)

	out, err := svc.AnalyzeWaste(context.Background(), testPNG(t))
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Contains(t, out.Failure.Details, "waste_type")
}

func TestAnalyzeWaste_EmptyImage(t *testing.T) {
	model, prompts := replying("", nil)
	svc := NewWasteAnalysisService(model, &syncSubject{}, time.Second)

	for _, in := range []string{"", "   "} {
		_, err := svc.AnalyzeWaste(context.Background(), in)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	}
	assert.Empty(t, *prompts)
}

func TestAnalyzeWaste_DecodeErrorIsClientError(t *testing.T) {
	model, prompts := replying("", nil)
	events := &syncSubject{}
	svc := NewWasteAnalysisService(model, events, time.Second)

	_, err := svc.AnalyzeWaste(context.Background(), "data:image/png;base64,@@@@")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecode))
	assert.Equal(t, 400, apperrors.GetStatusCode(err))
	assert.True(t, errors.Is(err, normalize.ErrInvalidBase64))
	assert.Empty(t, *prompts)
	assert.Equal(t, ResultDecodeError, events.last().Result)
}

func TestAnalyzeWaste_ModelFailure(t *testing.T) {
	model, _ := replying("", errors.New("quota exceeded"))
	svc := NewWasteAnalysisService(model, &syncSubject{}, time.Second)

	_, err := svc.AnalyzeWaste(context.Background(), testPNG(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeModelInvocation))
	assert.Equal(t, 500, apperrors.GetStatusCode(err))
}

func TestAnalyzeWaste_ModelTimeout(t *testing.T) {
	model := llm.ModelFunc(func(ctx context.Context, p string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	events := &syncSubject{}
	svc := NewWasteAnalysisService(model, events, 10*time.Millisecond)

	_, err := svc.AnalyzeWaste(context.Background(), testPNG(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
	assert.Equal(t, ResultTimeout, events.last().Result)
}

func TestAnalyzeWaste_ClientCancellationAbandonsCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := llm.ModelFunc(func(ctx context.Context, p string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})
	svc := NewWasteAnalysisService(model, &syncSubject{}, time.Minute)

	_, err := svc.AnalyzeWaste(ctx, testPNG(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeModelInvocation))
}

func TestAnalyzeWaste_ConcurrentCallsShareService(t *testing.T) {
	model := llm.ModelFunc(func(ctx context.Context, p string) (string, error) {
		return `{"waste_type":"glass","disposal_methods":[],"safety_precautions":[]}`, nil
	})
	svc := NewWasteAnalysisService(model, nil, time.Second)
	img := testPNG(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.AnalyzeWaste(context.Background(), img)
			if err == nil && (out.Report == nil || out.Report.WasteType != "glass") {
				err = errors.New("unexpected outcome")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestAnalyzeWaste_ClosedPoolIsInternalError(t *testing.T) {
	model, _ := replying("", nil)
	pool := llm.NewWorkerPool(model, 1)
	pool.Start()
	pool.Close()
	svc := NewWasteAnalysisService(pool, &syncSubject{}, time.Second)

	_, err := svc.AnalyzeWaste(context.Background(), testPNG(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.True(t, errors.Is(err, llm.ErrPoolClosed))
}

func TestAnalyzeWaste_ModelErrorKeyBecomesSchemaFailure(t *testing.T) {
	model, _ := replying(`{"error":"I cannot see any image, raw prompt was: SECRET"}`, nil)
	svc := NewWasteAnalysisService(model, &syncSubject{}, time.Second)

	out, err := svc.AnalyzeWaste(context.Background(), testPNG(t))
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, parser.ErrorMarker, out.Failure.Error)
	assert.NotEmpty(t, out.Failure.Details)
	assert.NotContains(t, out.Failure.Details, "SECRET")
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleangreen-connect/ecosnap-api/internal/classify"
	apperrors "github.com/cleangreen-connect/ecosnap-api/internal/errors"
	"github.com/cleangreen-connect/ecosnap-api/internal/llm"
	"github.com/cleangreen-connect/ecosnap-api/internal/logger"
	"github.com/cleangreen-connect/ecosnap-api/internal/normalize"
	"github.com/cleangreen-connect/ecosnap-api/internal/observer"
	"github.com/cleangreen-connect/ecosnap-api/internal/parser"
	"github.com/cleangreen-connect/ecosnap-api/internal/prompt"
	"github.com/cleangreen-connect/ecosnap-api/pkg/models"
)

// Result labels used in events and metrics.
const (
	ResultSuccess     = "success"
	ResultParseFailed = "parse_failed"
	ResultInvalid     = "invalid_input"
	ResultDecodeError = "decode_error"
	ResultModelError  = "model_error"
	ResultTimeout     = "timeout"
)

// Outcome holds exactly one of Report or Failure.
type Outcome struct {
	Report  *models.WasteReport
	Failure *models.ParseFailure
}

// WasteAnalysisService turns a base64 image into a waste report.
type WasteAnalysisService interface {
	// AnalyzeWaste returns an error only for input, decode and model failures.
	// A reply that cannot be interpreted is reported through Outcome.Failure.
	AnalyzeWaste(ctx context.Context, image string) (*Outcome, error)
}

type wasteAnalysisService struct {
	model        llm.Model
	events       observer.Subject
	modelTimeout time.Duration
}

// NewWasteAnalysisService builds the service. It holds no mutable state and is
// shared by all requests.
func NewWasteAnalysisService(model llm.Model, events observer.Subject, modelTimeout time.Duration) WasteAnalysisService {
	if events == nil {
		events = observer.NewEventPublisher()
	}
	return &wasteAnalysisService{
		model:        model,
		events:       events,
		modelTimeout: modelTimeout,
	}
}

func (s *wasteAnalysisService) AnalyzeWaste(ctx context.Context, image string) (*Outcome, error) {
	start := time.Now()
	requestID := logger.RequestID(ctx)
	s.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType: observer.AnalysisStarted,
		RequestID: requestID,
		Provider:  s.model.Name(),
	})

	outcome, result, meta, err := s.analyze(ctx, image)

	ev := observer.AnalysisEvent{
		RequestID:      requestID,
		Provider:       s.model.Name(),
		ProcessingTime: time.Since(start),
		Result:         result,
		Metadata:       meta,
	}
	switch {
	case err != nil:
		ev.EventType = observer.AnalysisFailed
		ev.ErrorMessage = err.Error()
	case outcome.Failure != nil:
		ev.EventType = observer.AnalysisParseFailed
		ev.ErrorMessage = outcome.Failure.Details
	default:
		ev.EventType = observer.AnalysisCompleted
	}
	s.events.NotifyObservers(ctx, ev)

	return outcome, err
}

func (s *wasteAnalysisService) analyze(ctx context.Context, image string) (*Outcome, string, map[string]interface{}, error) {
	if strings.TrimSpace(image) == "" {
		return nil, ResultInvalid, nil, apperrors.NewValidationError("Image is required", nil)
	}

	normalized, err := normalize.Normalize(image)
	if err != nil {
		return nil, ResultDecodeError, nil, apperrors.NewDecodeError("Invalid image payload", err)
	}
	meta := map[string]interface{}{
		"image_mime":   normalized.Image.MIMEType,
		"image_bytes":  normalized.Image.Size,
		"image_width":  normalized.Image.Width,
		"image_height": normalized.Image.Height,
	}

	reply, err := s.generate(ctx, prompt.Build(normalized.Description))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ResultTimeout, meta, apperrors.NewTimeoutError("Model call timed out", err)
		}
		if errors.Is(err, llm.ErrPoolClosed) {
			return nil, ResultModelError, meta, apperrors.NewInternalError("Model pool is shut down", err)
		}
		return nil, ResultModelError, meta, apperrors.NewModelInvocationError("Model call failed", err)
	}

	interpreted, failure := parser.Decode(reply)
	if failure != nil {
		logger.FromContext(ctx).WithFields(logrus.Fields{
			"details":     failure.Details,
			"reply_bytes": len(reply),
		}).Error("Error parsing model response")
		return &Outcome{Failure: failure}, ResultParseFailed, meta, nil
	}

	report, err := parser.ToReport(interpreted)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Model response does not match waste report schema")
		schemaFailure := parser.NewFailure(err.Error())
		return &Outcome{Failure: &schemaFailure}, ResultParseFailed, meta, nil
	}
	report.WasteCategory = string(classify.Categorize(report.WasteType))
	meta["waste_category"] = report.WasteCategory

	return &Outcome{Report: &report}, ResultSuccess, meta, nil
}

func (s *wasteAnalysisService) generate(ctx context.Context, text string) (string, error) {
	if s.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.modelTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.model.Generate(ctx, text)

	result := ResultSuccess
	if err != nil {
		result = ResultModelError
	}
	s.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType: observer.ModelCalled,
		RequestID: logger.RequestID(ctx),
		Provider:  s.model.Name(),
		ModelTime: time.Since(start),
		Result:    result,
	})
	return reply, err
}

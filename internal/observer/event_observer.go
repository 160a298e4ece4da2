package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleangreen-connect/ecosnap-api/internal/logger"
	"github.com/cleangreen-connect/ecosnap-api/internal/metrics"
)

// AnalysisEvent represents an analysis event
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id,omitempty"`
	Provider       string                 `json:"provider,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ModelTime      time.Duration          `json:"model_time,omitempty"`
	Result         string                 `json:"result,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	AnalysisStarted EventType = "analysis_started"
	// ModelCalled fires after the external model returns, successfully or not.
	ModelCalled       EventType = "model_called"
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisParseFailed means the reply was returned as an error payload.
	AnalysisParseFailed EventType = "analysis_parse_failed"
	AnalysisFailed      EventType = "analysis_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"request_id":         event.RequestID,
		"provider":           event.Provider,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
	}
	if event.Result != "" {
		fields["result"] = event.Result
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case AnalysisStarted:
		o.logger.WithFields(fields).Debug("Waste analysis started")
	case ModelCalled:
		fields["model_time_ms"] = event.ModelTime.Milliseconds()
		o.logger.WithFields(fields).Debug("Model call finished")
	case AnalysisCompleted:
		o.logger.WithFields(fields).Info("Waste analysis completed")
	case AnalysisParseFailed:
		o.logger.WithFields(fields).Warn("Model reply could not be interpreted")
	case AnalysisFailed:
		o.logger.WithFields(fields).Error("Waste analysis failed")
	default:
		o.logger.WithFields(fields).Info("Analysis event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// PrometheusObserver feeds the counters and histograms in the metrics package.
type PrometheusObserver struct{}

func NewPrometheusObserver() Observer {
	return &PrometheusObserver{}
}

func (o *PrometheusObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	switch event.EventType {
	case AnalysisStarted:
		metrics.InFlight.Inc()
	case ModelCalled:
		metrics.ModelCallDurationSeconds.WithLabelValues(event.Provider, event.Result).Observe(event.ModelTime.Seconds())
	case AnalysisCompleted, AnalysisParseFailed, AnalysisFailed:
		metrics.InFlight.Dec()
		metrics.AnalysesTotal.WithLabelValues(event.Result).Inc()
		metrics.AnalysisDurationSeconds.WithLabelValues(event.Result).Observe(event.ProcessingTime.Seconds())
	}
}

func (o *PrometheusObserver) GetObserverName() string {
	return "prometheus_observer"
}

// Synchronous keeps the in-flight gauge ordered: a start is always counted
// before the matching finish.
func (o *PrometheusObserver) Synchronous() bool { return true }

// synchronousObserver is implemented by observers that must run on the
// notifying goroutine, in publish order.
type synchronousObserver interface {
	Synchronous() bool
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in its own goroutine,
// except synchronous observers, which run inline.
// Observers must not rely on ctx outliving the request.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, observer := range observers {
		if so, ok := observer.(synchronousObserver); ok && so.Synchronous() {
			deliver(ctx, observer, event)
			continue
		}
		go deliver(ctx, observer, event)
	}
}

func deliver(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

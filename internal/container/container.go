package container

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cleangreen-connect/ecosnap-api/internal/config"
	"github.com/cleangreen-connect/ecosnap-api/internal/llm"
	"github.com/cleangreen-connect/ecosnap-api/internal/llm/gemini"
	"github.com/cleangreen-connect/ecosnap-api/internal/llm/stub"
	"github.com/cleangreen-connect/ecosnap-api/internal/logger"
	"github.com/cleangreen-connect/ecosnap-api/internal/metrics"
	"github.com/cleangreen-connect/ecosnap-api/internal/observer"
	"github.com/cleangreen-connect/ecosnap-api/internal/service"
	"github.com/cleangreen-connect/ecosnap-api/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config               *config.Config
	model                llm.Model
	pool                 *llm.WorkerPool
	events               observer.Subject
	wasteAnalysisService service.WasteAnalysisService
	handler              http.Handler
	closers              []io.Closer
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{config: cfg}

	model, err := c.newModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", cfg.LLMProvider, err)
	}
	c.model = model

	c.pool = llm.NewWorkerPool(model, cfg.MaxConcurrentModelCalls)
	c.pool.Start()

	metrics.Register()
	c.events = observer.NewEventPublisher()
	c.events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.events.Subscribe(observer.NewPrometheusObserver())

	c.wasteAnalysisService = service.NewWasteAnalysisService(c.pool, c.events, cfg.ModelTimeout)
	c.handler = transport.NewHandler(c.wasteAnalysisService, cfg)

	return c, nil
}

func (c *Container) newModel(ctx context.Context) (llm.Model, error) {
	switch c.config.LLMProvider {
	case config.ProviderStub:
		logger.Warn("LLM_PROVIDER=stub: replies are canned and do not reflect the submitted image")
		return stub.NewClient(), nil
	case config.ProviderGemini:
		client, err := gemini.New(ctx, c.config.GeminiAPIKey, c.config.GeminiModel, c.config.ModelMaxRetries)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", c.config.LLMProvider)
	}
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// ModelName reports the active provider label.
func (c *Container) ModelName() string {
	return c.model.Name()
}

// Close stops the worker pool and releases provider clients.
func (c *Container) Close() error {
	c.pool.Close()

	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

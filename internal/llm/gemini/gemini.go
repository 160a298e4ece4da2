package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/cleangreen-connect/ecosnap-api/internal/logger"
)

// ErrEmptyResponse is returned when the model answers without any text part.
var ErrEmptyResponse = errors.New("gemini: empty response")

// generator is the subset of *genai.GenerativeModel the client needs.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Client struct {
	client     *genai.Client
	model      generator
	modelName  string
	maxRetries int
	newBackOff func() backoff.BackOff
}

// New connects to the Gemini API. maxRetries counts attempts after the first.
func New(ctx context.Context, apiKey, modelName string, maxRetries int) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	m := cl.GenerativeModel(strings.TrimSpace(modelName))
	m.SetTemperature(0)

	c := newClient(m, modelName, maxRetries)
	c.client = cl
	return c, nil
}

func newClient(g generator, modelName string, maxRetries int) *Client {
	return &Client{
		model:      g,
		modelName:  modelName,
		maxRetries: maxRetries,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 300 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0 // bounded by retries and ctx
	return b
}

func (c *Client) Name() string { return "gemini" }

// Generate sends the prompt as a single text part and returns the reply text.
// Transient failures (network, 429, 5xx) are retried; ctx bounds the whole call.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var reply string
	attempt := 0

	op := func() error {
		attempt++
		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		txt := responseText(resp)
		if txt == "" {
			return backoff.Permanent(ErrEmptyResponse)
		}
		reply = txt
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		logger.WithError(err).WithFields(logrus.Fields{
			"model":   c.modelName,
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
		}).Warn("Gemini call failed, retrying")
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return "", fmt.Errorf("gemini generate: %w (last error: %v)", ctxErr, err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return reply, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

// responseText joins the text parts of the first candidate that has content.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

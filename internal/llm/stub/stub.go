// Package stub provides a deterministic, no-network model for local runs and tests.
package stub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Client returns schema-valid JSON derived from the prompt hash, wrapped in a
// ```json fence the way hosted models often answer.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) Name() string { return "stub" }

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(prompt))
	short := hex.EncodeToString(sum[:4])

	out := map[string]any{
		"waste_type":           "plastic",
		"disposal_methods":     []string{"Place in the household recycling bin", "Take to a local drop-off point"},
		"recycling_options":    []string{"Mechanical recycling into pellets"},
		"safety_precautions":   []string{"Rinse containers before disposal", "Wear gloves when handling sharp edges"},
		"environmental_impact": fmt.Sprintf("Stubbed analysis %s: plastics persist for centuries if landfilled.", short),
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}

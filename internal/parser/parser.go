// Package parser interprets free-text model replies.
//
// Interpret never fails: a reply that is not a JSON object comes back as a
// failure object carrying ErrorKey and DetailsKey, shaped like any other
// result. Interpret does not check which fields are present. That check lives
// in ToReport, which the service applies before trusting the shape.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cleangreen-connect/ecosnap-api/pkg/models"
)

const (
	ErrorKey   = "error"
	DetailsKey = "details"

	// ErrorMarker is the value stored under ErrorKey on failure.
	ErrorMarker = "Failed to parse response from Gemini"

	openFence  = "```json"
	closeFence = "```"
)

// StripFences removes a leading ```json marker and a trailing ``` marker.
// Surrounding whitespace is ignored; nothing else in the text is touched.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, openFence)
	s = strings.TrimSuffix(s, closeFence)
	return s
}

// Decode parses the reply into a JSON object. When that fails the second
// result is set and the map is nil, so callers never infer failure from keys
// the model itself may have produced.
func Decode(text string) (map[string]any, *models.ParseFailure) {
	var out map[string]any
	if err := json.Unmarshal([]byte(StripFences(text)), &out); err != nil {
		f := NewFailure(err.Error())
		return nil, &f
	}
	if out == nil {
		f := NewFailure("reply is JSON null, expected an object")
		return nil, &f
	}
	return out, nil
}

// Interpret decodes the reply as a single JSON object.
func Interpret(text string) map[string]any {
	out, f := Decode(text)
	if f != nil {
		return failure(f.Details)
	}
	return out
}

func failure(details string) map[string]any {
	return map[string]any{
		ErrorKey:   ErrorMarker,
		DetailsKey: details,
	}
}

// AsFailure reports whether the result is a failure object built by Interpret.
// An "error" key with any other value is ordinary model output.
func AsFailure(result map[string]any) (models.ParseFailure, bool) {
	marker, ok := result[ErrorKey].(string)
	if !ok || marker != ErrorMarker {
		return models.ParseFailure{}, false
	}
	details, _ := result[DetailsKey].(string)
	return models.ParseFailure{Error: marker, Details: details}, true
}

// NewFailure builds the payload for a reply that decoded but did not map.
func NewFailure(details string) models.ParseFailure {
	return models.ParseFailure{Error: ErrorMarker, Details: details}
}

var ErrSchema = errors.New("reply does not match the waste report schema")

// ToReport enforces the WasteReport shape on a decoded reply. Unknown keys are ignored.
func ToReport(result map[string]any) (models.WasteReport, error) {
	var report models.WasteReport

	wasteType, ok := result["waste_type"].(string)
	if !ok || strings.TrimSpace(wasteType) == "" {
		return report, fmt.Errorf("%w: waste_type must be a non-empty string", ErrSchema)
	}
	report.WasteType = strings.TrimSpace(wasteType)

	var err error
	if report.DisposalMethods, err = requiredList(result, "disposal_methods"); err != nil {
		return report, err
	}
	if report.SafetyPrecautions, err = requiredList(result, "safety_precautions"); err != nil {
		return report, err
	}
	if v, present := result["recycling_options"]; present && v != nil {
		if report.RecyclingOptions, err = stringList("recycling_options", v); err != nil {
			return report, err
		}
	}
	if v, present := result["environmental_impact"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return report, fmt.Errorf("%w: environmental_impact must be a string", ErrSchema)
		}
		report.EnvironmentalImpact = s
	}

	return report, nil
}

func requiredList(result map[string]any, key string) ([]string, error) {
	v, present := result[key]
	if !present || v == nil {
		return nil, fmt.Errorf("%w: %s is required", ErrSchema, key)
	}
	return stringList(key, v)
}

func stringList(key string, v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an array", ErrSchema, key)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be a string", ErrSchema, key, i)
		}
		out = append(out, s)
	}
	return out, nil
}

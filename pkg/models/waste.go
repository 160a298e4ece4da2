package models

// AnalysisRequest is the body of POST /waste-management.
// Image is base64, optionally prefixed with a data URL header.
type AnalysisRequest struct {
	Image *string `json:"image"`
}

// WasteReport is the guaranteed response shape for a successful analysis.
type WasteReport struct {
	WasteType           string   `json:"waste_type"`
	DisposalMethods     []string `json:"disposal_methods"`
	RecyclingOptions    []string `json:"recycling_options,omitempty"`
	SafetyPrecautions   []string `json:"safety_precautions"`
	EnvironmentalImpact string   `json:"environmental_impact,omitempty"`
	WasteCategory       string   `json:"waste_category,omitempty"`
}

// ParseFailure is returned in place of a WasteReport when the model reply
// could not be interpreted. Callers tell the two apart by the Error field.
type ParseFailure struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

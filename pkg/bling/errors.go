package bling

import (
	"encoding/json"
	"strings"
)

// APIError is the error body returned by Bling v3 endpoints.
type APIError struct {
	Type        string       `json:"type"`
	Message     string       `json:"message"`
	Description string       `json:"description"`
	Fields      []FieldError `json:"fields,omitempty"`
}

// FieldError describes a rejected attribute of the submitted payload.
type FieldError struct {
	Code      int    `json:"code"`
	Message   string `json:"msg"`
	Element   string `json:"element"`
	Namespace string `json:"namespace,omitempty"`
}

// Text renders the provider message verbatim, followed by field messages.
func (e APIError) Text() string {
	base := strings.TrimSpace(e.Description)
	if base == "" {
		base = strings.TrimSpace(e.Message)
	}
	var parts []string
	for _, f := range e.Fields {
		if msg := strings.TrimSpace(f.Message); msg != "" {
			parts = append(parts, msg)
		}
	}
	if len(parts) == 0 {
		return base
	}
	if base == "" {
		return strings.Join(parts, "; ")
	}
	return base + ": " + strings.Join(parts, "; ")
}

func parseAPIError(body []byte) APIError {
	var payload struct {
		Error json.RawMessage `json:"error"`
		// Standard OAuth2 error shape used by the token endpoint.
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return APIError{}
	}

	var structured APIError
	if err := json.Unmarshal(payload.Error, &structured); err == nil {
		return structured
	}

	var code string
	if err := json.Unmarshal(payload.Error, &code); err == nil {
		return APIError{Type: code, Message: code, Description: payload.ErrorDescription}
	}
	return APIError{}
}

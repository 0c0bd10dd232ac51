package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"scriptgen/internal/domain"
)

// codeInsufficientCredits is the service's marker for billing failures. It
// can arrive with a 402, a 403, or any other status.
const codeInsufficientCredits = "INSUFFICIENT_CREDITS"

const defaultFailureMessage = "script generation request failed"

type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details errorDetails    `json:"details"`
}

type errorDetails struct {
	Required  *int `json:"required"`
	Available *int `json:"available"`
	Reserved  *int `json:"reserved"`
}

// Classify maps a non-2xx response onto the error taxonomy. Credit failures
// win over everything else; anything remaining becomes a ServerFailure with
// the most specific human-readable message the body offers.
func Classify(statusCode int, body []byte) error {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)

	if statusCode == http.StatusPaymentRequired || parsed.Code == codeInsufficientCredits {
		return creditError(parsed.Details)
	}

	msg := messageFrom(parsed.Error, parsed.Message)
	if msg == "" {
		msg = defaultFailureMessage
	}
	return &domain.ServerFailure{StatusCode: statusCode, Message: msg}
}

func creditError(details errorDetails) *domain.CreditError {
	required := 1
	if details.Required != nil && *details.Required > 0 {
		required = *details.Required
	}
	available := 0
	if details.Available != nil {
		available = *details.Available
	}
	shortfall := required - available
	if shortfall < 0 {
		shortfall = 0
	}
	pct := int(math.Round(float64(available) / float64(required) * 100))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return &domain.CreditError{
		Required:            required,
		Available:           available,
		Shortfall:           shortfall,
		PercentageAvailable: pct,
	}
}

// messageFrom resolves the service's loosely-shaped error field: `error` may
// be a bare string or an object carrying `message`, with a top-level
// `message` as the last resort.
func messageFrom(errField json.RawMessage, topMessage string) string {
	if len(errField) > 0 {
		var asString string
		if err := json.Unmarshal(errField, &asString); err == nil {
			if s := strings.TrimSpace(asString); s != "" {
				return s
			}
		}
		var asObject struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(errField, &asObject); err == nil {
			if s := strings.TrimSpace(asObject.Message); s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(topMessage)
}

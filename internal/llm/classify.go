package llm

import (
	"net/http"
	"strings"

	"github.com/i474232898/weathera/internal/common"
)

var (
	rateLimitMarkers = []string{
		"rate_limit", "rate limit", "resource_exhausted", "quota", "too many requests",
	}
	modelUnavailableMarkers = []string{
		"model_not_found", "model_decommissioned", "does not exist", "unknown model",
		"not found", "is not supported", "decommissioned", "no longer supported",
	}
)

// Classify maps a non-transport completion response to an Outcome. Successful
// statuses are OutcomeSuccess; the caller still checks the extracted text.
func Classify(status int, body []byte) Outcome {
	if status >= 200 && status < 300 {
		return OutcomeSuccess
	}
	lower := strings.ToLower(string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case status == http.StatusNotFound:
		return OutcomeModelUnavailable
	case common.HasAny(lower, rateLimitMarkers...):
		return OutcomeRateLimited
	case status == http.StatusBadRequest && common.HasAny(lower, modelUnavailableMarkers...):
		return OutcomeModelUnavailable
	default:
		return OutcomeFailed
	}
}

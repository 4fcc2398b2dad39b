// Package httperr turns raw provider HTTP responses, including HTML error
// pages and opaque bodies, into a single classified error.
package httperr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
)

// Input captures the response under classification plus a free-text label for
// the call site.
type Input struct {
	Status  int
	Body    []byte
	URL     string
	Context string
}

const (
	maxTextProbe    = 500
	maxFallbackLen  = 200
	fallbackMessage = "unexpected response from server"

	duplicateInvoiceMessage = "This invoice looks like a duplicate submission. Check whether this invoice was already submitted before retrying."
)

var (
	h1Pattern      = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	tagPattern     = regexp.MustCompile(`(?s)<[^>]*>`)
	backendPattern = regexp.MustCompile(`(?i)(SQLSTATE|Exception|Error|Duplicate|Undefined)[^<\n]{0,160}`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Classify maps a provider response to a single descriptive error. It never
// fails on malformed input: extraction degrades to a fixed fallback string.
func Classify(ctx context.Context, logg *logger.Logger, in Input) *pkgerrors.Error {
	message, duplicate := extractMessage(in.Body)

	if logg != nil {
		fields := map[string]any{
			"status":      in.Status,
			"url":         in.URL,
			"call":        in.Context,
			"observed_at": time.Now().UTC().Format(time.RFC3339),
		}
		if in.Status >= http.StatusInternalServerError {
			// PHP-style backends return verbose HTML error pages; keep the
			// whole body for offline debugging.
			fields["raw_body"] = string(in.Body)
		}
		logg.Warn(logg.WithFields(ctx, fields), "provider call failed")
	}

	if duplicate {
		return pkgerrors.New(pkgerrors.CodeConflict, duplicateInvoiceMessage)
	}

	switch in.Status {
	case http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication failed: check the configured API credentials")
	case http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeForbidden, "the provider refused access for these credentials")
	case http.StatusUnprocessableEntity:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("provider rejected the request: %s", message))
	case http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests: wait a moment before retrying")
	case http.StatusInternalServerError:
		return pkgerrors.New(pkgerrors.CodeInternal, "the provider reported an internal server error: retry later or contact provider support")
	case http.StatusServiceUnavailable:
		return pkgerrors.New(pkgerrors.CodeUnavailable, "the provider is under maintenance or temporarily unavailable")
	default:
		return pkgerrors.New(pkgerrors.CodeProviderRejected, fmt.Sprintf("request failed with status %d: %s", in.Status, message))
	}
}

// extractMessage reads the body once, trying JSON shapes first and falling
// back to markup scraping. The second return flags the duplicate-invoice
// condition, which outranks status-based categories.
func extractMessage(body []byte) (string, bool) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fallbackMessage, false
	}

	if msg, ok := jsonMessage(text); ok {
		return msg, false
	}
	return markupMessage(text)
}

func jsonMessage(text string) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", false
	}

	if msg, ok := payload["message"].(string); ok && msg != "" {
		return msg, true
	}
	if errObj, ok := payload["error"].(map[string]any); ok {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			return msg, true
		}
	}
	if errs, ok := payload["errors"].([]any); ok && len(errs) > 0 {
		if first, ok := errs[0].(map[string]any); ok {
			if msg, ok := first["message"].(string); ok && msg != "" {
				return msg, true
			}
		}
	}
	return fallbackMessage, true
}

func markupMessage(text string) (string, bool) {
	stripped := stripTags(text)
	if len(stripped) > maxTextProbe {
		stripped = stripped[:maxTextProbe]
	}

	lower := strings.ToLower(stripped)
	if strings.Contains(lower, "duplicate") && strings.Contains(lower, "invoice") {
		return duplicateInvoiceMessage, true
	}

	candidate := ""
	if match := h1Pattern.FindStringSubmatch(text); len(match) == 2 {
		candidate = stripTags(match[1])
	}
	if candidate == "" {
		candidate = stripped
	}

	if match := backendPattern.FindString(candidate); match != "" {
		return strings.TrimSpace(match), false
	}

	if candidate == "" {
		return fallbackMessage, false
	}
	if len(candidate) > maxFallbackLen {
		candidate = candidate[:maxFallbackLen]
	}
	return candidate, false
}

func stripTags(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

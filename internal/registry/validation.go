package registry

import (
	"net/url"
	"strings"

	"github.com/liyaqa/webhook-delivery/internal/apperrors"
	"github.com/liyaqa/webhook-delivery/internal/models"
)

// validateURL enforces the destination scheme policy: https everywhere,
// plain http only for localhost so local integrations stay testable.
func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return apperrors.Validationf("url is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.Validationf("url %q is not a valid URL", rawURL)
	}

	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if isLocalhost(parsed.Hostname()) {
			return nil
		}
		return apperrors.Validationf("url %q must use https (http is allowed for localhost only)", rawURL)
	default:
		return apperrors.Validationf("url %q must use http or https", rawURL)
	}
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// validateEvents requires at least one pattern, each either a known event
// type or the wildcard.
func validateEvents(events []string) error {
	if len(events) == 0 {
		return apperrors.Validationf("at least one event pattern is required")
	}

	for _, pattern := range events {
		if pattern == models.EventWildcard {
			continue
		}
		if !models.IsKnownEventType(pattern) {
			return apperrors.Validationf("unknown event type %q", pattern)
		}
	}
	return nil
}

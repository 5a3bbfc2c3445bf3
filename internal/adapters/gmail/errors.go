package gmail

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/mikey/inbox-agent/internal/core"
)

// mapError translates Gmail API failures onto the shared sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrAuth) || errors.Is(err, core.ErrRateLimit) {
		return err
	}

	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return fmt.Errorf("%w: %v", core.ErrAuth, err)
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests || rateLimitReason(gerr):
		return fmt.Errorf("%w: %v", core.ErrRateLimit, err)
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", core.ErrAuth, err)
	}
	return err
}

// rateLimitReason reports a 403 that Gmail uses for quota errors
func rateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}

// retryAfter reads the Retry-After header in seconds, zero when absent
func retryAfter(err error) int {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}
	n, _ := strconv.Atoi(gerr.Header.Get("Retry-After"))
	return n
}

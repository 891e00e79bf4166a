package service

import (
	"errors"

	"github.com/Sternrassler/traffic-cache/pkg/here"
	"github.com/Sternrassler/traffic-cache/pkg/traffic"
)

// IsValidation reports whether err is a caller input error. These map to
// HTTP 400 and were rejected before any upstream call.
func IsValidation(err error) bool {
	var verr *traffic.ValidationError
	return errors.As(err, &verr)
}

// IsRateLimited reports whether err is rooted in upstream quota
// exhaustion (HTTP 429). These map to HTTP 429 so callers can back off.
func IsRateLimited(err error) bool {
	return here.IsRateLimited(err)
}

// IsUpstreamUnavailable reports whether err is an upstream or transport
// failure rather than a caller mistake. These map to HTTP 502.
func IsUpstreamUnavailable(err error) bool {
	return err != nil && !IsValidation(err) && !IsRateLimited(err)
}

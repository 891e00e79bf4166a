// Package cache provides the volatile cache tier (Redis backed) of the
// traffic service: deterministic key derivation, a best-effort fast cache,
// and TTL-driven maintenance sweeping.
package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is the tier-agnostic envelope around a cached payload. The payload
// is stored as raw JSON so the fast tier never needs to know whether it
// holds a flow record, an incident list, or a route result.
type Entry struct {
	// Payload is the serialized cached value.
	Payload json.RawMessage `json:"payload"`

	// CachedAt is when the value was computed.
	CachedAt time.Time `json:"cached_at"`

	// ExpiresAt is when the entry becomes stale. Always after CachedAt.
	ExpiresAt time.Time `json:"expires_at"`
}

// NewEntry creates an entry for a payload, marshaling it to JSON.
// Returns an error if expiresAt is not after cachedAt.
func NewEntry(payload any, cachedAt, expiresAt time.Time) (*Entry, error) {
	if !expiresAt.After(cachedAt) {
		return nil, fmt.Errorf("entry expiry %v not after creation %v", expiresAt, cachedAt)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cache payload: %w", err)
	}

	return &Entry{
		Payload:   data,
		CachedAt:  cachedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Entry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode cache payload: %w", err)
	}
	return nil
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

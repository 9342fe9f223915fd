package urlsign

import "time"

// Option configures a Signer.
type Option func(*Signer)

// WithDefaultTTL sets the expiry used when Params.TTL is zero.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Signer) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithClock overrides the time source. Tests use this to pin expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

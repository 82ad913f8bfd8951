package auth

import "errors"

var (
	// ErrUpstreamExchange is returned when the upstream code exchange fails.
	ErrUpstreamExchange = errors.New("upstream code exchange failed")

	// ErrUpstreamProfile is returned when the profile fetch fails or the
	// response cannot be decoded.
	ErrUpstreamProfile = errors.New("upstream profile fetch failed")
)

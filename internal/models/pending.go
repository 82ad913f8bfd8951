package models

import "time"

// PendingAuthorization captures a validated /authorize request while the user
// completes the upstream Discord login. It lives only in the cache, keyed by
// the opaque state value round-tripped through the upstream provider, and
// expires with the cache TTL.
type PendingAuthorization struct {
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scope               string    `json:"scope"`
	CodeChallenge       string    `json:"code_challenge"`
	CodeChallengeMethod string    `json:"code_challenge_method"`
	State               string    `json:"state"` // the caller's original state, echoed back
	CreatedAt           time.Time `json:"created_at"`
}

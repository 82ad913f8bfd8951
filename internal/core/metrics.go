package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authorization flow
	RecordAuthorizationRequest(outcome string)
	RecordCodeIssued()
	RecordCodeExchange(result string, duration time.Duration)

	// Token operations
	RecordTokenIssued(grantType string, duration time.Duration)
	RecordTokenRefresh(success bool)
	RecordTokenRevoked(hit bool)

	// Credential verification (bearer middleware)
	RecordCredentialVerification(method, result string, duration time.Duration)
	RecordAPIKeyMigration()

	// Client registration
	RecordClientRegistered(success bool)

	// Upstream identity provider
	RecordUpstreamCall(operation string, success bool, duration time.Duration)

	// Gauge setters (for periodic updates)
	SetActiveTokensCount(count int)
	SetActiveUsersCount(count int)
	SetRegisteredClientsCount(count int)

	// Database operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by the gauge update job.
type MetricsStore interface {
	CountActiveTokens() (int64, error)
	CountActiveUsers() (int64, error)
	CountClients() (int64, error)
}

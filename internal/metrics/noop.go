package metrics

import (
	"time"

	"github.com/go-mcpauth/mcpauth/internal/core"
)

// NoopMetrics is a no-operation Recorder used when metrics are disabled.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ core.Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() core.Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthorizationRequest(outcome string)                   {}
func (n *NoopMetrics) RecordCodeIssued()                                           {}
func (n *NoopMetrics) RecordCodeExchange(result string, duration time.Duration)    {}
func (n *NoopMetrics) RecordTokenIssued(grantType string, duration time.Duration)  {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                             {}
func (n *NoopMetrics) RecordTokenRevoked(hit bool)                                 {}
func (n *NoopMetrics) RecordAPIKeyMigration()                                      {}
func (n *NoopMetrics) RecordClientRegistered(success bool)                         {}
func (n *NoopMetrics) SetActiveTokensCount(count int)                              {}
func (n *NoopMetrics) SetActiveUsersCount(count int)                               {}
func (n *NoopMetrics) SetRegisteredClientsCount(count int)                         {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)                   {}

func (n *NoopMetrics) RecordCredentialVerification(
	method, result string,
	duration time.Duration,
) {
}

func (n *NoopMetrics) RecordUpstreamCall(
	operation string,
	success bool,
	duration time.Duration,
) {
}

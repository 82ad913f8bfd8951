package metrics

import (
	"sync"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ core.Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authorization flow
	AuthorizationRequestsTotal *prometheus.CounterVec
	CodesIssuedTotal           prometheus.Counter
	CodeExchangeTotal          *prometheus.CounterVec
	CodeExchangeDuration       prometheus.Histogram

	// Tokens
	TokensIssuedTotal     *prometheus.CounterVec
	TokensRefreshedTotal  *prometheus.CounterVec
	TokensRevokedTotal    *prometheus.CounterVec
	TokenIssuanceDuration prometheus.Histogram
	TokensActive          prometheus.Gauge

	// Credential verification
	CredentialVerificationTotal    *prometheus.CounterVec
	CredentialVerificationDuration *prometheus.HistogramVec
	APIKeyMigrationsTotal          prometheus.Counter

	// Clients
	ClientRegistrationsTotal *prometheus.CounterVec
	ClientsRegistered        prometheus.Gauge

	// Users
	UsersActive prometheus.Gauge

	// Upstream identity provider
	UpstreamCallsTotal   *prometheus.CounterVec
	UpstreamCallDuration *prometheus.HistogramVec

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns the Prometheus recorder when enabled, the noop recorder
// otherwise. sync.Once guards double registration.
func Init(enabled bool) core.Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		AuthorizationRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_requests_total",
				Help: "Total number of /authorize requests",
			},
			[]string{"outcome"},
		),
		CodesIssuedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_authorization_codes_issued_total",
				Help: "Total number of authorization codes issued",
			},
		),
		CodeExchangeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_code_exchange_total",
				Help: "Total number of authorization code exchange attempts",
			},
			[]string{"result"}, // ok, not_found, expired, already_used, pkce_mismatch
		),
		CodeExchangeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_code_exchange_duration_seconds",
				Help:    "Time taken to exchange an authorization code",
				Buckets: prometheus.DefBuckets,
			},
		),

		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of token pairs issued",
			},
			[]string{"grant_type"}, // authorization_code, refresh_token
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_refreshed_total",
				Help: "Total number of token refresh attempts",
			},
			[]string{"result"}, // success, error
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_revoked_total",
				Help: "Total number of revocation requests",
			},
			[]string{"result"}, // hit, miss
		),
		TokenIssuanceDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_token_issuance_duration_seconds",
				Help:    "Time taken to issue a token pair",
				Buckets: prometheus.DefBuckets,
			},
		),
		TokensActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oauth_tokens_active",
				Help: "Current number of live token pairs",
			},
		),

		CredentialVerificationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credential_verification_total",
				Help: "Total number of bearer credential verifications",
			},
			[]string{"method", "result"}, // method: access_token, api_key
		),
		CredentialVerificationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credential_verification_duration_seconds",
				Help:    "Time taken to verify a bearer credential",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		APIKeyMigrationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "api_key_hash_migrations_total",
				Help: "Total number of legacy api key hashes rewritten to the current scheme",
			},
		),

		ClientRegistrationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_client_registrations_total",
				Help: "Total number of dynamic client registrations",
			},
			[]string{"result"}, // success, error
		),
		ClientsRegistered: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oauth_clients_registered",
				Help: "Current number of registered clients",
			},
		),

		UsersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "users_active",
				Help: "Current number of active users",
			},
		),

		UpstreamCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_idp_calls_total",
				Help: "Total number of upstream identity provider calls",
			},
			[]string{"operation", "result"},
		),
		UpstreamCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_idp_call_duration_seconds",
				Help:    "Duration of upstream identity provider calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests",
			},
		),

		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
		),
	}
}

const (
	resultSuccess = "success"
	resultError   = "error"
)

func (m *Metrics) RecordAuthorizationRequest(outcome string) {
	m.AuthorizationRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCodeIssued() {
	m.CodesIssuedTotal.Inc()
}

func (m *Metrics) RecordCodeExchange(result string, duration time.Duration) {
	m.CodeExchangeTotal.WithLabelValues(result).Inc()
	m.CodeExchangeDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordTokenIssued(grantType string, duration time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(grantType).Inc()
	m.TokenIssuanceDuration.Observe(duration.Seconds())
	m.TokensActive.Inc()
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.TokensRefreshedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTokenRevoked(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	m.TokensRevokedTotal.WithLabelValues(result).Inc()
	if hit {
		m.TokensActive.Dec()
	}
}

func (m *Metrics) RecordCredentialVerification(method, result string, duration time.Duration) {
	m.CredentialVerificationTotal.WithLabelValues(method, result).Inc()
	m.CredentialVerificationDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordAPIKeyMigration() {
	m.APIKeyMigrationsTotal.Inc()
}

func (m *Metrics) RecordClientRegistered(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.ClientRegistrationsTotal.WithLabelValues(result).Inc()
	if success {
		m.ClientsRegistered.Inc()
	}
}

func (m *Metrics) RecordUpstreamCall(operation string, success bool, duration time.Duration) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.UpstreamCallsTotal.WithLabelValues(operation, result).Inc()
	m.UpstreamCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) SetActiveTokensCount(count int) {
	m.TokensActive.Set(float64(count))
}

func (m *Metrics) SetActiveUsersCount(count int) {
	m.UsersActive.Set(float64(count))
}

func (m *Metrics) SetRegisteredClientsCount(count int) {
	m.ClientsRegistered.Set(float64(count))
}

func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}

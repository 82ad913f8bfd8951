package bootstrap

import (
	"log"
	"net/http"

	"github.com/go-mcpauth/mcpauth/internal/auth"
	"github.com/go-mcpauth/mcpauth/internal/client"
	"github.com/go-mcpauth/mcpauth/internal/config"
	"github.com/go-mcpauth/mcpauth/internal/core"

	"github.com/appleboy/go-httpclient"
)

// initializeIdentityProvider creates the upstream Discord provider when its
// credentials are configured. A nil return switches /authorize to the local
// API-key form.
func initializeIdentityProvider(cfg *config.Config) core.IdentityProvider {
	if !cfg.DiscordConfigured() {
		log.Println("No upstream identity provider configured; /authorize serves the local API-key form")
		return nil
	}

	provider := auth.NewDiscordProvider(auth.DiscordProviderConfig{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURL:  cfg.IssuerURL() + "/callback",
		Scopes:       cfg.DiscordScopes,
		AuthURL:      cfg.DiscordAuthURL,
		TokenURL:     cfg.DiscordTokenURL,
		APIBaseURL:   cfg.DiscordAPIBaseURL,
	}, createUpstreamHTTPClient(cfg))

	log.Printf("Upstream identity provider configured: %s (callback %s/callback)",
		provider.Name(), cfg.IssuerURL())
	return provider
}

// createUpstreamHTTPClient creates the HTTP client for upstream IdP requests
// with an optimized connection pool
func createUpstreamHTTPClient(cfg *config.Config) *http.Client {
	if cfg.UpstreamInsecureSkipVerify {
		log.Printf("WARNING: upstream TLS verification is disabled (UPSTREAM_INSECURE_SKIP_VERIFY=true)")
	}

	transport := client.CreateOptimizedTransport(cfg.UpstreamInsecureSkipVerify)

	httpClient, err := httpclient.NewClient(
		httpclient.WithTimeout(cfg.UpstreamTimeout),
		httpclient.WithTransport(transport),
	)
	if err != nil {
		log.Fatalf("Failed to create upstream HTTP client: %v", err)
	}

	return httpClient
}

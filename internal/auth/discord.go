package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-mcpauth/mcpauth/internal/core"

	"golang.org/x/oauth2"
)

// DiscordProviderConfig contains configuration for the Discord provider.
type DiscordProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
}

// Compile-time interface check.
var _ core.IdentityProvider = (*DiscordProvider)(nil)

// DiscordProvider establishes user identity through Discord's OAuth2 API.
// The HTTP client controls timeouts for both the token exchange and the
// profile fetch.
type DiscordProvider struct {
	config     *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewDiscordProvider creates a Discord identity provider.
func NewDiscordProvider(cfg DiscordProviderConfig, httpClient *http.Client) *DiscordProvider {
	return &DiscordProvider{
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: httpClient,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// AuthURL returns the Discord authorization URL carrying state.
func (p *DiscordProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange redeems the upstream code and fetches the user profile.
func (p *DiscordProvider) Exchange(ctx context.Context, code string) (*core.Identity, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamExchange, err)
	}

	return p.fetchProfile(ctx, token)
}

func (p *DiscordProvider) Name() string {
	return "discord"
}

// discordUser is the subset of Discord's /users/@me response we use.
type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (p *DiscordProvider) fetchProfile(
	ctx context.Context,
	token *oauth2.Token,
) (*core.Identity, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, p.apiBaseURL+"/users/@me", nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamProfile, err)
	}

	client := p.config.Client(ctx, token)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamProfile, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s - %s", ErrUpstreamProfile, resp.Status, string(body))
	}

	var user discordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamProfile, err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("%w: response missing user id", ErrUpstreamProfile)
	}

	return &core.Identity{
		UserID:   user.ID,
		Username: user.Username,
	}, nil
}

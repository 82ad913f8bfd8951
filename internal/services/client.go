package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-mcpauth/mcpauth/internal/core"
	"github.com/go-mcpauth/mcpauth/internal/models"
	"github.com/go-mcpauth/mcpauth/internal/store"

	"github.com/google/uuid"
)

var ErrClientNotFound = errors.New("client not found")

// DefaultClientName is used when registration omits client_name.
const DefaultClientName = "Unknown Client"

// ClientService handles dynamic client registration (RFC 7591). All clients
// are public; no secret is ever issued.
type ClientService struct {
	store   *store.Store
	metrics core.Recorder
}

func NewClientService(s *store.Store, m core.Recorder) *ClientService {
	return &ClientService{
		store:   s,
		metrics: m,
	}
}

// Register creates a client with a generated id. Registration is
// best-effort: a missing name gets a default, missing redirect URIs leave the
// client restricted to the on-page code display fallback.
func (s *ClientService) Register(
	ctx context.Context,
	name string,
	redirectURIs []string,
) (*models.OAuthClient, error) {
	if name == "" {
		name = DefaultClientName
	}
	if redirectURIs == nil {
		redirectURIs = []string{}
	}

	client := &models.OAuthClient{
		ClientID:     uuid.New().String(),
		Name:         name,
		RedirectURIs: models.StringArray(redirectURIs),
	}

	if err := s.store.CreateClient(client); err != nil {
		s.metrics.RecordClientRegistered(false)
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.metrics.RecordClientRegistered(true)
	log.Printf("[Client] Registered client %s (%q, %d redirect uris)",
		client.ClientID, client.Name, len(client.RedirectURIs))
	return client, nil
}

// Get returns a registered client by id.
func (s *ClientService) Get(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	client, err := s.store.GetClient(clientID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}
	return client, nil
}

package xmlapi

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// Session manages custom URL categories in one scope over the XML API.
// It implements engine.Session.
type Session struct {
	client *Client
	scope  engine.Scope
	logger zerolog.Logger
}

var _ engine.Session = (*Session)(nil)

// Open creates a client for config and authenticates it.
func Open(ctx context.Context, config *Config, logger zerolog.Logger) (*Session, error) {
	client, err := NewClient(config, logger)
	if err != nil {
		return nil, err
	}
	if err := client.Keygen(ctx); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	return NewSession(client, config.Scope), nil
}

// NewSession binds an authenticated client to scope.
func NewSession(client *Client, scope engine.Scope) *Session {
	return &Session{
		client: client,
		scope:  scope,
		logger: client.logger.With().Str("scope", scope.String()).Logger(),
	}
}

// Scope returns the parent scope of every operation.
func (s *Session) Scope() engine.Scope {
	return s.scope
}

// List returns every custom URL category in scope.
func (s *Session) List(ctx context.Context) ([]engine.CustomURLCategory, error) {
	inner, err := s.client.Get(ctx, CategoryXPath(s.scope))
	if err != nil {
		return nil, err
	}
	listing, err := DecodeListing(inner)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("count", len(listing)).Msg("Fetched listing")
	return listing, nil
}

// Create adds obj with every field set.
func (s *Session) Create(ctx context.Context, obj engine.CustomURLCategory) error {
	element, err := EncodeEntryChildren(obj)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, EntryXPath(s.scope, obj.Name), element)
}

// Update overwrites the entry named obj.Name with obj.
func (s *Session) Update(ctx context.Context, obj engine.CustomURLCategory) error {
	element, err := EncodeEntry(obj)
	if err != nil {
		return err
	}
	return s.client.Edit(ctx, EntryXPath(s.scope, obj.Name), element)
}

// Delete removes the entry called name.
func (s *Session) Delete(ctx context.Context, name string) error {
	return s.client.Delete(ctx, EntryXPath(s.scope, name))
}

// Commit commits pending changes. A device-group scope pushes to its group
// unless opts names another.
func (s *Session) Commit(ctx context.Context, opts engine.CommitOptions) (*engine.CommitResult, error) {
	if opts.DeviceGroup == "" && s.scope.IsPanorama() {
		opts.DeviceGroup = s.scope.DeviceGroup
	}
	return s.client.Commit(ctx, opts)
}

// Close releases idle connections.
func (s *Session) Close() error {
	s.client.http.CloseIdleConnections()
	return nil
}

// Package clients implements the client registry: authentication of
// client credentials and authorization of the grant types and scopes a
// registered client may use.
package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// Registry validates client identifiers and secrets against the client
// store and answers grant-type and scope authorization questions.
type Registry struct {
	repo domain.ClientRepository
}

// NewRegistry creates a Registry backed by the given client repository.
func NewRegistry(repo domain.ClientRepository) *Registry {
	return &Registry{repo: repo}
}

// Authenticate validates client credentials and returns the client.
//
// Public clients authenticate with client_id alone and must not send a
// secret. Confidential clients require a secret matching the stored
// bcrypt hash; the comparison does not leak timing on the match.
// Deactivated clients are refused identically to unknown ones.
func (r *Registry) Authenticate(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	if clientID == "" {
		return nil, serrors.NewInvalidClient("client_id is required")
	}

	cli, err := r.repo.GetClient(ctx, clientID)
	if err != nil {
		log.Debug().Err(err).Str("client_id", clientID).Msg("client lookup failed")
		return nil, serrors.NewInvalidClient("invalid client credentials")
	}

	if !cli.Active {
		return nil, serrors.NewInvalidClient("invalid client credentials")
	}

	if cli.IsPublic() {
		if clientSecret != "" {
			return nil, serrors.NewInvalidClient("public client must not send a client secret")
		}
		return cli, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cli.SecretHash), []byte(clientSecret)); err != nil {
		return nil, serrors.NewInvalidClient("invalid client credentials")
	}

	return cli, nil
}

// Lookup resolves a client by ID without a credential check, for the
// front channel where secrets never travel. Unknown and deactivated
// clients are refused identically.
func (r *Registry) Lookup(ctx context.Context, clientID string) (*domain.Client, error) {
	if clientID == "" {
		return nil, serrors.NewInvalidClient("client_id is required")
	}

	cli, err := r.repo.GetClient(ctx, clientID)
	if err != nil || !cli.Active {
		return nil, serrors.NewInvalidClient("unknown client")
	}

	return cli, nil
}

// AuthorizeGrant checks that the client lists the grant type. Fails
// closed: an unlisted grant type is rejected, never implicitly allowed.
func (r *Registry) AuthorizeGrant(cli *domain.Client, gt domain.GrantType) error {
	if !cli.AllowsGrant(gt) {
		return serrors.NewUnauthorizedClient(
			fmt.Sprintf("client is not authorized for the %s grant", gt))
	}
	return nil
}

// AuthorizeScopes resolves the scope set for a request. Every requested
// scope must be configured for the client; an empty request falls back
// to the client's full default set.
func (r *Registry) AuthorizeScopes(cli *domain.Client, requested domain.Scope) (domain.Scope, error) {
	if requested.IsEmpty() {
		return cli.AllowedScopes.Clone(), nil
	}

	if missing := requested.Missing(cli.AllowedScopes); len(missing) > 0 {
		return nil, serrors.NewInvalidScope(
			fmt.Sprintf("scope not allowed for this client: %s", strings.Join(missing, " ")))
	}

	return requested.Clone(), nil
}

// RegisterClient hashes the plaintext secret and creates the client
// record. Public clients are stored without a secret hash.
func (r *Registry) RegisterClient(ctx context.Context, cli *domain.Client, plainSecret string) error {
	if cli.ID == "" {
		cli.ID = uuid.NewString()
	}
	if cli.Type == domain.ClientTypeConfidential {
		if plainSecret == "" {
			return fmt.Errorf("confidential client %s requires a secret", cli.ID)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(plainSecret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash client secret: %w", err)
		}
		cli.SecretHash = string(hash)
	}

	cli.Active = true
	cli.CreatedAt = time.Now().UTC()
	cli.UpdatedAt = cli.CreatedAt

	if err := r.repo.CreateClient(ctx, cli); err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	log.Info().Str("client_id", cli.ID).Str("client_type", string(cli.Type)).Msg("client registered")

	return nil
}

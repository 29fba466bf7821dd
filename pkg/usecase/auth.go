package usecase

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/interfaces"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
)

// Auth authenticates inbound callers by trying each configured
// Authenticator in order
type Auth struct {
	authenticators []interfaces.Authenticator
}

// NewAuth creates a new Auth use case
func NewAuth(authenticators ...interfaces.Authenticator) *Auth {
	return &Auth{authenticators: authenticators}
}

// Authenticate returns the caller owning token. The first authenticator that
// accepts the token wins; an error other than model.ErrUnauthenticated stops
// the search.
func (a *Auth) Authenticate(ctx context.Context, token string) (*model.Caller, error) {
	if token == "" {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "token is required")
	}

	for _, authn := range a.authenticators {
		caller, err := authn.Authenticate(ctx, token)
		if err == nil {
			ctxlog.From(ctx).Debug("authenticated caller", "caller", caller.Name)
			return caller, nil
		}
		if !errors.Is(err, model.ErrUnauthenticated) {
			return nil, goerr.Wrap(err, "failed to authenticate caller")
		}
	}

	return nil, goerr.Wrap(model.ErrUnauthenticated, "no authenticator accepted the token")
}

// TokenEntry maps one API token to a user name
type TokenEntry struct {
	Token string `yaml:"token"`
	User  string `yaml:"user"`
}

// StaticTokens authenticates callers from a fixed token list
type StaticTokens struct {
	entries []TokenEntry
}

// NewStaticTokens creates a new StaticTokens authenticator
func NewStaticTokens(entries []TokenEntry) *StaticTokens {
	return &StaticTokens{entries: entries}
}

// Authenticate implements interfaces.Authenticator
func (s *StaticTokens) Authenticate(ctx context.Context, token string) (*model.Caller, error) {
	for _, e := range s.entries {
		if e.Token != "" && subtle.ConstantTimeCompare([]byte(e.Token), []byte(token)) == 1 {
			return &model.Caller{Name: e.User}, nil
		}
	}
	return nil, goerr.Wrap(model.ErrUnauthenticated, "unknown token")
}

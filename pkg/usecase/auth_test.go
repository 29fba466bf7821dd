package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/usecase"
)

type authFunc func(ctx context.Context, token string) (*model.Caller, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (*model.Caller, error) {
	return f(ctx, token)
}

func TestAuthStaticTokens(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx = ctxlog.With(ctx, logger)

	auth := usecase.NewAuth(usecase.NewStaticTokens([]usecase.TokenEntry{
		{Token: "t-alice", User: "alice"},
		{Token: "t-bob", User: "bob"},
	}))

	t.Run("Known token", func(t *testing.T) {
		caller, err := auth.Authenticate(ctx, "t-bob")
		gt.NoError(t, err).Required()
		gt.Equal(t, "bob", caller.Name)
	})

	t.Run("Unknown token", func(t *testing.T) {
		_, err := auth.Authenticate(ctx, "t-carol")
		gt.True(t, errors.Is(err, model.ErrUnauthenticated))
	})

	t.Run("Empty token", func(t *testing.T) {
		_, err := auth.Authenticate(ctx, "")
		gt.True(t, errors.Is(err, model.ErrUnauthenticated))
	})
}

func TestAuthChain(t *testing.T) {
	ctx := context.Background()

	rejecting := authFunc(func(ctx context.Context, token string) (*model.Caller, error) {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "rejected")
	})
	accepting := authFunc(func(ctx context.Context, token string) (*model.Caller, error) {
		return &model.Caller{Name: "hub-user"}, nil
	})
	broken := authFunc(func(ctx context.Context, token string) (*model.Caller, error) {
		return nil, goerr.New("hub is down")
	})

	t.Run("Falls through to next authenticator", func(t *testing.T) {
		caller, err := usecase.NewAuth(rejecting, accepting).Authenticate(ctx, "token")
		gt.NoError(t, err).Required()
		gt.Equal(t, "hub-user", caller.Name)
	})

	t.Run("Stops on failure", func(t *testing.T) {
		_, err := usecase.NewAuth(broken, accepting).Authenticate(ctx, "token")
		gt.Error(t, err)
		gt.False(t, errors.Is(err, model.ErrUnauthenticated))
	})

	t.Run("No authenticators", func(t *testing.T) {
		_, err := usecase.NewAuth().Authenticate(ctx, "token")
		gt.True(t, errors.Is(err, model.ErrUnauthenticated))
	})
}

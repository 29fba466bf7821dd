package interfaces

import (
	"context"

	"github.com/secmon-lab/mmpost/pkg/domain/model"
)

// Authenticator resolves an inbound API token to the calling user. It returns
// an error wrapping model.ErrUnauthenticated when the token is not accepted.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Caller, error)
}

package interfaces

import (
	"context"

	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// Deliverer is the boundary of the destination resolution and delivery
// pipeline
type Deliverer interface {
	Deliver(ctx context.Context, input model.DeliverInput) (*model.DeliveryResult, error)
}

// Resolver turns a destination into a channel the bot may post to
type Resolver interface {
	Resolve(ctx context.Context, dest model.Destination, team types.TeamName) (types.ChannelID, error)
}

package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/interfaces"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
	"github.com/secmon-lab/mmpost/pkg/utils/metrics"
)

// DefaultTimeout bounds one whole resolution and delivery sequence
const DefaultTimeout = 30 * time.Second

// PosterConfig holds configuration for the Poster use case
type PosterConfig struct {
	defaultTeam types.TeamName
	timeout     time.Duration
}

// PosterOption is a functional option for configuring Poster
type PosterOption func(*PosterConfig)

// WithTimeout sets the deadline applied to each delivery
func WithTimeout(d time.Duration) PosterOption {
	return func(c *PosterConfig) {
		c.timeout = d
	}
}

// Poster runs the destination resolution and delivery pipeline
type Poster struct {
	resolver interfaces.Resolver
	delivery *Delivery
	config   PosterConfig
}

// NewPoster creates a Poster posting into defaultTeam unless a request
// overrides it
func NewPoster(platform interfaces.Platform, defaultTeam types.TeamName, opts ...PosterOption) *Poster {
	config := PosterConfig{
		defaultTeam: defaultTeam,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &Poster{
		resolver: NewResolver(platform),
		delivery: NewDelivery(platform),
		config:   config,
	}
}

// Deliver resolves input.Destination and posts the message there
func (p *Poster) Deliver(ctx context.Context, input model.DeliverInput) (*model.DeliveryResult, error) {
	deliveryID := types.NewDeliveryID()
	logger := ctxlog.From(ctx).With("delivery_id", deliveryID)
	ctx = ctxlog.With(ctx, logger)

	postID, err := p.deliver(ctx, input)
	if err != nil {
		kind := model.KindOf(err)
		metrics.IncDelivery(kind.String())
		logger.Info("delivery failed",
			"destination", input.Destination,
			"kind", kind,
			"error", err,
		)
		return nil, err
	}

	metrics.IncDelivery("success")
	logger.Info("delivered message",
		"destination", input.Destination,
		"post_id", postID,
		"has_attachment", input.Attachment != nil,
	)
	return &model.DeliveryResult{DeliveryID: deliveryID, PostID: postID}, nil
}

func (p *Poster) deliver(ctx context.Context, input model.DeliverInput) (types.PostID, error) {
	dest, err := model.ParseDestination(input.Destination)
	if err != nil {
		return "", err
	}

	team := input.Team
	if team == "" {
		team = p.config.defaultTeam
	}
	if team == "" {
		return "", goerr.New("team is not specified", goerr.T(model.TagInvalidRequest))
	}

	if p.config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.timeout)
		defer cancel()
	}

	channelID, err := p.resolver.Resolve(ctx, dest, team)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve destination",
			goerr.V("destination", dest.String()),
			goerr.V("team", team))
	}

	postID, err := p.delivery.Send(ctx, &model.Message{
		ChannelID:  channelID,
		Text:       input.Message,
		Attachment: input.Attachment,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to deliver message",
			goerr.V("channel_id", channelID))
	}

	return postID, nil
}

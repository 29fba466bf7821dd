package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/interfaces"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// Resolver turns a destination into a channel id the bot is allowed to post
// to. Nothing is cached: the bot identity, users, teams and memberships are
// looked up again for every request.
type Resolver struct {
	platform interfaces.Platform
}

// NewResolver creates a new Resolver
func NewResolver(platform interfaces.Platform) *Resolver {
	return &Resolver{platform: platform}
}

// Resolve returns the channel id for dest within team. For a user it obtains
// the direct channel with the bot, for a channel it makes sure the bot is a
// member. The steps run strictly in order and the first failure aborts.
func (r *Resolver) Resolve(ctx context.Context, dest model.Destination, team types.TeamName) (types.ChannelID, error) {
	me, err := r.platform.GetMe(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve bot identity", goerr.T(model.TagUpstream))
	}

	if dest.IsDirect() {
		return r.resolveDirect(ctx, me, dest, team)
	}
	return r.resolveChannel(ctx, me, dest, team)
}

func (r *Resolver) resolveDirect(ctx context.Context, me types.UserID, dest model.Destination, team types.TeamName) (types.ChannelID, error) {
	logger := ctxlog.From(ctx)

	other, err := r.platform.GetUserByUsername(ctx, dest.User)
	if err != nil {
		if model.IsNotFound(err) {
			return "", goerr.Wrap(err, dest.String()+" does not exist",
				goerr.T(model.TagDestinationNotFound))
		}
		return "", goerr.Wrap(err, "failed to look up user", goerr.T(model.TagUpstream))
	}

	teamID, err := r.platform.GetTeamByName(ctx, team)
	if err != nil {
		if model.IsNotFound(err) {
			return "", goerr.Wrap(err, "team "+team.String()+" does not exist",
				goerr.T(model.TagDestinationNotFound))
		}
		return "", goerr.Wrap(err, "failed to look up team", goerr.T(model.TagUpstream))
	}

	if err := r.platform.GetTeamMember(ctx, teamID, other); err != nil {
		if model.IsNotFound(err) {
			return "", goerr.Wrap(err, dest.String()+" is not a member of "+team.String(),
				goerr.T(model.TagNotAuthorizedMember))
		}
		return "", goerr.Wrap(err, "failed to check team membership", goerr.T(model.TagUpstream))
	}

	if err := ctx.Err(); err != nil {
		return "", goerr.Wrap(err, "request cancelled before creating direct channel", goerr.T(model.TagUpstream))
	}

	channelID, err := r.platform.CreateDirectChannel(ctx, me, other)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open direct channel", goerr.T(model.TagUpstream))
	}

	logger.Debug("resolved direct channel",
		"destination", dest.String(),
		"channel_id", channelID,
	)
	return channelID, nil
}

func (r *Resolver) resolveChannel(ctx context.Context, me types.UserID, dest model.Destination, team types.TeamName) (types.ChannelID, error) {
	logger := ctxlog.From(ctx)

	channelID, err := r.platform.GetChannelByName(ctx, team, dest.Channel)
	if err != nil {
		if model.IsNotFound(err) {
			// a private channel the bot cannot see is indistinguishable from
			// a missing one and is reported the same way
			return "", goerr.Wrap(err, dest.String()+" does not exist or is private",
				goerr.T(model.TagDestinationNotFound))
		}
		return "", goerr.Wrap(err, "failed to look up channel", goerr.T(model.TagUpstream))
	}

	if err := ctx.Err(); err != nil {
		return "", goerr.Wrap(err, "request cancelled before joining channel", goerr.T(model.TagUpstream))
	}

	if err := r.platform.AddChannelMember(ctx, channelID, me); err != nil {
		return "", goerr.Wrap(err, "failed to join channel", goerr.T(model.TagUpstream))
	}

	logger.Debug("resolved channel",
		"destination", dest.String(),
		"channel_id", channelID,
	)
	return channelID, nil
}

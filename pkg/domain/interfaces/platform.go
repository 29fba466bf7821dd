package interfaces

import (
	"context"

	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// Platform is the subset of the Mattermost API the delivery pipeline uses.
// Implementations report a 404 with an error tagged model.TagNotFound.
type Platform interface {
	GetMe(ctx context.Context) (types.UserID, error)
	GetUserByUsername(ctx context.Context, name types.Username) (types.UserID, error)
	GetTeamByName(ctx context.Context, name types.TeamName) (types.TeamID, error)
	GetTeamMember(ctx context.Context, teamID types.TeamID, userID types.UserID) error
	CreateDirectChannel(ctx context.Context, userID, otherID types.UserID) (types.ChannelID, error)
	GetChannelByName(ctx context.Context, team types.TeamName, name types.ChannelName) (types.ChannelID, error)
	AddChannelMember(ctx context.Context, channelID types.ChannelID, userID types.UserID) error
	UploadFile(ctx context.Context, channelID types.ChannelID, filename string, data []byte) (types.FileID, error)
	CreatePost(ctx context.Context, channelID types.ChannelID, message string, fileIDs []types.FileID) (types.PostID, error)
}

package mattermost

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	mm "github.com/mattermost/mattermost-server/v6/model"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// seg escapes one path segment. Dot segments are percent-encoded so that
// resolving the path against the base URL keeps them as names.
func seg(s string) string {
	switch s {
	case ".", "..":
		return strings.ReplaceAll(s, ".", "%2E")
	}
	return url.PathEscape(s)
}

// GetMe returns the user the bot token belongs to
func (c *Client) GetMe(ctx context.Context) (types.UserID, error) {
	var user mm.User
	if err := c.Call(ctx, Request{
		Operation: "get_me",
		Method:    http.MethodGet,
		Path:      "users/me",
	}, &user); err != nil {
		return "", goerr.Wrap(err, "failed to get bot user")
	}
	return types.UserID(user.Id), nil
}

// GetUserByUsername looks up a user by username
func (c *Client) GetUserByUsername(ctx context.Context, name types.Username) (types.UserID, error) {
	var user mm.User
	if err := c.Call(ctx, Request{
		Operation: "get_user_by_username",
		Method:    http.MethodGet,
		Path:      "users/username/" + seg(name.String()),
	}, &user); err != nil {
		return "", goerr.Wrap(err, "failed to get user", goerr.V("username", name))
	}
	return types.UserID(user.Id), nil
}

// GetTeamByName looks up a team by its URL name
func (c *Client) GetTeamByName(ctx context.Context, name types.TeamName) (types.TeamID, error) {
	var team mm.Team
	if err := c.Call(ctx, Request{
		Operation: "get_team_by_name",
		Method:    http.MethodGet,
		Path:      "teams/name/" + seg(name.String()),
	}, &team); err != nil {
		return "", goerr.Wrap(err, "failed to get team", goerr.V("team", name))
	}
	return types.TeamID(team.Id), nil
}

// GetTeamMember succeeds only when userID is a member of teamID
func (c *Client) GetTeamMember(ctx context.Context, teamID types.TeamID, userID types.UserID) error {
	var member mm.TeamMember
	if err := c.Call(ctx, Request{
		Operation: "get_team_member",
		Method:    http.MethodGet,
		Path:      "teams/" + seg(teamID.String()) + "/members/" + seg(userID.String()),
	}, &member); err != nil {
		return goerr.Wrap(err, "failed to get team member",
			goerr.V("team_id", teamID),
			goerr.V("user_id", userID))
	}
	return nil
}

// CreateDirectChannel returns the direct channel between two users, creating
// it if needed. The platform returns the same channel for the same pair.
func (c *Client) CreateDirectChannel(ctx context.Context, userID, otherID types.UserID) (types.ChannelID, error) {
	var channel mm.Channel
	if err := c.Call(ctx, Request{
		Operation: "create_direct_channel",
		Method:    http.MethodPost,
		Path:      "channels/direct",
		Body:      []string{userID.String(), otherID.String()},
	}, &channel); err != nil {
		return "", goerr.Wrap(err, "failed to create direct channel",
			goerr.V("user_id", userID),
			goerr.V("other_id", otherID))
	}
	return types.ChannelID(channel.Id), nil
}

// GetChannelByName looks up a channel by team name and channel name. Private
// channels the bot cannot see are reported by the platform as not found.
func (c *Client) GetChannelByName(ctx context.Context, team types.TeamName, name types.ChannelName) (types.ChannelID, error) {
	var channel mm.Channel
	if err := c.Call(ctx, Request{
		Operation: "get_channel_by_name",
		Method:    http.MethodGet,
		Path:      "teams/name/" + seg(team.String()) + "/channels/name/" + seg(name.String()),
	}, &channel); err != nil {
		return "", goerr.Wrap(err, "failed to get channel",
			goerr.V("team", team),
			goerr.V("channel", name))
	}
	return types.ChannelID(channel.Id), nil
}

// AddChannelMember adds userID to the channel. Adding an existing member
// succeeds without changes.
func (c *Client) AddChannelMember(ctx context.Context, channelID types.ChannelID, userID types.UserID) error {
	var member mm.ChannelMember
	if err := c.Call(ctx, Request{
		Operation: "add_channel_member",
		Method:    http.MethodPost,
		Path:      "channels/" + seg(channelID.String()) + "/members",
		Body:      map[string]string{"user_id": userID.String()},
	}, &member); err != nil {
		return goerr.Wrap(err, "failed to add channel member",
			goerr.V("channel_id", channelID),
			goerr.V("user_id", userID))
	}
	return nil
}

// UploadFile uploads data into the channel and returns the file reference
func (c *Client) UploadFile(ctx context.Context, channelID types.ChannelID, filename string, data []byte) (types.FileID, error) {
	var resp mm.FileUploadResponse
	if err := c.Call(ctx, Request{
		Operation: "upload_file",
		Method:    http.MethodPost,
		Path:      "files",
		Query: url.Values{
			"channel_id": {channelID.String()},
			"filename":   {filename},
		},
		Body: data,
	}, &resp); err != nil {
		return "", goerr.Wrap(err, "failed to upload file",
			goerr.V("channel_id", channelID),
			goerr.V("size", len(data)))
	}

	if len(resp.FileInfos) == 0 || resp.FileInfos[0] == nil || resp.FileInfos[0].Id == "" {
		return "", goerr.New("upload response has no file info",
			goerr.T(model.TagUpstream),
			goerr.V("channel_id", channelID))
	}
	return types.FileID(resp.FileInfos[0].Id), nil
}

// CreatePost posts message with the given file references to the channel
func (c *Client) CreatePost(ctx context.Context, channelID types.ChannelID, message string, fileIDs []types.FileID) (types.PostID, error) {
	ids := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		ids = append(ids, id.String())
	}

	req := &createPostRequest{
		ChannelID: channelID.String(),
		Message:   message,
		FileIDs:   ids,
	}

	var post mm.Post
	if err := c.Call(ctx, Request{
		Operation: "create_post",
		Method:    http.MethodPost,
		Path:      "posts",
		Body:      req,
	}, &post); err != nil {
		return "", goerr.Wrap(err, "failed to create post",
			goerr.V("channel_id", channelID),
			goerr.V("file_count", len(ids)))
	}
	return types.PostID(post.Id), nil
}

// createPostRequest is the minimal body accepted by POST posts
type createPostRequest struct {
	ChannelID string   `json:"channel_id"`
	Message   string   `json:"message"`
	FileIDs   []string `json:"file_ids"`
}

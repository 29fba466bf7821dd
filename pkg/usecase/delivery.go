package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/interfaces"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// Delivery uploads the optional attachment and creates the post
type Delivery struct {
	platform interfaces.Platform
}

// NewDelivery creates a new Delivery
func NewDelivery(platform interfaces.Platform) *Delivery {
	return &Delivery{platform: platform}
}

// Send posts msg to its channel and returns the post id. If the upload
// succeeds but the post fails, the uploaded file stays on the platform.
func (d *Delivery) Send(ctx context.Context, msg *model.Message) (types.PostID, error) {
	logger := ctxlog.From(ctx)
	fileIDs := []types.FileID{}

	if msg.Attachment != nil {
		if err := ctx.Err(); err != nil {
			return "", goerr.Wrap(err, "request cancelled before upload", goerr.T(model.TagUpstream))
		}

		fileID, err := d.platform.UploadFile(ctx, msg.ChannelID, model.UploadFilename, msg.Attachment.Data)
		if err != nil {
			return "", goerr.Wrap(err, "failed to upload attachment", goerr.T(model.TagUpstream))
		}
		fileIDs = append(fileIDs, fileID)
	}

	if err := ctx.Err(); err != nil {
		logOrphans(ctx, fileIDs)
		return "", goerr.Wrap(err, "request cancelled before posting", goerr.T(model.TagUpstream))
	}

	postID, err := d.platform.CreatePost(ctx, msg.ChannelID, msg.Text, fileIDs)
	if err != nil {
		logOrphans(ctx, fileIDs)
		return "", goerr.Wrap(err, "failed to create post", goerr.T(model.TagUpstream))
	}

	logger.Debug("created post",
		"channel_id", msg.ChannelID,
		"post_id", postID,
		"file_count", len(fileIDs),
	)
	return postID, nil
}

func logOrphans(ctx context.Context, fileIDs []types.FileID) {
	if len(fileIDs) == 0 {
		return
	}
	ctxlog.From(ctx).Warn("uploaded attachment left without a post",
		"file_ids", fileIDs,
	)
}

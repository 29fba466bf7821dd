package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/cli/config"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdSend() *cli.Command {
	var (
		mattermostCfg config.Mattermost
		filePath      string
		team          string
	)

	flags := joinFlags(
		mattermostCfg.Flags(),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "Path of a PNG image to attach",
				Destination: &filePath,
			},
			&cli.StringFlag{
				Name:        "team",
				Usage:       "Team to resolve the destination in (defaults to --mattermost-team)",
				Destination: &team,
			},
		},
	)

	return &cli.Command{
		Name:      "send",
		Usage:     "Deliver a message directly with the bot credentials",
		ArgsUsage: "CHANNEL MESSAGE...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			channel, message, err := messageArgs(c)
			if err != nil {
				return err
			}

			poster, err := mattermostCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure mattermost")
			}

			attachment, err := readAttachmentFile(filePath)
			if err != nil {
				return err
			}

			ctxlog.From(ctx).Debug("Sending message",
				slog.Any("mattermost", mattermostCfg),
				slog.String("channel", channel),
			)

			result, err := poster.Deliver(ctx, model.DeliverInput{
				Message:     message,
				Destination: channel,
				Attachment:  attachment,
				Team:        types.TeamName(team),
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, result.PostID)
			return nil
		},
	}
}

// messageArgs returns the destination and the message joined by spaces
func messageArgs(c *cli.Command) (string, string, error) {
	args := c.Args().Slice()
	if len(args) < 2 {
		return "", "", goerr.New("CHANNEL and MESSAGE are required", goerr.T(model.TagInvalidRequest))
	}
	return args[0], strings.Join(args[1:], " "), nil
}

func readAttachmentFile(path string) (*model.Attachment, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read attachment", goerr.V("path", path))
	}
	return model.NewAttachment(data), nil
}

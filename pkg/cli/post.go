package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/secmon-lab/mmpost/pkg/cli/config"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
	"github.com/secmon-lab/mmpost/pkg/service/jupyterpost"
	"github.com/urfave/cli/v3"
)

func cmdPost() *cli.Command {
	var (
		clientCfg config.Client
		filePath  string
		team      string
	)

	flags := joinFlags(
		clientCfg.Flags(),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "Path of a PNG image to attach",
				Destination: &filePath,
			},
			&cli.StringFlag{
				Name:        "team",
				Usage:       "Team to resolve the destination in",
				Destination: &team,
			},
		},
	)

	return &cli.Command{
		Name:      "post",
		Usage:     "Post a message through a running mmpost service",
		ArgsUsage: "CHANNEL MESSAGE...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			channel, message, err := messageArgs(c)
			if err != nil {
				return err
			}
			if err := clientCfg.Validate(); err != nil {
				return err
			}

			var file []byte
			if filePath != "" {
				attachment, err := readAttachmentFile(filePath)
				if err != nil {
					return err
				}
				if attachment != nil {
					file = attachment.Data
				}
			}

			ctxlog.From(ctx).Debug("Posting message",
				slog.Any("client", clientCfg),
				slog.String("channel", channel),
				slog.Int("file_size", len(file)),
			)

			client := jupyterpost.New(clientCfg.URL, clientCfg.Token, nil)
			postID, err := client.Post(ctx, jupyterpost.PostInput{
				Channel: channel,
				Message: message,
				Team:    types.TeamName(team),
				File:    file,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, postID)
			return nil
		},
	}
}

package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

// Client holds settings of the "post" subcommand that talks to a running
// service
type Client struct {
	URL   string
	Token string
}

// Flags returns CLI flags for Client configuration
func (c *Client) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "url",
			Usage:       "URL of the mmpost service",
			Category:    "Client",
			Sources:     cli.EnvVars("JUPYTERPOST_URL"),
			Destination: &c.URL,
		},
		&cli.StringFlag{
			Name:        "token",
			Usage:       "API token of the calling user",
			Category:    "Client",
			Sources:     cli.EnvVars("JPY_API_TOKEN"),
			Destination: &c.Token,
		},
	}
}

// Validate validates the client configuration
func (c *Client) Validate() error {
	if c.URL == "" {
		return goerr.New("service URL is required (JUPYTERPOST_URL)", goerr.T(model.TagConfiguration))
	}
	if c.Token == "" {
		return goerr.New("API token is required (JPY_API_TOKEN)", goerr.T(model.TagConfiguration))
	}
	return nil
}

// LogValue returns structured log value without the token
func (c Client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", c.URL),
		slog.Bool("has_token", c.Token != ""),
	)
}

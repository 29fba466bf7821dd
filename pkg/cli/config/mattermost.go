package config

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
	"github.com/secmon-lab/mmpost/pkg/service/mattermost"
	"github.com/secmon-lab/mmpost/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Mattermost holds the bot account configuration
type Mattermost struct {
	URL     string
	Token   string
	Team    string
	Timeout time.Duration
}

// Flags returns CLI flags for Mattermost configuration
func (m *Mattermost) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "mattermost-url",
			Usage:       "Mattermost API base URL (e.g. https://mm.example.com/api/v4/)",
			Category:    "Mattermost",
			Sources:     cli.EnvVars("MMPOST_MATTERMOST_URL"),
			Destination: &m.URL,
		},
		&cli.StringFlag{
			Name:        "mattermost-token",
			Usage:       "Bot access token",
			Category:    "Mattermost",
			Sources:     cli.EnvVars("MMPOST_MATTERMOST_TOKEN"),
			Destination: &m.Token,
		},
		&cli.StringFlag{
			Name:        "mattermost-team",
			Usage:       "Default team name",
			Category:    "Mattermost",
			Sources:     cli.EnvVars("MMPOST_MATTERMOST_TEAM"),
			Destination: &m.Team,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Deadline for delivering one message",
			Category:    "Mattermost",
			Value:       usecase.DefaultTimeout,
			Sources:     cli.EnvVars("MMPOST_TIMEOUT"),
			Destination: &m.Timeout,
		},
	}
}

// Validate validates the Mattermost configuration
func (m *Mattermost) Validate() error {
	if m.URL == "" {
		return goerr.New("mattermost URL is required", goerr.T(model.TagConfiguration))
	}
	if m.Token == "" {
		return goerr.New("mattermost token is required", goerr.T(model.TagConfiguration))
	}
	if m.Team == "" {
		return goerr.New("mattermost team is required", goerr.T(model.TagConfiguration))
	}

	u, err := url.Parse(m.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return goerr.New("mattermost URL must be absolute",
			goerr.T(model.TagConfiguration),
			goerr.V("url", m.URL))
	}
	if m.Timeout < 0 {
		return goerr.New("timeout must not be negative",
			goerr.T(model.TagConfiguration),
			goerr.V("timeout", m.Timeout))
	}

	return nil
}

// Configure validates the configuration and builds the delivery pipeline
func (m *Mattermost) Configure() (*usecase.Poster, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	client, err := mattermost.New(m.URL, m.Token)
	if err != nil {
		return nil, err
	}

	var opts []usecase.PosterOption
	if m.Timeout > 0 {
		opts = append(opts, usecase.WithTimeout(m.Timeout))
	}
	return usecase.NewPoster(client, types.TeamName(m.Team), opts...), nil
}

// LogValue returns structured log value without the token
func (m Mattermost) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", m.URL),
		slog.Bool("has_token", m.Token != ""),
		slog.String("team", m.Team),
		slog.Duration("timeout", m.Timeout),
	)
}

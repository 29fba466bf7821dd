package config

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/interfaces"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/service/hub"
	"github.com/secmon-lab/mmpost/pkg/usecase"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Auth holds caller authentication configuration
type Auth struct {
	HubAPIURL      string
	HubServiceName string
	TokensFile     string
}

// Flags returns CLI flags for Auth configuration
func (a *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "hub-api-url",
			Usage:       "JupyterHub API URL used to identify callers by their token",
			Category:    "Auth",
			Sources:     cli.EnvVars("MMPOST_HUB_API_URL", "JUPYTERHUB_API_URL"),
			Destination: &a.HubAPIURL,
		},
		&cli.StringFlag{
			Name:        "hub-service-name",
			Usage:       "Hub service callers' tokens must be granted access to (empty disables the check)",
			Category:    "Auth",
			Value:       "jupyterpost",
			Sources:     cli.EnvVars("MMPOST_HUB_SERVICE_NAME", "JUPYTERHUB_SERVICE_NAME"),
			Destination: &a.HubServiceName,
		},
		&cli.StringFlag{
			Name:        "tokens-file",
			Usage:       "YAML file mapping API tokens to user names",
			Category:    "Auth",
			Sources:     cli.EnvVars("MMPOST_TOKENS_FILE"),
			Destination: &a.TokensFile,
		},
	}
}

// Configure builds the authenticator chain. The token file is consulted
// before the hub.
func (a *Auth) Configure() (*usecase.Auth, error) {
	if a.HubAPIURL == "" && a.TokensFile == "" {
		return nil, goerr.New("either hub API URL or tokens file is required",
			goerr.T(model.TagConfiguration))
	}

	var authenticators []interfaces.Authenticator
	if a.TokensFile != "" {
		entries, err := LoadTokensFromFile(a.TokensFile)
		if err != nil {
			return nil, err
		}
		authenticators = append(authenticators, usecase.NewStaticTokens(entries))
	}
	if a.HubAPIURL != "" {
		authenticators = append(authenticators, hub.New(a.HubAPIURL, a.HubServiceName, &http.Client{}))
	}

	return usecase.NewAuth(authenticators...), nil
}

// LogValue returns structured log value
func (a Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("hub_api_url", a.HubAPIURL),
		slog.String("hub_service_name", a.HubServiceName),
		slog.String("tokens_file", a.TokensFile),
	)
}

type tokensFile struct {
	Tokens []usecase.TokenEntry `yaml:"tokens"`
}

// LoadTokensFromFile loads API token entries from YAML file
func LoadTokensFromFile(path string) ([]usecase.TokenEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(err, "tokens file not found",
				goerr.T(model.TagConfiguration),
				goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to read tokens file",
			goerr.T(model.TagConfiguration),
			goerr.V("path", path))
	}

	var file tokensFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse tokens file",
			goerr.T(model.TagConfiguration),
			goerr.V("path", path))
	}

	for i, e := range file.Tokens {
		if e.Token == "" || e.User == "" {
			return nil, goerr.New("token entry requires both token and user",
				goerr.T(model.TagConfiguration),
				goerr.V("path", path),
				goerr.V("index", i))
		}
	}

	return file.Tokens, nil
}

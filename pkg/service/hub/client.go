package hub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
)

// Client authenticates callers against the JupyterHub REST API
type Client struct {
	apiURL     string
	service    string
	httpClient *http.Client
}

// New creates a Client for the hub API at apiURL (JUPYTERHUB_API_URL). When
// service is not empty, only tokens granted access to that hub service are
// accepted.
func New(apiURL, service string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		service:    service,
		httpClient: httpClient,
	}
}

type hubUser struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Scopes []string `json:"scopes"`
}

// canAccess reports whether the token scopes grant access to service
func (u *hubUser) canAccess(service string) bool {
	for _, scope := range u.Scopes {
		if scope == "access:services" || scope == "access:services!service="+service {
			return true
		}
	}
	return false
}

// Authenticate asks the hub who owns token. Only user tokens are accepted;
// tokens of hub services are rejected.
func (c *Client) Authenticate(ctx context.Context, token string) (*model.Caller, error) {
	if token == "" {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "empty token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/user", nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create hub request")
	}
	req.Header.Set("Authorization", "token "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call hub API")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, goerr.Wrap(model.ErrUnauthenticated, "hub rejected token",
			goerr.V("status", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, goerr.New("unexpected status from hub API",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var user hubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, goerr.Wrap(err, "failed to decode hub user")
	}
	if user.Name == "" || (user.Kind != "" && user.Kind != "user") {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "token does not belong to a user",
			goerr.V("kind", user.Kind))
	}

	if c.service != "" && !user.canAccess(c.service) {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "token has no access to the service",
			goerr.V("service", c.service),
			goerr.V("user", user.Name))
	}

	return &model.Caller{Name: user.Name}, nil
}

package jupyterpost

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// Client posts messages through a running mmpost service as the owner of
// token
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// New creates a Client for the service at url
func New(url, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		url:        url,
		token:      token,
		httpClient: httpClient,
	}
}

// PostInput is one message to send
type PostInput struct {
	Channel string
	Message string
	Team    types.TeamName
	File    []byte
}

// Post sends input as a multipart form and returns the created post id
func (c *Client) Post(ctx context.Context, input PostInput) (types.PostID, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"channel": input.Channel,
		"message": input.Message,
	}
	if input.Team != "" {
		fields["team"] = input.Team.String()
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", goerr.Wrap(err, "failed to write form field", goerr.V("field", k))
		}
	}
	if len(input.File) > 0 {
		fw, err := mw.CreateFormFile("file", model.UploadFilename)
		if err != nil {
			return "", goerr.Wrap(err, "failed to create form file")
		}
		if _, err := fw.Write(input.File); err != nil {
			return "", goerr.Wrap(err, "failed to write form file")
		}
	}
	if err := mw.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create request", goerr.V("url", c.url))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to send request", goerr.V("url", c.url))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read response", goerr.V("status", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK {
		var failure model.DeliveryFailure
		msg := string(bytes.TrimSpace(data))
		if json.Unmarshal(data, &failure) == nil && failure.Detail != "" {
			msg = failure.Detail
		}
		return "", goerr.New(msg,
			goerr.V("status", resp.StatusCode),
			goerr.V("kind", failure.Kind))
	}

	var result model.DeliveryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return "", goerr.Wrap(err, "failed to decode response", goerr.V("body", string(data)))
	}
	return result.PostID, nil
}

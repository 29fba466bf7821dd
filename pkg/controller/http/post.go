package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/interfaces"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
	"github.com/secmon-lab/mmpost/pkg/utils/apperr"
)

// PostHandler accepts message delivery requests from notebook users
type PostHandler struct {
	cfg       *Config
	deliverer interfaces.Deliverer
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(cfg *Config, deliverer interfaces.Deliverer) *PostHandler {
	return &PostHandler{
		cfg:       cfg,
		deliverer: deliverer,
	}
}

// FormatMessage prefixes message with the caller and the bot signature
func FormatMessage(caller, signature, message string) string {
	if signature == "" {
		return fmt.Sprintf("*@%s*: %s", caller, message)
	}
	return fmt.Sprintf("*@%s %s*: %s", caller, signature, message)
}

// HandlePost handles POST requests carrying form fields "message" and
// "channel", an optional "team" and an optional multipart "file".
func (h *PostHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := model.GetCaller(ctx)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if err := parseForm(r, h.cfg.MaxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid form body")
		return
	}

	message := r.FormValue("message")
	channel := r.FormValue("channel")
	if message == "" {
		writeError(w, r, http.StatusBadRequest, "missing argument message")
		return
	}
	if channel == "" {
		writeError(w, r, http.StatusBadRequest, "missing argument channel")
		return
	}

	attachment, err := readAttachment(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := h.deliverer.Deliver(ctx, model.DeliverInput{
		Message:     FormatMessage(caller.Name, h.cfg.Signature, message),
		Destination: channel,
		Attachment:  attachment,
		Team:        types.TeamName(r.FormValue("team")),
	})
	if err != nil {
		failure := model.NewDeliveryFailure(err)
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			apperr.Handle(ctx, err)
		}
		writeJSON(w, r, status, failure)
		return
	}

	ctxlog.From(ctx).Debug("Delivery accepted", "post_id", result.PostID)
	writeJSON(w, r, http.StatusOK, result)
}

func parseForm(r *http.Request, maxMemory int64) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return goerr.Wrap(err, "failed to parse multipart form")
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return goerr.Wrap(err, "failed to parse form")
	}
	return nil
}

func readAttachment(r *http.Request) (*model.Attachment, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read uploaded file")
	}
	return model.NewAttachment(data), nil
}

func statusOf(err error) int {
	switch model.KindOf(err) {
	case model.KindDestinationNotFound, model.KindInvalidRequest:
		return http.StatusBadRequest
	case model.KindNotAuthorizedMember:
		return http.StatusForbidden
	default:
		if model.IsTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
}

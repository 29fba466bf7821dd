package apperr

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
)

// Handle logs an error that could not be returned to anyone who can act on it
func Handle(ctx context.Context, err error) {
	logger := ctxlog.From(ctx)
	logger.Error("application error",
		"kind", model.KindOf(err),
		"error", err,
	)
}

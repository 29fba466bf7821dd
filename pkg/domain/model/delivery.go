package model

import (
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// DeliveryResult is the outcome of one delivery
type DeliveryResult struct {
	DeliveryID types.DeliveryID `json:"delivery_id"`
	PostID     types.PostID     `json:"post_id"`
}

// DeliveryFailure is the caller facing description of a failed delivery
type DeliveryFailure struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"error"`
}

// NewDeliveryFailure converts a pipeline error into its caller facing form.
// Only error messages end up in Detail; goerr values such as platform
// response bodies stay in logs.
func NewDeliveryFailure(err error) *DeliveryFailure {
	kind := KindOf(err)
	detail := err.Error()

	if kind == KindUpstream && IsTimeout(err) {
		detail = "chat platform did not respond in time"
	}

	return &DeliveryFailure{Kind: kind, Detail: detail}
}

package model

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Error tags classifying delivery failures. Every per-request error returned
// by the pipeline carries exactly one of the kind tags below.
var (
	TagDestinationNotFound = goerr.NewTag("destination_not_found")
	TagNotAuthorizedMember = goerr.NewTag("not_authorized_member")
	TagUpstream            = goerr.NewTag("upstream_error")
	TagConfiguration       = goerr.NewTag("configuration_error")
	TagInvalidRequest      = goerr.NewTag("invalid_request")

	// TagNotFound marks a 404 from the platform. It is only meaningful inside
	// the pipeline and is translated by the resolver into a failure kind.
	TagNotFound = goerr.NewTag("platform_not_found")
)

// Sentinel errors for domain operations
var (
	ErrUnauthenticated = goerr.New("caller is not authenticated")
)

// FailureKind is the caller visible category of a failed delivery
type FailureKind string

const (
	KindDestinationNotFound FailureKind = "DestinationNotFound"
	KindNotAuthorizedMember FailureKind = "NotAuthorizedMember"
	KindUpstream            FailureKind = "UpstreamError"
	KindConfiguration       FailureKind = "ConfigurationError"
	KindInvalidRequest      FailureKind = "InvalidRequest"
)

// String returns the string representation
func (k FailureKind) String() string {
	return string(k)
}

// KindOf classifies err. Untagged errors are reported as upstream failures
// because they can only originate from talking to the platform.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case goerr.HasTag(err, TagDestinationNotFound):
		return KindDestinationNotFound
	case goerr.HasTag(err, TagNotAuthorizedMember):
		return KindNotAuthorizedMember
	case goerr.HasTag(err, TagInvalidRequest):
		return KindInvalidRequest
	case goerr.HasTag(err, TagConfiguration):
		return KindConfiguration
	default:
		return KindUpstream
	}
}

// IsNotFound reports whether err is a 404 from the platform
func IsNotFound(err error) bool {
	return goerr.HasTag(err, TagNotFound)
}

// IsTimeout reports whether err was caused by the pipeline deadline
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

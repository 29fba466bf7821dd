package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// DestinationKind tells whether a destination names a channel or a user
type DestinationKind int

const (
	DestinationChannel DestinationKind = iota
	DestinationDirect
)

// Destination is a parsed caller supplied destination string
type Destination struct {
	Kind    DestinationKind
	Channel types.ChannelName
	User    types.Username
}

// ParseDestination parses "name" as a named channel and "@name" as a direct
// message to the user with that username.
func ParseDestination(s string) (Destination, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Destination{}, goerr.New("destination is empty", goerr.T(TagInvalidRequest))
	}

	if name, ok := strings.CutPrefix(s, "@"); ok {
		if name == "" {
			return Destination{}, goerr.New("destination user name is empty",
				goerr.T(TagInvalidRequest),
				goerr.V("destination", s))
		}
		return Destination{Kind: DestinationDirect, User: types.Username(name)}, nil
	}

	return Destination{Kind: DestinationChannel, Channel: types.ChannelName(s)}, nil
}

// IsDirect returns true if the destination is a user
func (d Destination) IsDirect() bool {
	return d.Kind == DestinationDirect
}

// String returns the destination in its caller facing form
func (d Destination) String() string {
	if d.IsDirect() {
		return "@" + d.User.String()
	}
	return d.Channel.String()
}

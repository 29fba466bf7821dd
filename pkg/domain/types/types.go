package types

import (
	"github.com/google/uuid"
)

// UserID represents a Mattermost user identifier
type UserID string

// String returns the string representation
func (id UserID) String() string {
	return string(id)
}

// Username represents a Mattermost username without the leading "@"
type Username string

// String returns the string representation
func (n Username) String() string {
	return string(n)
}

// TeamID represents a Mattermost team identifier
type TeamID string

// String returns the string representation
func (id TeamID) String() string {
	return string(id)
}

// TeamName represents a Mattermost team name (URL name, not display name)
type TeamName string

// String returns the string representation
func (n TeamName) String() string {
	return string(n)
}

// ChannelID represents a Mattermost channel identifier
type ChannelID string

// String returns the string representation
func (id ChannelID) String() string {
	return string(id)
}

// ChannelName represents a Mattermost channel name
type ChannelName string

// String returns the string representation
func (n ChannelName) String() string {
	return string(n)
}

// PostID represents a Mattermost post identifier
type PostID string

// String returns the string representation
func (id PostID) String() string {
	return string(id)
}

// FileID represents an uploaded file reference
type FileID string

// String returns the string representation
func (id FileID) String() string {
	return string(id)
}

// DeliveryID identifies one delivery request in logs
type DeliveryID string

// String returns the string representation
func (id DeliveryID) String() string {
	return string(id)
}

// NewDeliveryID creates a new time-ordered DeliveryID
func NewDeliveryID() DeliveryID {
	id, err := uuid.NewV7()
	if err != nil {
		return DeliveryID(uuid.New().String())
	}
	return DeliveryID(id.String())
}

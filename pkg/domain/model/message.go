package model

import (
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

// UploadFilename is the fixed name every attachment is uploaded under
const UploadFilename = "upload.png"

// Attachment is the single binary payload that may accompany a message
type Attachment struct {
	Data []byte
}

// NewAttachment returns nil for empty data so that an empty upload field is
// treated the same as no attachment at all.
func NewAttachment(data []byte) *Attachment {
	if len(data) == 0 {
		return nil
	}
	return &Attachment{Data: data}
}

// Message is what gets posted to a resolved channel
type Message struct {
	ChannelID  types.ChannelID
	Text       string
	Attachment *Attachment
}

// DeliverInput is the boundary request of the delivery pipeline
type DeliverInput struct {
	Message     string
	Destination string
	Attachment  *Attachment
	// Team overrides the configured default team when not empty
	Team types.TeamName
}

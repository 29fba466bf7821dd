package types_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
)

func TestNewDeliveryID(t *testing.T) {
	id1 := types.NewDeliveryID()
	id2 := types.NewDeliveryID()

	gt.NotEqual(t, id1, id2)

	parsed, err := uuid.Parse(id1.String())
	gt.NoError(t, err).Required()
	gt.Equal(t, uuid.Version(7), parsed.Version())
}

func TestStringers(t *testing.T) {
	gt.Equal(t, "u1", types.UserID("u1").String())
	gt.Equal(t, "alice", types.Username("alice").String())
	gt.Equal(t, "eng", types.TeamName("eng").String())
	gt.Equal(t, "c1", types.ChannelID("c1").String())
	gt.Equal(t, "general", types.ChannelName("general").String())
	gt.Equal(t, "p1", types.PostID("p1").String())
	gt.Equal(t, "f1", types.FileID("f1").String())
}

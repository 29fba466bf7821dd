package usecase_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/domain/types"
	"github.com/secmon-lab/mmpost/pkg/service/mattermost"
	"github.com/secmon-lab/mmpost/pkg/service/mattermost/mmtest"
	"github.com/secmon-lab/mmpost/pkg/usecase"
)

// pngData is 10 bytes starting with the PNG signature
var pngData = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x01}

type fixture struct {
	srv       *mmtest.Server
	client    *mattermost.Client
	poster    *usecase.Poster
	generalID string
}

func setup(t *testing.T, opts ...usecase.PosterOption) (context.Context, *fixture) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx = ctxlog.With(ctx, logger)

	srv := mmtest.NewServer()
	t.Cleanup(srv.Close)

	aliceID := srv.AddUser("alice")
	carolID := srv.AddUser("carol")
	bobID := srv.AddUser("bob")
	engID := srv.AddTeam("eng", aliceID, carolID)
	srv.AddTeam("sales", bobID)
	generalID := srv.AddChannel(engID, "general", aliceID)
	srv.AddPrivateChannel(engID, "secret-channel", aliceID)

	client, err := mattermost.New(srv.APIURL(), mmtest.BotToken)
	gt.NoError(t, err).Required()

	return ctx, &fixture{
		srv:       srv,
		client:    client,
		poster:    usecase.NewPoster(client, "eng", opts...),
		generalID: generalID,
	}
}

func TestDeliverToChannelJoinsAndPosts(t *testing.T) {
	ctx, f := setup(t)
	gt.False(t, f.srv.IsChannelMember(f.generalID, f.srv.BotID()))

	result, err := f.poster.Deliver(ctx, model.DeliverInput{
		Message:     "build passed",
		Destination: "general",
		Team:        "eng",
	})
	gt.NoError(t, err).Required()
	gt.NotEqual(t, types.PostID(""), result.PostID)
	gt.NotEqual(t, types.DeliveryID(""), result.DeliveryID)

	gt.True(t, f.srv.IsChannelMember(f.generalID, f.srv.BotID()))

	posts := f.srv.Posts()
	gt.A(t, posts).Length(1)
	gt.Equal(t, result.PostID.String(), posts[0].ID)
	gt.Equal(t, f.generalID, posts[0].ChannelID)
	gt.Equal(t, "build passed", posts[0].Message)
	gt.A(t, posts[0].FileIDs).Length(0)

	gt.Equal(t, []string{
		"GET /users/me",
		"GET /teams/name/{team}/channels/name/{channel}",
		"POST /channels/{channel_id}/members",
		"POST /posts",
	}, f.srv.CallStrings())
}

func TestDeliverToChannelTwiceIsIdempotent(t *testing.T) {
	ctx, f := setup(t)

	for i := 0; i < 2; i++ {
		_, err := f.poster.Deliver(ctx, model.DeliverInput{Message: "hi", Destination: "general"})
		gt.NoError(t, err).Required()
	}

	gt.A(t, f.srv.Posts()).Length(2)
	// alice and the bot
	gt.Equal(t, 2, f.srv.ChannelMemberCount(f.generalID))
}

func TestDeliverDirectMessageWithAttachment(t *testing.T) {
	ctx, f := setup(t)

	result, err := f.poster.Deliver(ctx, model.DeliverInput{
		Message:     "ping",
		Destination: "@carol",
		Attachment:  model.NewAttachment(pngData),
	})
	gt.NoError(t, err).Required()

	posts := f.srv.Posts()
	gt.A(t, posts).Length(1)
	gt.Equal(t, result.PostID.String(), posts[0].ID)
	gt.Equal(t, "ping", posts[0].Message)
	gt.A(t, posts[0].FileIDs).Length(1)

	data, name, ok := f.srv.FileData(posts[0].FileIDs[0])
	gt.True(t, ok)
	gt.Equal(t, "upload.png", name)
	gt.True(t, bytes.Equal(pngData, data))

	gt.Equal(t, []string{
		"GET /users/me",
		"GET /users/username/{username}",
		"GET /teams/name/{team}",
		"GET /teams/{team_id}/members/{user_id}",
		"POST /channels/direct",
		"POST /files",
		"POST /posts",
	}, f.srv.CallStrings())
}

func TestResolveDirectTwiceYieldsSameChannel(t *testing.T) {
	ctx, f := setup(t)
	resolver := usecase.NewResolver(f.client)

	dest, err := model.ParseDestination("@carol")
	gt.NoError(t, err).Required()

	first, err := resolver.Resolve(ctx, dest, "eng")
	gt.NoError(t, err).Required()
	second, err := resolver.Resolve(ctx, dest, "eng")
	gt.NoError(t, err).Required()

	gt.Equal(t, first, second)
	gt.Equal(t, 1, f.srv.DirectChannelCount())
}

func TestDeliverFailures(t *testing.T) {
	testCases := []struct {
		name        string
		destination string
		team        types.TeamName
		kind        model.FailureKind
		contains    string
	}{
		{"Unknown user", "@ghost", "", model.KindDestinationNotFound, "@ghost does not exist"},
		{"User not on team", "@bob", "", model.KindNotAuthorizedMember, "@bob is not a member of eng"},
		{"Unknown team for direct message", "@carol", "marketing", model.KindDestinationNotFound, "team marketing does not exist"},
		{"Private channel", "secret-channel", "", model.KindDestinationNotFound, "secret-channel does not exist or is private"},
		{"Missing channel", "no-such-channel", "", model.KindDestinationNotFound, "no-such-channel does not exist or is private"},
		{"Unknown team for channel", "general", "marketing", model.KindDestinationNotFound, "general does not exist or is private"},
		{"Empty destination", "", "", model.KindInvalidRequest, "destination is empty"},
		{"Bare at sign", "@", "", model.KindInvalidRequest, "destination user name is empty"},
		{"Dot-dot user", "@..", "", model.KindDestinationNotFound, "@.. does not exist"},
		{"Dot-dot channel", "..", "", model.KindDestinationNotFound, ".. does not exist or is private"},
		{"Dot-dot team for direct message", "@carol", "..", model.KindDestinationNotFound, "team .. does not exist"},
		{"Dot-dot team for channel", "general", "..", model.KindDestinationNotFound, "general does not exist or is private"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, f := setup(t)

			_, err := f.poster.Deliver(ctx, model.DeliverInput{
				Message:     "hello",
				Destination: tc.destination,
				Team:        tc.team,
			})
			gt.Error(t, err)
			gt.Equal(t, tc.kind, model.KindOf(err))
			gt.S(t, err.Error()).Contains(tc.contains)

			gt.A(t, f.srv.Posts()).Length(0)
			gt.Equal(t, 0, f.srv.DirectChannelCount())
		})
	}
}

func TestPrivateAndMissingChannelsAreIndistinguishable(t *testing.T) {
	ctx, f := setup(t)

	_, errPrivate := f.poster.Deliver(ctx, model.DeliverInput{Message: "x", Destination: "secret-channel"})
	_, errMissing := f.poster.Deliver(ctx, model.DeliverInput{Message: "x", Destination: "no-such-channel"})

	failPrivate := model.NewDeliveryFailure(errPrivate)
	failMissing := model.NewDeliveryFailure(errMissing)
	gt.Equal(t, failPrivate.Kind, failMissing.Kind)
	gt.Equal(t, model.KindDestinationNotFound, failPrivate.Kind)
	gt.S(t, failPrivate.Detail).NotContains("app_error")
}

func TestDeliverUpstreamFailures(t *testing.T) {
	t.Run("who am I fails", func(t *testing.T) {
		ctx, f := setup(t)
		f.srv.FailWith("GET /users/me", http.StatusInternalServerError)

		_, err := f.poster.Deliver(ctx, model.DeliverInput{Message: "x", Destination: "general"})
		gt.Equal(t, model.KindUpstream, model.KindOf(err))
		gt.Equal(t, []string{"GET /users/me"}, f.srv.CallStrings())
	})

	t.Run("membership check fails with other status", func(t *testing.T) {
		ctx, f := setup(t)
		f.srv.FailWith("GET /teams/{team_id}/members/{user_id}", http.StatusForbidden)

		_, err := f.poster.Deliver(ctx, model.DeliverInput{Message: "x", Destination: "@carol"})
		gt.Equal(t, model.KindUpstream, model.KindOf(err))
		gt.Equal(t, 0, f.srv.DirectChannelCount())
	})

	t.Run("join fails", func(t *testing.T) {
		ctx, f := setup(t)
		f.srv.FailWith("POST /channels/{channel_id}/members", http.StatusForbidden)

		_, err := f.poster.Deliver(ctx, model.DeliverInput{Message: "x", Destination: "general"})
		gt.Equal(t, model.KindUpstream, model.KindOf(err))
		gt.A(t, f.srv.Posts()).Length(0)
	})

	t.Run("upload fails and no post is created", func(t *testing.T) {
		ctx, f := setup(t)
		f.srv.FailWith("POST /files", http.StatusRequestEntityTooLarge)

		_, err := f.poster.Deliver(ctx, model.DeliverInput{
			Message:     "x",
			Destination: "general",
			Attachment:  model.NewAttachment(pngData),
		})
		gt.Equal(t, model.KindUpstream, model.KindOf(err))
		gt.A(t, f.srv.Posts()).Length(0)
		for _, call := range f.srv.CallStrings() {
			gt.NotEqual(t, "POST /posts", call)
		}
	})

	t.Run("post fails after upload leaves the file", func(t *testing.T) {
		ctx, f := setup(t)
		f.srv.FailWith("POST /posts", http.StatusInternalServerError)

		_, err := f.poster.Deliver(ctx, model.DeliverInput{
			Message:     "x",
			Destination: "general",
			Attachment:  model.NewAttachment(pngData),
		})
		gt.Equal(t, model.KindUpstream, model.KindOf(err))
		gt.Equal(t, 1, f.srv.FileCount())
	})
}

func TestDeliverTimeout(t *testing.T) {
	ctx, f := setup(t, usecase.WithTimeout(50*time.Millisecond))
	f.srv.OnRequest(func(r *http.Request, pattern string) {
		if pattern == "/channels/{channel_id}/members" {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}
	})

	_, err := f.poster.Deliver(ctx, model.DeliverInput{Message: "x", Destination: "general"})
	gt.Error(t, err)
	gt.Equal(t, model.KindUpstream, model.KindOf(err))
	gt.True(t, model.IsTimeout(err))
	gt.A(t, f.srv.Posts()).Length(0)
}

func TestDeliverCancelledStopsSideEffects(t *testing.T) {
	ctx, f := setup(t)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.srv.OnRequest(func(r *http.Request, pattern string) {
		if pattern == "/teams/{team_id}/members/{user_id}" {
			cancel()
		}
	})

	_, err := f.poster.Deliver(ctx, model.DeliverInput{Message: "x", Destination: "@carol"})
	gt.Error(t, err)
	gt.Equal(t, model.KindUpstream, model.KindOf(err))
	gt.Equal(t, 0, f.srv.DirectChannelCount())
	gt.A(t, f.srv.Posts()).Length(0)
}

func TestDeliverRequiresTeam(t *testing.T) {
	ctx := context.Background()
	srv := mmtest.NewServer()
	defer srv.Close()

	client, err := mattermost.New(srv.APIURL(), mmtest.BotToken)
	gt.NoError(t, err).Required()

	poster := usecase.NewPoster(client, "")
	_, err = poster.Deliver(ctx, model.DeliverInput{Message: "x", Destination: "general"})
	gt.Equal(t, model.KindInvalidRequest, model.KindOf(err))
	gt.A(t, srv.Calls()).Length(0)
}

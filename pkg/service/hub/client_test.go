package hub_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/service/hub"
)

func newHub(t *testing.T, service string) *hub.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hub/api/user" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "token alice-token":
			_, _ = w.Write([]byte(`{"kind":"user","name":"alice","admin":false,"scopes":["access:services!service=jupyterpost","read:users:name!user=alice"]}`))
		case "token carol-token":
			_, _ = w.Write([]byte(`{"kind":"user","name":"carol","scopes":["access:servers!user=carol"]}`))
		case "token admin-token":
			_, _ = w.Write([]byte(`{"kind":"user","name":"root","scopes":["access:services"]}`))
		case "token service-token":
			_, _ = w.Write([]byte(`{"kind":"service","name":"jupyterpost"}`))
		case "token broken-token":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	t.Cleanup(srv.Close)
	return hub.New(srv.URL+"/hub/api/", service, nil)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	client := newHub(t, "jupyterpost")

	t.Run("User token", func(t *testing.T) {
		caller, err := client.Authenticate(ctx, "alice-token")
		gt.NoError(t, err).Required()
		gt.Equal(t, "alice", caller.Name)
	})

	t.Run("Token for all services", func(t *testing.T) {
		caller, err := client.Authenticate(ctx, "admin-token")
		gt.NoError(t, err).Required()
		gt.Equal(t, "root", caller.Name)
	})

	t.Run("Token without service access", func(t *testing.T) {
		_, err := client.Authenticate(ctx, "carol-token")
		gt.True(t, errors.Is(err, model.ErrUnauthenticated))
	})

	t.Run("Unknown token", func(t *testing.T) {
		_, err := client.Authenticate(ctx, "nope")
		gt.True(t, errors.Is(err, model.ErrUnauthenticated))
	})

	t.Run("Service token", func(t *testing.T) {
		_, err := client.Authenticate(ctx, "service-token")
		gt.True(t, errors.Is(err, model.ErrUnauthenticated))
	})

	t.Run("Empty token", func(t *testing.T) {
		_, err := client.Authenticate(ctx, "")
		gt.True(t, errors.Is(err, model.ErrUnauthenticated))
	})

	t.Run("Hub failure", func(t *testing.T) {
		_, err := client.Authenticate(ctx, "broken-token")
		gt.Error(t, err)
		gt.False(t, errors.Is(err, model.ErrUnauthenticated))
	})
}

func TestAuthenticateWithoutServiceCheck(t *testing.T) {
	client := newHub(t, "")

	caller, err := client.Authenticate(context.Background(), "carol-token")
	gt.NoError(t, err).Required()
	gt.Equal(t, "carol", caller.Name)
}

func TestAuthenticateOtherService(t *testing.T) {
	client := newHub(t, "grafana")

	_, err := client.Authenticate(context.Background(), "alice-token")
	gt.True(t, errors.Is(err, model.ErrUnauthenticated))
}

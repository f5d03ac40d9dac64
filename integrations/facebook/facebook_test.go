package facebook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path string
	form url.Values
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		got.form, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestPublish_PhotoWhenMediaPresent(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"id":"photo-1","post_id":"page_1_99"}`)
	p := NewPublisher(srv.URL, "v19.0", 5*time.Second)

	res, err := p.Publish(context.Background(), channel.PublishRequest{
		Destination: "page-1",
		AccessToken: "page-token",
		Text:        "hello",
		MediaURL:    "https://cdn.example/a.jpg",
	})

	require.NoError(t, err)
	assert.Equal(t, "page_1_99", res.RemoteID)
	assert.Equal(t, "/v19.0/page-1/photos", got.path)
	assert.Equal(t, "https://cdn.example/a.jpg", got.form.Get("url"))
	assert.Equal(t, "hello", got.form.Get("caption"))
	assert.Equal(t, "page-token", got.form.Get("access_token"))
}

func TestPublish_FeedWithLink(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"id":"page_1_100"}`)
	p := NewPublisher(srv.URL, "v19.0", 5*time.Second)

	res, err := p.Publish(context.Background(), channel.PublishRequest{
		Destination: "page-1",
		AccessToken: "tok",
		Text:        "read https://t.example/abc",
		LinkURL:     "https://t.example/abc",
	})

	require.NoError(t, err)
	assert.Equal(t, "page_1_100", res.RemoteID)
	assert.Equal(t, "/v19.0/page-1/feed", got.path)
	assert.Equal(t, "read https://t.example/abc", got.form.Get("message"))
	assert.Equal(t, "https://t.example/abc", got.form.Get("link"))
	assert.JSONEq(t, `{"id":"page_1_100"}`, string(res.Raw))
}

func TestPublish_PlatformErrorIsKeptVerbatim(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"error":{"message":"(#200) Permissions error","type":"OAuthException","code":200}}`)
	p := NewPublisher(srv.URL, "v19.0", 5*time.Second)

	_, err := p.Publish(context.Background(), channel.PublishRequest{Destination: "page-1", AccessToken: "tok", Text: "x"})

	var pe *channel.PublishError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, "(#200) Permissions error", channel.ErrorMessage(err))
}

func TestPublish_MissingIDIsAnError(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{}`)
	p := NewPublisher(srv.URL, "v19.0", 5*time.Second)

	_, err := p.Publish(context.Background(), channel.PublishRequest{Destination: "page-1", AccessToken: "tok", Text: "x"})
	assert.ErrorContains(t, err, "post id")
}

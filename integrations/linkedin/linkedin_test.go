package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinkedIn struct {
	srv        *httptest.Server
	share      map[string]any
	uploaded   []byte
	registered map[string]any
	headers    http.Header
	shareFail  bool
}

func newFake(t *testing.T) *fakeLinkedIn {
	t.Helper()
	f := &fakeLinkedIn{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/assets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "registerUpload", r.URL.Query().Get("action"))
		_ = json.NewDecoder(r.Body).Decode(&f.registered)
		_, _ = w.Write([]byte(`{"value":{"asset":"urn:li:digitalmediaAsset:C1","uploadMechanism":{"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest":{"uploadUrl":"` + f.srv.URL + `/upload/C1"}}}}`))
	})
	mux.HandleFunc("/upload/C1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		f.uploaded, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/media/a.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/v2/ugcPosts", func(w http.ResponseWriter, r *http.Request) {
		f.headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&f.share)
		if f.shareFail {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Duplicate post","status":422}`))
			return
		}
		w.Header().Set("X-RestLi-Id", "urn:li:share:42")
		w.WriteHeader(http.StatusCreated)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func shareContentOf(t *testing.T, share map[string]any) map[string]any {
	t.Helper()
	sc, ok := share["specificContent"].(map[string]any)
	require.True(t, ok)
	content, ok := sc["com.linkedin.ugc.ShareContent"].(map[string]any)
	require.True(t, ok)
	return content
}

func TestPublish_TextOnly(t *testing.T) {
	f := newFake(t)
	p := NewPublisher(f.srv.URL, 5*time.Second)

	res, err := p.Publish(context.Background(), channel.PublishRequest{
		Channel:     channel.KindLinkedIn,
		Destination: "abc",
		AccessToken: "tok",
		Text:        "hello",
	})

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:42", res.RemoteID)
	assert.Equal(t, "Bearer tok", f.headers.Get("Authorization"))
	assert.Equal(t, "2.0.0", f.headers.Get("X-Restli-Protocol-Version"))
	assert.Equal(t, "urn:li:person:abc", f.share["author"])
	content := shareContentOf(t, f.share)
	assert.Equal(t, CategoryNone, content["shareMediaCategory"])
	assert.Nil(t, content["media"])
}

func TestPublish_ArticleForOrganization(t *testing.T) {
	f := newFake(t)
	p := NewPublisher(f.srv.URL, 5*time.Second)

	_, err := p.Publish(context.Background(), channel.PublishRequest{
		Channel:     channel.KindLinkedInOrganization,
		Destination: "999",
		AccessToken: "tok",
		Text:        "read https://t.example/x",
		LinkURL:     "https://t.example/x",
	})

	require.NoError(t, err)
	assert.Equal(t, "urn:li:organization:999", f.share["author"])
	content := shareContentOf(t, f.share)
	assert.Equal(t, CategoryArticle, content["shareMediaCategory"])
	media := content["media"].([]any)[0].(map[string]any)
	assert.Equal(t, "https://t.example/x", media["originalUrl"])
}

func TestPublish_ImageUploadsAsset(t *testing.T) {
	f := newFake(t)
	p := NewPublisher(f.srv.URL, 5*time.Second)

	res, err := p.Publish(context.Background(), channel.PublishRequest{
		Channel:     channel.KindLinkedIn,
		Destination: "abc",
		AccessToken: "tok",
		Text:        "pic",
		MediaURL:    f.srv.URL + "/media/a.jpg",
	})

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:42", res.RemoteID)
	assert.Equal(t, []byte("jpeg-bytes"), f.uploaded)

	reg := f.registered["registerUploadRequest"].(map[string]any)
	assert.Equal(t, "urn:li:person:abc", reg["owner"])
	assert.Equal(t, []any{imageRecipe}, reg["recipes"])

	content := shareContentOf(t, f.share)
	assert.Equal(t, CategoryImage, content["shareMediaCategory"])
	media := content["media"].([]any)[0].(map[string]any)
	assert.Equal(t, "urn:li:digitalmediaAsset:C1", media["media"])
}

func TestPublish_NonSuccessIsTerminalWithPlatformMessage(t *testing.T) {
	f := newFake(t)
	f.shareFail = true
	p := NewPublisher(f.srv.URL, 5*time.Second)

	_, err := p.Publish(context.Background(), channel.PublishRequest{Channel: channel.KindLinkedIn, Destination: "abc", AccessToken: "tok", Text: "x"})

	var pe *channel.PublishError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusUnprocessableEntity, pe.StatusCode)
	assert.Equal(t, "Duplicate post", channel.ErrorMessage(err))
}

func TestAuthorURN(t *testing.T) {
	assert.Equal(t, "urn:li:person:1", AuthorURN(channel.KindLinkedIn, "1"))
	assert.Equal(t, "urn:li:organization:1", AuthorURN(channel.KindLinkedInOrganization, "1"))
	assert.Equal(t, "urn:li:organization:7", AuthorURN(channel.KindLinkedIn, "urn:li:organization:7"))
}

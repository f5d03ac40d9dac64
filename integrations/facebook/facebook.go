package facebook

import (
	"context"
	"net/url"
	"time"

	"github.com/AzielCF/az-publish/integrations/graph"
	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/sirupsen/logrus"
)

// Publisher posts to a Facebook page in a single Graph API call.
type Publisher struct {
	graph *graph.Client
}

func NewPublisher(baseURL, version string, timeout time.Duration) *Publisher {
	return &Publisher{graph: graph.NewClient(channel.KindFacebook, baseURL, version, timeout)}
}

// NewPublisherWithClient is used when the Graph transport is shared or stubbed.
func NewPublisherWithClient(c *graph.Client) *Publisher {
	return &Publisher{graph: c}
}

type publishResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// Publish sends a photo post when media is present, a feed post otherwise.
func (p *Publisher) Publish(ctx context.Context, req channel.PublishRequest) (channel.Result, error) {
	var (
		endpoint string
		op       string
		form     = url.Values{}
	)

	if req.MediaURL != "" {
		op = "photo"
		endpoint = p.graph.Endpoint(req.Destination, "photos")
		form.Set("url", req.MediaURL)
		if req.Text != "" {
			form.Set("caption", req.Text)
		}
	} else {
		op = "feed"
		endpoint = p.graph.Endpoint(req.Destination, "feed")
		if req.Text != "" {
			form.Set("message", req.Text)
		}
		if req.LinkURL != "" {
			form.Set("link", req.LinkURL)
		}
	}

	var out publishResponse
	raw, err := p.graph.PostForm(ctx, op, endpoint, req.AccessToken, form, &out)
	if err != nil {
		return channel.Result{}, err
	}

	remoteID := out.PostID
	if remoteID == "" {
		remoteID = out.ID
	}
	if remoteID == "" {
		return channel.Result{}, &channel.PublishError{
			Channel: channel.KindFacebook,
			Op:      op,
			Message: "response did not include a post id",
			Raw:     raw,
		}
	}

	logrus.WithFields(logrus.Fields{
		"page":      req.Destination,
		"remote_id": remoteID,
		"op":        op,
	}).Debug("[FACEBOOK] Post published")

	return channel.Result{RemoteID: remoteID, Raw: raw}, nil
}

var _ channel.Publisher = (*Publisher)(nil)

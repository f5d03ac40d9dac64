package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/AzielCF/az-publish/integrations/graph"
	"github.com/AzielCF/az-publish/pkg/poller"
	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/sirupsen/logrus"
)

// Container status codes reported by the Graph API.
const (
	StatusFinished   = "FINISHED"
	StatusInProgress = "IN_PROGRESS"
	StatusPublished  = "PUBLISHED"
	StatusError      = "ERROR"
	StatusExpired    = "EXPIRED"
)

// Publisher creates an image container, waits until the platform has processed it,
// then publishes it.
type Publisher struct {
	graph  *graph.Client
	policy poller.Policy

	// OnPoll, when set, receives the number of status checks of each container.
	OnPoll func(attempts int)
}

func NewPublisher(baseURL, version string, timeout time.Duration, policy poller.Policy) *Publisher {
	return NewPublisherWithClient(graph.NewClient(channel.KindInstagram, baseURL, version, timeout), policy)
}

func NewPublisherWithClient(c *graph.Client, policy poller.Policy) *Publisher {
	if policy.MaxAttempts <= 0 {
		policy = poller.DefaultPolicy
	}
	return &Publisher{graph: c, policy: policy}
}

type idResponse struct {
	ID string `json:"id"`
}

type containerStatus struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

func (p *Publisher) Publish(ctx context.Context, req channel.PublishRequest) (channel.Result, error) {
	if req.MediaURL == "" {
		return channel.Result{}, channel.ErrMediaRequired
	}

	log := logrus.WithField("ig_user", req.Destination)

	form := url.Values{}
	form.Set("image_url", req.MediaURL)
	if req.Text != "" {
		form.Set("caption", req.Text)
	}

	var container idResponse
	raw, err := p.graph.PostForm(ctx, "create container", p.graph.Endpoint(req.Destination, "media"), req.AccessToken, form, &container)
	if err != nil {
		return channel.Result{}, err
	}
	if container.ID == "" {
		return channel.Result{}, &channel.PublishError{Channel: channel.KindInstagram, Op: "create container", Message: "response did not include a container id", Raw: raw}
	}
	log.WithField("container_id", container.ID).Debug("[INSTAGRAM] Container created, waiting for processing")

	if err := p.waitReady(ctx, req.AccessToken, container.ID); err != nil {
		return channel.Result{}, err
	}

	publishForm := url.Values{}
	publishForm.Set("creation_id", container.ID)

	var published idResponse
	raw, err = p.graph.PostForm(ctx, "publish", p.graph.Endpoint(req.Destination, "media_publish"), req.AccessToken, publishForm, &published)
	if err != nil {
		return channel.Result{}, err
	}
	if published.ID == "" {
		return channel.Result{}, &channel.PublishError{Channel: channel.KindInstagram, Op: "publish", Message: "response did not include a media id", Raw: raw}
	}

	log.WithField("media_id", published.ID).Debug("[INSTAGRAM] Media published")
	return channel.Result{RemoteID: published.ID, Raw: raw}, nil
}

func (p *Publisher) waitReady(ctx context.Context, token, containerID string) error {
	endpoint := p.graph.Endpoint(containerID)
	query := url.Values{}
	query.Set("fields", "status_code,status")

	attempts, err := poller.Until(ctx, p.policy, func(ctx context.Context, attempt int) (poller.State, error) {
		var st containerStatus
		raw, err := p.graph.Get(ctx, "container status", endpoint, token, cloneValues(query), &st)
		if err != nil {
			var pe *channel.PublishError
			if errors.As(err, &pe) && pe.StatusCode >= 400 && pe.StatusCode < 500 {
				return poller.Pending, poller.Permanent(err)
			}
			return poller.Pending, err
		}

		switch st.StatusCode {
		case StatusFinished, StatusPublished:
			return poller.Done, nil
		case StatusError, StatusExpired:
			msg := st.Status
			if msg == "" {
				msg = "container status " + st.StatusCode
			}
			return poller.Pending, poller.Permanent(&channel.PublishError{
				Channel: channel.KindInstagram,
				Op:      "media processing",
				Message: msg,
				Raw:     raw,
			})
		default:
			logrus.WithFields(logrus.Fields{
				"container_id": containerID,
				"attempt":      attempt,
				"status":       st.StatusCode,
			}).Debug("[INSTAGRAM] Container not ready yet")
			return poller.Pending, nil
		}
	})

	if p.OnPoll != nil {
		p.OnPoll(attempts)
	}

	if errors.Is(err, poller.ErrExhausted) {
		return fmt.Errorf("%w: container %s not ready after %d checks", channel.ErrProcessingTimeout, containerID, attempts)
	}
	return err
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

var _ channel.Publisher = (*Publisher)(nil)

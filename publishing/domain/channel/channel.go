package channel

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies the platform a target publishes to.
type Kind string

const (
	KindFacebook             Kind = "facebook"
	KindInstagram            Kind = "instagram"
	KindLinkedIn             Kind = "linkedin"
	KindLinkedInOrganization Kind = "linkedin_organization"
)

// Protocol groups kinds that share a publishing flow.
type Protocol string

const (
	// ProtocolFeed posts in a single request.
	ProtocolFeed Protocol = "feed"
	// ProtocolAsyncMedia creates a media container, waits for it, then publishes it.
	ProtocolAsyncMedia Protocol = "async_media"
	// ProtocolStructured builds a typed share that may reference an uploaded asset.
	ProtocolStructured Protocol = "structured"
)

var (
	ErrUnsupportedChannel = errors.New("unsupported channel")
	ErrMediaRequired      = errors.New("media required")
	ErrAccountNotFound    = errors.New("account not found")
	ErrProcessingTimeout  = errors.New("media processing timed out")
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindFacebook, KindInstagram, KindLinkedIn, KindLinkedInOrganization}
}

// ParseKind validates a persisted channel tag.
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if _, err := k.Protocol(); err != nil {
		return "", err
	}
	return k, nil
}

func (k Kind) String() string { return string(k) }

// Protocol returns the publishing protocol for the kind.
func (k Kind) Protocol() (Protocol, error) {
	switch k {
	case KindFacebook:
		return ProtocolFeed, nil
	case KindInstagram:
		return ProtocolAsyncMedia, nil
	case KindLinkedIn, KindLinkedInOrganization:
		return ProtocolStructured, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, string(k))
	}
}

// AccountKind is the kind a connected account must have to serve targets of k.
// Organization pages are published with the member's LinkedIn connection.
func (k Kind) AccountKind() Kind {
	switch k {
	case KindLinkedInOrganization:
		return KindLinkedIn
	default:
		return k
	}
}

// PublishRequest is the prepared payload handed to a publisher.
type PublishRequest struct {
	Channel     Kind
	Destination string
	AccessToken string
	Text        string
	MediaURL    string
	LinkURL     string
}

// Result is what a platform returned for a successful publish.
type Result struct {
	RemoteID string
	Raw      []byte
}

// Publisher performs the network protocol for one platform.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (Result, error)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, req PublishRequest) (Result, error)

func (f PublisherFunc) Publish(ctx context.Context, req PublishRequest) (Result, error) {
	return f(ctx, req)
}

// Publishers holds one publisher per protocol.
type Publishers struct {
	Feed       Publisher
	AsyncMedia Publisher
	Structured Publisher
}

// For picks the publisher serving the kind.
func (p Publishers) For(k Kind) (Publisher, error) {
	proto, err := k.Protocol()
	if err != nil {
		return nil, err
	}

	var pub Publisher
	switch proto {
	case ProtocolFeed:
		pub = p.Feed
	case ProtocolAsyncMedia:
		pub = p.AsyncMedia
	case ProtocolStructured:
		pub = p.Structured
	}
	if pub == nil {
		return nil, fmt.Errorf("%w: no publisher registered for %s", ErrUnsupportedChannel, k)
	}
	return pub, nil
}

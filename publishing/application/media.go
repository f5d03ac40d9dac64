package application

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrMediaUnresolvable = errors.New("media reference cannot be resolved")

// MediaResolver turns a stored media reference into a URL platforms can fetch.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// PassthroughResolver keeps absolute http(s) references and sends the rest to Next.
type PassthroughResolver struct {
	Next MediaResolver
}

func (r PassthroughResolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrMediaUnresolvable
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return ref, nil
	}
	if r.Next == nil {
		return "", ErrMediaUnresolvable
	}
	return r.Next.Resolve(ctx, ref)
}

// resolveFirstMedia returns "" when there is no media or it cannot be resolved.
func resolveFirstMedia(ctx context.Context, resolver MediaResolver, postID, ref string) string {
	if ref == "" || resolver == nil {
		return ""
	}
	url, err := resolver.Resolve(ctx, ref)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"post_id": postID,
			"ref":     ref,
		}).Warn("[MEDIA] Could not resolve media, publishing without it")
		return ""
	}
	return url
}

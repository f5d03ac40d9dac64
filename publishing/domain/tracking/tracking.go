package tracking

import "strings"

// Link maps a post's raw link to a short redirect.
type Link struct {
	PostID         string `json:"post_id"`
	Slug           string `json:"slug"`
	DestinationURL string `json:"destination_url"`
}

// RedirectURL is the public URL that replaces the raw link.
func (l Link) RedirectURL(base string) string {
	if l.Slug == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + l.Slug
}

package application

import "strings"

// RewriteContent replaces the first occurrence of rawLink with trackedURL.
// Content is returned unchanged when either link is empty, rawLink does not appear,
// or trackedURL is already present.
func RewriteContent(content, rawLink, trackedURL string) string {
	if rawLink == "" || trackedURL == "" || rawLink == trackedURL {
		return content
	}
	if strings.Contains(content, trackedURL) {
		return content
	}
	return strings.Replace(content, rawLink, trackedURL, 1)
}

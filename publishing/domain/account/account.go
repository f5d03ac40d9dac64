package account

import (
	"slices"

	"github.com/AzielCF/az-publish/publishing/domain/channel"
)

// Credentials are the tokens stored for a connected account.
// DestinationTokens holds per-page tokens where a platform issues them.
type Credentials struct {
	AccessToken       string            `json:"access_token"`
	DestinationTokens map[string]string `json:"destination_tokens,omitempty"`
}

// TokenFor returns the destination-scoped token when present, else the account token.
func (c Credentials) TokenFor(destination string) string {
	if tok := c.DestinationTokens[destination]; tok != "" {
		return tok
	}
	return c.AccessToken
}

// ConnectedAccount is a user's authorization to post to a platform.
// The engine only reads it.
type ConnectedAccount struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"owner_id"`
	Channel        channel.Kind `json:"channel"`
	DisplayName    string       `json:"display_name"`
	DestinationIDs []string     `json:"destination_ids"`
	Credentials    Credentials  `json:"-"`
}

// Serves reports whether the account can publish to destination on a target of kind k.
func (a ConnectedAccount) Serves(k channel.Kind, destination string) bool {
	return a.Channel == k.AccountKind() && slices.Contains(a.DestinationIDs, destination)
}

// Match finds the account able to publish a target.
func Match(accounts []ConnectedAccount, k channel.Kind, destination string) (ConnectedAccount, bool) {
	for _, a := range accounts {
		if a.Serves(k, destination) {
			return a, true
		}
	}
	return ConnectedAccount{}, false
}

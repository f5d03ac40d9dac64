package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AzielCF/az-publish/publishing/domain/channel"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.linkedin.com"

	restliProtocolVersion = "2.0.0"
	imageRecipe           = "urn:li:digitalmediaRecipe:feedshare-image"
	maxMediaSize          = 20 << 20
	maxBodySize           = 1 << 20
)

// Share categories of a UGC post.
const (
	CategoryNone    = "NONE"
	CategoryArticle = "ARTICLE"
	CategoryImage   = "IMAGE"
)

// Publisher creates UGC shares for members and organizations.
type Publisher struct {
	HTTP    *http.Client
	BaseURL string
}

func NewPublisher(baseURL string, timeout time.Duration) *Publisher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Publisher{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// AuthorURN maps a target to the share author.
func AuthorURN(kind channel.Kind, destination string) string {
	if strings.HasPrefix(destination, "urn:li:") {
		return destination
	}
	if kind == channel.KindLinkedInOrganization {
		return "urn:li:organization:" + destination
	}
	return "urn:li:person:" + destination
}

func (p *Publisher) Publish(ctx context.Context, req channel.PublishRequest) (channel.Result, error) {
	kind := req.Channel
	if kind == "" {
		kind = channel.KindLinkedIn
	}
	author := AuthorURN(kind, req.Destination)

	content := shareContent{
		ShareCommentary:    text{Text: req.Text},
		ShareMediaCategory: CategoryNone,
	}

	switch {
	case req.MediaURL != "":
		asset, err := p.uploadImage(ctx, kind, req.AccessToken, author, req.MediaURL)
		if err != nil {
			return channel.Result{}, err
		}
		content.ShareMediaCategory = CategoryImage
		content.Media = []shareMedia{{Status: "READY", Media: asset}}
	case req.LinkURL != "":
		content.ShareMediaCategory = CategoryArticle
		content.Media = []shareMedia{{Status: "READY", OriginalURL: req.LinkURL}}
	}

	body := ugcPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: specificContent{
			ShareContent: content,
		},
		Visibility: map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	var out struct {
		ID string `json:"id"`
	}
	raw, header, err := p.doJSON(ctx, kind, "create share", http.MethodPost, p.BaseURL+"/v2/ugcPosts", req.AccessToken, body, &out)
	if err != nil {
		return channel.Result{}, err
	}

	remoteID := header.Get("X-RestLi-Id")
	if remoteID == "" {
		remoteID = out.ID
	}
	if remoteID == "" {
		return channel.Result{}, &channel.PublishError{Channel: kind, Op: "create share", Message: "response did not include a share id", Raw: raw}
	}

	logrus.WithFields(logrus.Fields{
		"author":    author,
		"category":  content.ShareMediaCategory,
		"remote_id": remoteID,
	}).Debug("[LINKEDIN] Share published")

	if len(raw) == 0 {
		raw, _ = json.Marshal(map[string]string{"id": remoteID})
	}
	return channel.Result{RemoteID: remoteID, Raw: raw}, nil
}

// uploadImage registers an upload slot, fetches the media and pushes its bytes.
// It returns the asset URN to reference from the share.
func (p *Publisher) uploadImage(ctx context.Context, kind channel.Kind, token, owner, mediaURL string) (string, error) {
	reg := registerUploadRequest{}
	reg.RegisterUploadRequest.Recipes = []string{imageRecipe}
	reg.RegisterUploadRequest.Owner = owner
	reg.RegisterUploadRequest.ServiceRelationships = []serviceRelationship{{
		RelationshipType: "OWNER",
		Identifier:       "urn:li:userGeneratedContent",
	}}

	var regOut registerUploadResponse
	if _, _, err := p.doJSON(ctx, kind, "register upload", http.MethodPost, p.BaseURL+"/v2/assets?action=registerUpload", token, reg, &regOut); err != nil {
		return "", err
	}

	uploadURL := regOut.Value.UploadMechanism.MediaUpload.UploadURL
	asset := regOut.Value.Asset
	if uploadURL == "" || asset == "" {
		return "", &channel.PublishError{Channel: kind, Op: "register upload", Message: "response did not include an upload url and asset"}
	}

	data, contentType, err := p.download(ctx, kind, mediaURL)
	if err != nil {
		return "", err
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	putReq.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		putReq.Header.Set("Content-Type", contentType)
	}
	resp, err := p.client().Do(putReq)
	if err != nil {
		return "", fmt.Errorf("%s upload media: %w", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return "", &channel.PublishError{Channel: kind, Op: "upload media", StatusCode: resp.StatusCode, Message: errorMessage(b, resp.Status), Raw: b}
	}

	logrus.WithFields(logrus.Fields{
		"asset": asset,
		"size":  humanize.Bytes(uint64(len(data))),
	}).Debug("[LINKEDIN] Image uploaded")

	return asset, nil
}

func (p *Publisher) download(ctx context.Context, kind channel.Kind, mediaURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s download media: %w", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", &channel.PublishError{Channel: kind, Op: "download media", StatusCode: resp.StatusCode, Message: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("%s download media: %w", kind, err)
	}
	if len(data) > maxMediaSize {
		return nil, "", &channel.PublishError{Channel: kind, Op: "download media", Message: "media larger than " + humanize.Bytes(maxMediaSize)}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (p *Publisher) doJSON(ctx context.Context, kind channel.Kind, op, method, endpoint, token string, body, dest any) ([]byte, http.Header, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", restliProtocolVersion)

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", kind, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: read body: %w", kind, op, err)
	}
	if resp.StatusCode >= 300 {
		return raw, resp.Header, &channel.PublishError{
			Channel:    kind,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.Status),
			Raw:        raw,
		}
	}
	if dest != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return raw, resp.Header, fmt.Errorf("%s %s: decode response: %w", kind, op, err)
		}
	}
	return raw, resp.Header, nil
}

func (p *Publisher) client() *http.Client {
	if p.HTTP == nil {
		return http.DefaultClient
	}
	return p.HTTP
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return fallback
}

var _ channel.Publisher = (*Publisher)(nil)

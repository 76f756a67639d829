// Package relay re-hosts media from transient platform links onto durable
// object storage so the receiving platform can fetch it at its own pace.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnibridge/omnibridge/internal/storage"
)

// Rehoster downloads a media URL and uploads it to object storage.
type Rehoster struct {
	client   *http.Client
	provider storage.Provider
	log      *slog.Logger
}

// NewRehoster builds a rehoster with a 30 second download timeout.
func NewRehoster(provider storage.Provider, log *slog.Logger) *Rehoster {
	return &Rehoster{
		client:   &http.Client{Timeout: 30 * time.Second},
		provider: provider,
		log:      log.With(slog.String("service", "relay")),
	}
}

// SetHTTPClient replaces the download client. Test hook.
func (r *Rehoster) SetHTTPClient(client *http.Client) {
	r.client = client
}

// RewriteDeskURL maps the desk's signed redirect links to their stable disk
// form. Redirect links expire before the gateway gets around to fetching
// them, the disk path does not.
func RewriteDeskURL(rawURL string) string {
	return strings.Replace(rawURL, "/blobs/redirect/", "/disk/", 1)
}

// Rehost fetches sourceURL and stores the bytes under a fresh key derived
// from the response content type. It returns the public URL and the mime
// type of the stored object.
func (r *Rehoster) Rehost(ctx context.Context, sourceURL string) (publicURL, mimeType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build media request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	mimeType = resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := uuid.NewString() + extensionFor(mimeType)
	if err := r.provider.Put(ctx, key, mimeType, resp.Body); err != nil {
		return "", "", fmt.Errorf("store media: %w", err)
	}

	publicURL = r.provider.PublicURL(key)
	r.log.Debug("rehosted media",
		slog.String("key", key),
		slog.String("mime_type", mimeType))
	return publicURL, mimeType, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}

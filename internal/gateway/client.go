// Package gateway talks to the WhatsApp messaging gateway's instance API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/omnibridge/omnibridge/internal/config"
	"github.com/omnibridge/omnibridge/internal/vendor"
)

const defaultTimeout = 20 * time.Second

// SendError reports a rejected or failed send, keeping the gateway's
// status and response body for the caller.
type SendError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway send %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("gateway send %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error { return e.Err }

// Client sends messages through the gateway on behalf of a vendor's
// instance. Credentials live on the vendor, the account client token on
// the client.
type Client struct {
	baseURL     string
	clientToken string
	http        *http.Client
	log         *slog.Logger
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, log *slog.Logger) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		clientToken: cfg.ClientToken,
		http:        &http.Client{Timeout: timeout},
		log:         log.With(slog.String("service", "gateway")),
	}
}

// SetHTTPClient replaces the underlying client. Test hook.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.http = client
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, v vendor.Vendor, phone, message string) error {
	return c.post(ctx, v, "send-text", map[string]string{
		"phone":   phone,
		"message": message,
	})
}

// SendImage delivers an image by URL with an optional caption.
func (c *Client) SendImage(ctx context.Context, v vendor.Vendor, phone, imageURL, caption string) error {
	return c.post(ctx, v, "send-image", map[string]string{
		"phone":   phone,
		"image":   imageURL,
		"caption": caption,
	})
}

// SendVideo delivers a video by URL with an optional caption.
func (c *Client) SendVideo(ctx context.Context, v vendor.Vendor, phone, videoURL, caption string) error {
	return c.post(ctx, v, "send-video", map[string]string{
		"phone":   phone,
		"video":   videoURL,
		"caption": caption,
	})
}

// SendAudio delivers an audio clip by URL.
func (c *Client) SendAudio(ctx context.Context, v vendor.Vendor, phone, audioURL string) error {
	return c.post(ctx, v, "send-audio", map[string]string{
		"phone": phone,
		"audio": audioURL,
	})
}

// SendDocument delivers a document by URL. The extension goes on the path
// so the gateway labels the file correctly.
func (c *Client) SendDocument(ctx context.Context, v vendor.Vendor, phone, documentURL, extension string) error {
	return c.post(ctx, v, "send-document/"+extension, map[string]string{
		"phone":    phone,
		"document": documentURL,
	})
}

func (c *Client) post(ctx context.Context, v vendor.Vendor, endpoint string, payload map[string]string) error {
	url := fmt.Sprintf("%s/instances/%s/token/%s/%s", c.baseURL, v.InstanceID, v.InstanceToken, endpoint)

	body, err := json.Marshal(payload)
	if err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Token", c.clientToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("gateway rejected send",
			slog.String("endpoint", endpoint),
			slog.String("vendor_id", v.ID),
			slog.Int("status", resp.StatusCode))
		return &SendError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// Package desk talks to the agent desk's public inbox API.
package desk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/omnibridge/omnibridge/internal/config"
)

const defaultTimeout = 15 * time.Second

// SendError reports a rejected or failed desk API call.
type SendError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("desk %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("desk %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error { return e.Err }

// Client drives the desk's public inbox endpoints with the account token.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	log      *slog.Logger
}

// NewClient builds a desk client from configuration.
func NewClient(cfg config.DeskConfig, log *slog.Logger) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		http:     &http.Client{Timeout: timeout},
		log:      log.With(slog.String("service", "desk")),
	}
}

// SetHTTPClient replaces the underlying client. Test hook.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.http = client
}

// CreateContact registers (or re-registers, the desk upserts) a contact on
// an inbox and returns the contact identifier used for conversation calls.
func (c *Client) CreateContact(ctx context.Context, inboxIdentifier, phone, name string) (string, error) {
	url := fmt.Sprintf("%s/public/api/v1/inboxes/%s/contacts", c.baseURL, inboxIdentifier)
	payload := map[string]string{
		"identifier":   phone,
		"name":         name,
		"phone_number": phone,
	}
	var out struct {
		SourceID          string `json:"source_id"`
		ContactIdentifier string `json:"contact_identifier"`
	}
	if err := c.postJSON(ctx, "create contact", url, payload, &out); err != nil {
		return "", err
	}
	contactID := out.SourceID
	if contactID == "" {
		contactID = out.ContactIdentifier
	}
	if contactID == "" {
		return "", &SendError{Operation: "create contact", Err: fmt.Errorf("response missing contact identifier")}
	}
	return contactID, nil
}

// OpenConversation returns the contact's open conversation id, creating a
// new conversation when none is open.
func (c *Client) OpenConversation(ctx context.Context, inboxIdentifier, contactID string) (string, error) {
	url := fmt.Sprintf("%s/public/api/v1/inboxes/%s/contacts/%s/conversations",
		c.baseURL, inboxIdentifier, contactID)

	if id, ok := c.findOpen(ctx, url); ok {
		return id, nil
	}

	var out struct {
		ID json.Number `json:"id"`
	}
	if err := c.postJSON(ctx, "create conversation", url, map[string]string{}, &out); err != nil {
		return "", err
	}
	if out.ID.String() == "" {
		return "", &SendError{Operation: "create conversation", Err: fmt.Errorf("response missing conversation id")}
	}
	return out.ID.String(), nil
}

func (c *Client) findOpen(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("api_access_token", c.apiToken)
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("failed to list conversations", slog.Any("error", err))
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	var convs []struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&convs); err != nil {
		return "", false
	}
	for _, conv := range convs {
		if conv.Status == "open" {
			return conv.ID.String(), true
		}
	}
	return "", false
}

// SendText posts a plain text message into a conversation. The echo id
// carries the source platform's message id so the desk can dedupe.
func (c *Client) SendText(ctx context.Context, inboxIdentifier, contactID, conversationID, content, echoID string) error {
	url := c.messagesURL(inboxIdentifier, contactID, conversationID)
	payload := map[string]string{"content": content}
	if echoID != "" {
		payload["echo_id"] = echoID
	}
	return c.postJSON(ctx, "send text", url, payload, nil)
}

// SendMedia downloads fileURL and posts the bytes into a conversation as a
// multipart attachment with an optional caption.
func (c *Client) SendMedia(ctx context.Context, inboxIdentifier, contactID, conversationID, fileURL, caption, echoID string) error {
	fileName, data, mimeType, err := c.download(ctx, fileURL)
	if err != nil {
		return &SendError{Operation: "send media", Err: err}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments[]"; filename=%q`, fileName))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return &SendError{Operation: "send media", Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return &SendError{Operation: "send media", Err: err}
	}
	if caption != "" {
		if err := writer.WriteField("content", caption); err != nil {
			return &SendError{Operation: "send media", Err: err}
		}
	}
	if echoID != "" {
		if err := writer.WriteField("echo_id", echoID); err != nil {
			return &SendError{Operation: "send media", Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return &SendError{Operation: "send media", Err: err}
	}

	url := c.messagesURL(inboxIdentifier, contactID, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return &SendError{Operation: "send media", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("api_access_token", c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return &SendError{Operation: "send media", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SendError{Operation: "send media", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func (c *Client) messagesURL(inboxIdentifier, contactID, conversationID string) string {
	return fmt.Sprintf("%s/public/api/v1/inboxes/%s/contacts/%s/conversations/%s/messages",
		c.baseURL, inboxIdentifier, contactID, conversationID)
}

func (c *Client) download(ctx context.Context, fileURL string) (fileName string, data []byte, mimeType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, "", fmt.Errorf("download media: unexpected status %d", resp.StatusCode)
	}
	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, "", fmt.Errorf("download media: %w", err)
	}
	mimeType = resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	parts := strings.Split(strings.TrimRight(fileURL, "/"), "/")
	fileName = parts[len(parts)-1]
	if fileName == "" {
		fileName = "arquivo"
	}
	return fileName, data, mimeType, nil
}

func (c *Client) postJSON(ctx context.Context, operation, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &SendError{Operation: operation, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &SendError{Operation: operation, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_access_token", c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return &SendError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("desk request failed",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode))
		return &SendError{Operation: operation, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &SendError{Operation: operation, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

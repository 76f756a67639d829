package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/omnibridge/omnibridge/internal/vendor"
)

// MediaUpload carries raw bytes for the multipart send variants.
type MediaUpload struct {
	FileName string
	MimeType string
	Data     []byte
	Caption  string
}

// SendImageBytes uploads image bytes instead of passing a URL.
func (c *Client) SendImageBytes(ctx context.Context, v vendor.Vendor, phone string, up MediaUpload) error {
	return c.postMultipart(ctx, v, "send-image", "image", phone, up, true)
}

// SendVideoBytes uploads video bytes.
func (c *Client) SendVideoBytes(ctx context.Context, v vendor.Vendor, phone string, up MediaUpload) error {
	return c.postMultipart(ctx, v, "send-video", "video", phone, up, true)
}

// SendAudioBytes uploads audio bytes. Audio sends carry no caption.
func (c *Client) SendAudioBytes(ctx context.Context, v vendor.Vendor, phone string, up MediaUpload) error {
	return c.postMultipart(ctx, v, "send-audio", "audio", phone, up, false)
}

// SendDocumentBytes uploads document bytes with the extension on the path.
func (c *Client) SendDocumentBytes(ctx context.Context, v vendor.Vendor, phone, extension string, up MediaUpload) error {
	return c.postMultipart(ctx, v, "send-document/"+extension, "document", phone, up, false)
}

func (c *Client) postMultipart(ctx context.Context, v vendor.Vendor, endpoint, field, phone string, up MediaUpload, withCaption bool) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, up.FileName))
	header.Set("Content-Type", up.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}
	if _, err := part.Write(up.Data); err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}
	if err := writer.WriteField("phone", phone); err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}
	if withCaption {
		if err := writer.WriteField("caption", up.Caption); err != nil {
			return &SendError{Endpoint: endpoint, Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s/%s", c.baseURL, v.InstanceID, v.InstanceToken, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Client-Token", c.clientToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return &SendError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SendError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

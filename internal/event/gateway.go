package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Gateway callback types that carry messages. Anything else is ignored.
const (
	GatewayReceivedCallback = "ReceivedCallback"
	GatewaySentCallback     = "SentCallback"
)

// GatewayMedia is one media payload on a gateway event.
type GatewayMedia struct {
	URL      string `json:"url"`
	Caption  string `json:"caption"`
	MimeType string `json:"mimeType"`
}

// GatewayEvent is a parsed inbound webhook event from the messaging gateway.
type GatewayEvent struct {
	Type              string
	InstanceID        string
	MessageID         string
	Phone             string
	ParticipantPhone  string
	IsGroup           bool
	SenderName        string
	ChatName          string
	ChatID            string
	ParticipantChatID string
	Text              string
	Image             *GatewayMedia
	Video             *GatewayMedia
	Audio             *GatewayMedia
	Document          *GatewayMedia
}

type gatewayWire struct {
	Type             string `json:"type"`
	InstanceID       string `json:"instanceId"`
	MessageID        string `json:"messageId"`
	Phone            string `json:"phone"`
	ParticipantPhone string `json:"participantPhone"`
	IsGroup          bool   `json:"isGroup"`
	SenderName       string `json:"senderName"`
	ChatName         string `json:"chatName"`
	ChatLid          string `json:"chatLid"`
	ParticipantLid   string `json:"participantLid"`
	Text             *struct {
		Message string `json:"message"`
	} `json:"text"`
	Image    *gatewayMediaWire `json:"image"`
	Video    *gatewayMediaWire `json:"video"`
	Audio    *gatewayMediaWire `json:"audio"`
	Document *gatewayMediaWire `json:"document"`
}

type gatewayMediaWire struct {
	ImageURL    string `json:"imageUrl"`
	VideoURL    string `json:"videoUrl"`
	AudioURL    string `json:"audioUrl"`
	DocumentURL string `json:"documentUrl"`
	Caption     string `json:"caption"`
	MimeType    string `json:"mimeType"`
}

func (w *gatewayMediaWire) toMedia() *GatewayMedia {
	if w == nil {
		return nil
	}
	url := w.ImageURL
	for _, candidate := range []string{w.VideoURL, w.AudioURL, w.DocumentURL} {
		if url == "" {
			url = candidate
		}
	}
	return &GatewayMedia{
		URL:      strings.TrimSpace(url),
		Caption:  w.Caption,
		MimeType: w.MimeType,
	}
}

// ParseGatewayEvent decodes a raw gateway webhook body into a typed event.
func ParseGatewayEvent(body []byte) (GatewayEvent, error) {
	var wire gatewayWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return GatewayEvent{}, fmt.Errorf("decode gateway event: %w", err)
	}
	ev := GatewayEvent{
		Type:              wire.Type,
		InstanceID:        strings.TrimSpace(wire.InstanceID),
		MessageID:         wire.MessageID,
		Phone:             wire.Phone,
		ParticipantPhone:  wire.ParticipantPhone,
		IsGroup:           wire.IsGroup,
		SenderName:        wire.SenderName,
		ChatName:          wire.ChatName,
		ChatID:            wire.ChatLid,
		ParticipantChatID: wire.ParticipantLid,
		Image:             wire.Image.toMedia(),
		Video:             wire.Video.toMedia(),
		Audio:             wire.Audio.toMedia(),
		Document:          wire.Document.toMedia(),
	}
	if wire.Text != nil {
		ev.Text = wire.Text.Message
	}
	return ev, nil
}

// IsMessageCallback reports whether the event type carries a message.
// An absent type is accepted; some gateway deployments omit it.
func (e GatewayEvent) IsMessageCallback() bool {
	switch e.Type {
	case GatewayReceivedCallback, GatewaySentCallback, "":
		return true
	}
	return false
}

// RawParticipant returns the raw participant identifier: the participant
// phone for group traffic, the chat phone otherwise.
func (e GatewayEvent) RawParticipant() string {
	if e.IsGroup {
		return e.ParticipantPhone
	}
	return e.Phone
}

// DisplayName returns the sender display name with the chat name as
// fallback, or "Cliente" when neither is present.
func (e GatewayEvent) DisplayName() string {
	if strings.TrimSpace(e.SenderName) != "" {
		return e.SenderName
	}
	if strings.TrimSpace(e.ChatName) != "" {
		return e.ChatName
	}
	return "Cliente"
}

// NativeChatID returns the gateway's opaque per-chat identifier.
func (e GatewayEvent) NativeChatID() string {
	if e.ChatID != "" {
		return e.ChatID
	}
	return e.ParticipantChatID
}

// Kind classifies the event: text wins when a non-empty text body is
// present; otherwise the single present media payload decides.
func (e GatewayEvent) Kind() Kind {
	if strings.TrimSpace(e.Text) != "" {
		return KindText
	}
	switch {
	case e.Image != nil:
		return KindImage
	case e.Video != nil:
		return KindVideo
	case e.Audio != nil:
		return KindAudio
	case e.Document != nil:
		return KindDocument
	}
	return KindUnknown
}

// Media returns the media payload for the given kind, or nil.
func (e GatewayEvent) Media(kind Kind) *GatewayMedia {
	switch kind {
	case KindImage:
		return e.Image
	case KindVideo:
		return e.Video
	case KindAudio:
		return e.Audio
	case KindDocument:
		return e.Document
	}
	return nil
}

// Caption returns the forwarded caption: the text body when present,
// otherwise the media payload's own caption.
func (e GatewayEvent) Caption(kind Kind) string {
	if strings.TrimSpace(e.Text) != "" {
		return e.Text
	}
	if media := e.Media(kind); media != nil {
		return media.Caption
	}
	return ""
}

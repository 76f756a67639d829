package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Desk webhook event and message types that are forwarded.
const (
	DeskMessageCreated = "message_created"
	DeskOutgoing       = "outgoing"
)

// DeskAttachment is one attachment on a desk event.
type DeskAttachment struct {
	FileType string `json:"file_type"`
	DataURL  string `json:"data_url"`
}

// DeskEvent is a parsed inbound webhook event from the agent desk.
type DeskEvent struct {
	Event              string
	MessageType        string
	Private            bool
	Content            string
	Attachments        []DeskAttachment
	AgentID            int64
	AgentName          string
	ContactID          string
	DeskConversationID string
}

type deskWire struct {
	Event       string           `json:"event"`
	MessageType string           `json:"message_type"`
	Private     bool             `json:"private"`
	Content     string           `json:"content"`
	Attachments []DeskAttachment `json:"attachments"`
	Sender      struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"sender"`
	Conversation struct {
		ID   json.Number `json:"id"`
		Meta struct {
			Sender struct {
				Identifier  string `json:"identifier"`
				PhoneNumber string `json:"phone_number"`
			} `json:"sender"`
		} `json:"meta"`
	} `json:"conversation"`
}

// ParseDeskEvent decodes a raw desk webhook body into a typed event.
func ParseDeskEvent(body []byte) (DeskEvent, error) {
	var wire deskWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return DeskEvent{}, fmt.Errorf("decode desk event: %w", err)
	}

	contact := wire.Conversation.Meta.Sender.Identifier
	if strings.TrimSpace(contact) == "" {
		contact = wire.Conversation.Meta.Sender.PhoneNumber
	}

	return DeskEvent{
		Event:              wire.Event,
		MessageType:        wire.MessageType,
		Private:            wire.Private,
		Content:            wire.Content,
		Attachments:        wire.Attachments,
		AgentID:            wire.Sender.ID,
		AgentName:          wire.Sender.Name,
		ContactID:          strings.TrimSpace(contact),
		DeskConversationID: wire.Conversation.ID.String(),
	}, nil
}

// ShouldForward reports whether the event is an outgoing, non-private
// message-created event — the only desk traffic the bridge forwards.
func (e DeskEvent) ShouldForward() bool {
	return e.Event == DeskMessageCreated && e.MessageType == DeskOutgoing && !e.Private
}

// Kind classifies the event: text when content is present with no
// attachments, otherwise the leading attachment's declared type decides.
func (e DeskEvent) Kind() Kind {
	if strings.TrimSpace(e.Content) != "" && len(e.Attachments) == 0 {
		return KindText
	}
	if len(e.Attachments) == 0 {
		return KindUnknown
	}
	return kindFromFileType(e.Attachments[0].FileType)
}

// Attachment returns the leading attachment, or nil.
func (e DeskEvent) Attachment() *DeskAttachment {
	if len(e.Attachments) == 0 {
		return nil
	}
	return &e.Attachments[0]
}

// DocumentExtension returns the file extension to use for a document send,
// derived from the attachment's declared type ("application/pdf" → "pdf").
func (e DeskEvent) DocumentExtension() string {
	att := e.Attachment()
	if att == nil || strings.TrimSpace(att.FileType) == "" {
		return "pdf"
	}
	parts := strings.Split(att.FileType, "/")
	return parts[len(parts)-1]
}

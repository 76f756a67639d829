package desk

import (
	"context"
	"fmt"

	"github.com/omnibridge/omnibridge/internal/event"
)

// ForwardGatewayMessage ensures the contact and conversation exist on the
// desk side and delivers the gateway event into them. Group messages get
// the sender's display name prefixed so agents can tell members apart.
// It returns the desk conversation id the message landed in.
func (c *Client) ForwardGatewayMessage(ctx context.Context, inboxIdentifier, participantID string, ev event.GatewayEvent) (string, error) {
	contactID, err := c.CreateContact(ctx, inboxIdentifier, participantID, ev.DisplayName())
	if err != nil {
		return "", err
	}
	conversationID, err := c.OpenConversation(ctx, inboxIdentifier, contactID)
	if err != nil {
		return "", err
	}

	kind := ev.Kind()
	switch {
	case kind == event.KindText:
		content := ev.Text
		if ev.IsGroup {
			content = fmt.Sprintf("*%s:*\n%s", ev.DisplayName(), content)
		}
		if err := c.SendText(ctx, inboxIdentifier, contactID, conversationID, content, ev.MessageID); err != nil {
			return "", err
		}
	case kind.IsMedia():
		media := ev.Media(kind)
		if media == nil || media.URL == "" {
			return "", &SendError{Operation: "forward", Err: fmt.Errorf("media event without url")}
		}
		caption := ev.Caption(kind)
		if ev.IsGroup {
			caption = fmt.Sprintf("*%s:*\n%s", ev.DisplayName(), caption)
		}
		if err := c.SendMedia(ctx, inboxIdentifier, contactID, conversationID, media.URL, caption, ev.MessageID); err != nil {
			return "", err
		}
	default:
		return "", &SendError{Operation: "forward", Err: fmt.Errorf("unsupported message kind %q", kind)}
	}
	return conversationID, nil
}

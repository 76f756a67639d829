package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/omnibridge/omnibridge/internal/conversation"
	"github.com/omnibridge/omnibridge/internal/desk"
	"github.com/omnibridge/omnibridge/internal/event"
	"github.com/omnibridge/omnibridge/internal/identity"
	"github.com/omnibridge/omnibridge/internal/messagelog"
	"github.com/omnibridge/omnibridge/internal/session"
	"github.com/omnibridge/omnibridge/internal/vendor"
)

// DeskForwarder delivers a gateway event into the agent desk and reports
// the desk conversation it landed in.
type DeskForwarder interface {
	ForwardGatewayMessage(ctx context.Context, inboxIdentifier, participantID string, ev event.GatewayEvent) (string, error)
}

var _ DeskForwarder = (*desk.Client)(nil)

// GatewayInbound processes messages arriving from the gateway and forwards
// them to the agent desk.
type GatewayInbound struct {
	vendors       *vendor.Directory
	conversations *conversation.Resolver
	sessions      *session.Manager
	forwarder     DeskForwarder
	audit         *messagelog.Recorder
	log           *slog.Logger
}

// NewGatewayInbound wires the gateway-to-desk processor.
func NewGatewayInbound(
	vendors *vendor.Directory,
	conversations *conversation.Resolver,
	sessions *session.Manager,
	forwarder DeskForwarder,
	audit *messagelog.Recorder,
	log *slog.Logger,
) *GatewayInbound {
	return &GatewayInbound{
		vendors:       vendors,
		conversations: conversations,
		sessions:      sessions,
		forwarder:     forwarder,
		audit:         audit,
		log:           log.With(slog.String("service", "bridge.gateway")),
	}
}

// Process runs one gateway event through the full inbound flow. Events
// that cannot be attributed to a tenant or participant are skipped, not
// failed; there is nothing to retry.
func (p *GatewayInbound) Process(ctx context.Context, ev event.GatewayEvent) error {
	if ev.InstanceID == "" {
		p.log.Warn("gateway event without instance id, skipping")
		return nil
	}
	v, err := p.vendors.ResolveByInstance(ctx, ev.InstanceID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resolve vendor: %w", err)
	}

	participantID, ok := identity.CanonicalParticipant(ev.RawParticipant())
	if !ok {
		p.log.Warn("gateway event without participant, skipping",
			slog.String("vendor_id", v.ID))
		return nil
	}

	kind := ev.Kind()
	if kind == event.KindUnknown {
		p.log.Debug("gateway event is an ack or empty message, skipping",
			slog.String("vendor_id", v.ID))
		return nil
	}

	conv, err := p.conversations.Ensure(ctx, participantID, v.ID)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	ensure := session.EnsureParams{
		ConversationID: conv.ID,
		ParticipantID:  participantID,
		VendorID:       v.ID,
		GatewayChatID:  ev.NativeChatID(),
	}
	sess, err := p.sessions.Ensure(ctx, ensure)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	deskConvID, err := p.forwarder.ForwardGatewayMessage(ctx, v.InboxIdentifier, participantID, ev)
	if err != nil {
		return fmt.Errorf("forward to desk: %w", err)
	}

	// The desk conversation id is only known after the forward. Write it
	// back so the desk-to-gateway direction can route from the cache.
	ensure.DeskConversationID = deskConvID
	if sess, err = p.sessions.Ensure(ctx, ensure); err != nil {
		return fmt.Errorf("record desk conversation id: %w", err)
	}

	p.audit.Record(ctx, messagelog.Entry{
		ConversationID: conv.ID,
		SessionID:      sess.ID,
		VendorID:       v.ID,
		Direction:      messagelog.DirectionInbound,
		Source:         messagelog.SourceGateway,
		MessageType:    string(kind),
		Content:        ev.Caption(kind),
	})

	p.log.Info("forwarded gateway message",
		slog.String("vendor_id", v.ID),
		slog.String("conversation_id", conv.ID),
		slog.String("desk_conversation_id", deskConvID),
		slog.String("kind", string(kind)))
	return nil
}

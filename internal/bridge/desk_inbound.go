package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/omnibridge/omnibridge/internal/conversation"
	"github.com/omnibridge/omnibridge/internal/event"
	"github.com/omnibridge/omnibridge/internal/gateway"
	"github.com/omnibridge/omnibridge/internal/identity"
	"github.com/omnibridge/omnibridge/internal/messagelog"
	"github.com/omnibridge/omnibridge/internal/relay"
	"github.com/omnibridge/omnibridge/internal/session"
	"github.com/omnibridge/omnibridge/internal/vendor"
)

// GatewaySender is the outbound surface of the gateway client the desk
// direction needs.
type GatewaySender interface {
	SendText(ctx context.Context, v vendor.Vendor, phone, message string) error
	SendImage(ctx context.Context, v vendor.Vendor, phone, imageURL, caption string) error
	SendVideo(ctx context.Context, v vendor.Vendor, phone, videoURL, caption string) error
	SendAudio(ctx context.Context, v vendor.Vendor, phone, audioURL string) error
	SendDocument(ctx context.Context, v vendor.Vendor, phone, documentURL, extension string) error
}

var _ GatewaySender = (*gateway.Client)(nil)

// MediaRehoster moves a transient media URL onto durable storage.
type MediaRehoster interface {
	Rehost(ctx context.Context, sourceURL string) (publicURL, mimeType string, err error)
}

var _ MediaRehoster = (*relay.Rehoster)(nil)

// DeskInbound processes agent replies arriving from the desk and delivers
// them through the gateway.
type DeskInbound struct {
	vendors       *vendor.Directory
	conversations *conversation.Resolver
	sessions      *session.Manager
	routeCache    *session.Cache
	sender        GatewaySender
	rehoster      MediaRehoster
	audit         *messagelog.Recorder
	log           *slog.Logger
}

// NewDeskInbound wires the desk-to-gateway processor.
func NewDeskInbound(
	vendors *vendor.Directory,
	conversations *conversation.Resolver,
	sessions *session.Manager,
	routeCache *session.Cache,
	sender GatewaySender,
	rehoster MediaRehoster,
	audit *messagelog.Recorder,
	log *slog.Logger,
) *DeskInbound {
	return &DeskInbound{
		vendors:       vendors,
		conversations: conversations,
		sessions:      sessions,
		routeCache:    routeCache,
		sender:        sender,
		rehoster:      rehoster,
		audit:         audit,
		log:           log.With(slog.String("service", "bridge.desk")),
	}
}

// Process runs one desk event through the full outbound flow.
func (p *DeskInbound) Process(ctx context.Context, ev event.DeskEvent) error {
	if ev.ContactID == "" {
		p.log.Warn("desk event without contact identifier, skipping")
		return nil
	}
	if ev.AgentID == 0 {
		p.log.Warn("desk event without agent, skipping")
		return nil
	}

	v, err := p.vendors.ResolveByAgent(ctx, ev.AgentID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resolve vendor: %w", err)
	}

	participantID, ok := identity.CanonicalParticipant(ev.ContactID)
	if !ok {
		p.log.Warn("desk contact identifier is empty after normalization, skipping",
			slog.String("vendor_id", v.ID))
		return nil
	}
	target := identity.DialTarget(participantID)
	if target == "" {
		p.log.Warn("no dial target for desk contact, skipping",
			slog.String("vendor_id", v.ID))
		return nil
	}

	conv, err := p.conversations.Ensure(ctx, participantID, v.ID)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	// The cache may point at a conversation and desk id pair from earlier
	// traffic; prefer it so both directions agree on the route.
	conversationID := conv.ID
	deskConvID := ev.DeskConversationID
	if mapping, hit := p.routeCache.Get(ctx, v.ID, participantID); hit {
		conversationID = mapping.ConversationID
		deskConvID = mapping.DeskConversationID
	}

	sess, err := p.sessions.Ensure(ctx, session.EnsureParams{
		ConversationID:     conversationID,
		ParticipantID:      participantID,
		VendorID:           v.ID,
		DeskConversationID: deskConvID,
	})
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	kind := ev.Kind()
	switch {
	case kind == event.KindText:
		if err := p.sender.SendText(ctx, v, target, ev.Content); err != nil {
			return err
		}
	case kind.IsMedia():
		if err := p.sendMedia(ctx, v, target, kind, ev); err != nil {
			return err
		}
	default:
		p.log.Debug("unsupported desk message kind, skipping",
			slog.String("vendor_id", v.ID))
		return nil
	}

	p.audit.Record(ctx, messagelog.Entry{
		ConversationID: conversationID,
		SessionID:      sess.ID,
		VendorID:       v.ID,
		Direction:      messagelog.DirectionOutbound,
		Source:         messagelog.SourceDesk,
		MessageType:    string(kind),
		Content:        ev.Content,
	})

	p.log.Info("delivered desk message",
		slog.String("vendor_id", v.ID),
		slog.String("conversation_id", conversationID),
		slog.String("kind", string(kind)))
	return nil
}

// sendMedia re-hosts the desk's transient attachment link on durable
// storage, then hands the stable URL to the gateway.
func (p *DeskInbound) sendMedia(ctx context.Context, v vendor.Vendor, target string, kind event.Kind, ev event.DeskEvent) error {
	att := ev.Attachment()
	if att == nil || att.DataURL == "" {
		p.log.Warn("desk media event without data url, skipping",
			slog.String("vendor_id", v.ID))
		return nil
	}

	sourceURL := relay.RewriteDeskURL(att.DataURL)
	publicURL, _, err := p.rehoster.Rehost(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("rehost media: %w", err)
	}

	switch kind {
	case event.KindImage:
		return p.sender.SendImage(ctx, v, target, publicURL, ev.Content)
	case event.KindVideo:
		return p.sender.SendVideo(ctx, v, target, publicURL, ev.Content)
	case event.KindAudio:
		return p.sender.SendAudio(ctx, v, target, publicURL)
	case event.KindDocument:
		return p.sender.SendDocument(ctx, v, target, publicURL, ev.DocumentExtension())
	}
	return nil
}

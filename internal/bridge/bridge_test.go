package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/omnibridge/omnibridge/internal/cache"
	"github.com/omnibridge/omnibridge/internal/conversation"
	"github.com/omnibridge/omnibridge/internal/event"
	"github.com/omnibridge/omnibridge/internal/messagelog"
	"github.com/omnibridge/omnibridge/internal/session"
	"github.com/omnibridge/omnibridge/internal/vendor"
)

// ---- fakes ----

type fakeVendorStore struct {
	vendors []vendor.Vendor
}

func (s *fakeVendorStore) lookup(match func(vendor.Vendor) bool) (vendor.Vendor, error) {
	for _, v := range s.vendors {
		if v.Active && match(v) {
			return v, nil
		}
	}
	return vendor.Vendor{}, vendor.ErrNotFound
}

func (s *fakeVendorStore) GetByInstance(_ context.Context, instanceID string) (vendor.Vendor, error) {
	return s.lookup(func(v vendor.Vendor) bool { return v.InstanceID == instanceID })
}

func (s *fakeVendorStore) GetByAgent(_ context.Context, agentID int64) (vendor.Vendor, error) {
	return s.lookup(func(v vendor.Vendor) bool { return v.AgentID == agentID })
}

func (s *fakeVendorStore) GetByInbox(_ context.Context, inbox string) (vendor.Vendor, error) {
	return s.lookup(func(v vendor.Vendor) bool { return v.InboxIdentifier == inbox })
}

func (s *fakeVendorStore) GetByPhone(_ context.Context, phone string) (vendor.Vendor, error) {
	return s.lookup(func(v vendor.Vendor) bool { return v.Phone == phone })
}

func (s *fakeVendorStore) Get(_ context.Context, id string) (vendor.Vendor, error) {
	return s.lookup(func(v vendor.Vendor) bool { return v.ID == id })
}

func (s *fakeVendorStore) List(_ context.Context) ([]vendor.Vendor, error) {
	return s.vendors, nil
}

func (s *fakeVendorStore) Create(_ context.Context, params vendor.CreateParams) (vendor.Vendor, error) {
	v := vendor.Vendor{
		ID:              fmt.Sprintf("vendor-%d", len(s.vendors)+1),
		Name:            params.Name,
		AgentID:         params.AgentID,
		InboxIdentifier: params.InboxIdentifier,
		InstanceID:      params.InstanceID,
		InstanceToken:   params.InstanceToken,
		Active:          true,
	}
	s.vendors = append(s.vendors, v)
	return v, nil
}

func (s *fakeVendorStore) Deactivate(_ context.Context, id string) error {
	for i, v := range s.vendors {
		if v.ID == id {
			s.vendors[i].Active = false
			return nil
		}
	}
	return vendor.ErrNotFound
}

type fakeConvStore struct {
	rows map[string]conversation.Conversation
	seq  int
}

func (s *fakeConvStore) GetMostRecent(_ context.Context, participantID string) (conversation.Conversation, error) {
	var candidates []conversation.Conversation
	for _, c := range s.rows {
		if c.ParticipantID == participantID {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].LastActiveAt, candidates[j].LastActiveAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
	return candidates[0], nil
}

func (s *fakeConvStore) Get(_ context.Context, id string) (conversation.Conversation, error) {
	c, ok := s.rows[id]
	if !ok {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	return c, nil
}

func (s *fakeConvStore) Create(_ context.Context, participantID, vendorID string, activeAt time.Time) (conversation.Conversation, error) {
	s.seq++
	at := activeAt
	c := conversation.Conversation{
		ID:              fmt.Sprintf("conv-%d", s.seq),
		ParticipantID:   participantID,
		CurrentVendorID: vendorID,
		Status:          conversation.StatusOpen,
		LastActiveAt:    &at,
	}
	s.rows[c.ID] = c
	return c, nil
}

func (s *fakeConvStore) Touch(_ context.Context, id, vendorID string, activeAt time.Time) (conversation.Conversation, error) {
	c, ok := s.rows[id]
	if !ok {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	at := activeAt
	c.CurrentVendorID = vendorID
	c.LastActiveAt = &at
	s.rows[id] = c
	return c, nil
}

func (s *fakeConvStore) Close(_ context.Context, id string) error {
	c, ok := s.rows[id]
	if !ok {
		return conversation.ErrNotFound
	}
	c.Status = conversation.StatusClosed
	s.rows[id] = c
	return nil
}

type fakeSessionStore struct {
	rows map[string]session.Session
	seq  int
}

func (s *fakeSessionStore) GetOpen(_ context.Context, conversationID string) (session.Session, error) {
	for _, sess := range s.rows {
		if sess.ConversationID == conversationID && sess.Open() {
			return sess, nil
		}
	}
	return session.Session{}, session.ErrNoOpenSession
}

func (s *fakeSessionStore) Create(_ context.Context, params session.CreateParams) (session.Session, error) {
	s.seq++
	sess := session.Session{
		ID:                 fmt.Sprintf("sess-%d", s.seq),
		ConversationID:     params.ConversationID,
		VendorID:           params.VendorID,
		DeskConversationID: params.DeskConversationID,
		GatewayChatID:      params.GatewayChatID,
		StartAt:            time.Now(),
	}
	s.rows[sess.ID] = sess
	return sess, nil
}

func (s *fakeSessionStore) UpdatePlatformIDs(_ context.Context, id, deskConversationID, gatewayChatID string) (session.Session, error) {
	sess, ok := s.rows[id]
	if !ok {
		return session.Session{}, session.ErrNoOpenSession
	}
	if deskConversationID != "" {
		sess.DeskConversationID = deskConversationID
	}
	if gatewayChatID != "" {
		sess.GatewayChatID = gatewayChatID
	}
	s.rows[id] = sess
	return sess, nil
}

func (s *fakeSessionStore) Close(_ context.Context, id string, endAt time.Time) error {
	sess, ok := s.rows[id]
	if !ok || !sess.Open() {
		return session.ErrNoOpenSession
	}
	at := endAt
	sess.EndAt = &at
	s.rows[id] = sess
	return nil
}

func (s *fakeSessionStore) openSessions(conversationID string) []session.Session {
	var open []session.Session
	for _, sess := range s.rows {
		if sess.ConversationID == conversationID && sess.Open() {
			open = append(open, sess)
		}
	}
	return open
}

type fakeForwarder struct {
	calls      []event.GatewayEvent
	inboxes    []string
	deskConvID string
	err        error
}

func (f *fakeForwarder) ForwardGatewayMessage(_ context.Context, inboxIdentifier, _ string, ev event.GatewayEvent) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, ev)
	f.inboxes = append(f.inboxes, inboxIdentifier)
	return f.deskConvID, nil
}

type sentMessage struct {
	kind    string
	phone   string
	url     string
	content string
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendText(_ context.Context, _ vendor.Vendor, phone, message string) error {
	f.sent = append(f.sent, sentMessage{kind: "text", phone: phone, content: message})
	return nil
}

func (f *fakeSender) SendImage(_ context.Context, _ vendor.Vendor, phone, imageURL, caption string) error {
	f.sent = append(f.sent, sentMessage{kind: "image", phone: phone, url: imageURL, content: caption})
	return nil
}

func (f *fakeSender) SendVideo(_ context.Context, _ vendor.Vendor, phone, videoURL, caption string) error {
	f.sent = append(f.sent, sentMessage{kind: "video", phone: phone, url: videoURL, content: caption})
	return nil
}

func (f *fakeSender) SendAudio(_ context.Context, _ vendor.Vendor, phone, audioURL string) error {
	f.sent = append(f.sent, sentMessage{kind: "audio", phone: phone, url: audioURL})
	return nil
}

func (f *fakeSender) SendDocument(_ context.Context, _ vendor.Vendor, phone, documentURL, extension string) error {
	f.sent = append(f.sent, sentMessage{kind: "document/" + extension, phone: phone, url: documentURL})
	return nil
}

type fakeRehoster struct {
	sources []string
}

func (f *fakeRehoster) Rehost(_ context.Context, sourceURL string) (string, string, error) {
	f.sources = append(f.sources, sourceURL)
	return "https://media.example/rehosted", "image/jpeg", nil
}

type fakeLogStore struct {
	entries []messagelog.Entry
}

func (s *fakeLogStore) Append(_ context.Context, entry messagelog.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

// ---- harness ----

type harness struct {
	vendors   *fakeVendorStore
	convs     *fakeConvStore
	sessions  *fakeSessionStore
	cache     *session.Cache
	forwarder *fakeForwarder
	sender    *fakeSender
	rehoster  *fakeRehoster
	logs      *fakeLogStore
	gateway   *GatewayInbound
	desk      *DeskInbound
}

func newHarness() *harness {
	log := slog.Default()
	h := &harness{
		vendors: &fakeVendorStore{vendors: []vendor.Vendor{
			{ID: "vendor-a", AgentID: 42, InboxIdentifier: "inbox-a", InstanceID: "inst-a", Active: true},
			{ID: "vendor-b", AgentID: 43, InboxIdentifier: "inbox-b", InstanceID: "inst-b", Active: true},
		}},
		convs:     &fakeConvStore{rows: map[string]conversation.Conversation{}},
		sessions:  &fakeSessionStore{rows: map[string]session.Session{}},
		forwarder: &fakeForwarder{deskConvID: "987"},
		sender:    &fakeSender{},
		rehoster:  &fakeRehoster{},
		logs:      &fakeLogStore{},
	}
	h.cache = session.NewCache(cache.NewMemoryStore(), time.Hour)

	directory := vendor.NewDirectory(log, h.vendors)
	resolver := conversation.NewResolver(log, h.convs, conversation.DefaultTTL)
	manager := session.NewManager(h.sessions, h.cache, log)
	audit := messagelog.NewRecorder(h.logs, log)

	h.gateway = NewGatewayInbound(directory, resolver, manager, h.forwarder, audit, log)
	h.desk = NewDeskInbound(directory, resolver, manager, h.cache, h.sender, h.rehoster, audit, log)
	return h
}

func gatewayTextEvent(instanceID, phone, text string) event.GatewayEvent {
	return event.GatewayEvent{
		Type:       event.GatewayReceivedCallback,
		InstanceID: instanceID,
		MessageID:  "msg-1",
		Phone:      phone,
		SenderName: "Maria",
		ChatID:     "lid-1",
		Text:       text,
	}
}

// ---- scenarios ----

// A customer's first message creates the conversation and session, lands
// on the desk, and records the desk conversation id for the return path.
func TestGatewayMessageFullFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	ev := gatewayTextEvent("inst-a", "5511999999999", "oi")
	if err := h.gateway.Process(ctx, ev); err != nil {
		t.Fatal(err)
	}

	if len(h.forwarder.calls) != 1 {
		t.Fatalf("forwards = %d, want 1", len(h.forwarder.calls))
	}
	if h.forwarder.inboxes[0] != "inbox-a" {
		t.Fatalf("inbox = %q", h.forwarder.inboxes[0])
	}

	open := h.sessions.openSessions("conv-1")
	if len(open) != 1 {
		t.Fatalf("open sessions = %d, want 1", len(open))
	}
	sess := open[0]
	if sess.DeskConversationID != "987" || sess.GatewayChatID != "lid-1" {
		t.Fatalf("session platform ids: %+v", sess)
	}

	mapping, ok := h.cache.Get(ctx, "vendor-a", "+5511999999999")
	if !ok || mapping.DeskConversationID != "987" {
		t.Fatalf("route cache: %+v ok=%t", mapping, ok)
	}

	if len(h.logs.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(h.logs.entries))
	}
	entry := h.logs.entries[0]
	if entry.Direction != messagelog.DirectionInbound || entry.Source != messagelog.SourceGateway || entry.Content != "oi" {
		t.Fatalf("audit entry: %+v", entry)
	}
}

func TestGatewayMessageUnknownVendorSkipped(t *testing.T) {
	h := newHarness()

	ev := gatewayTextEvent("inst-unknown", "5511999999999", "oi")
	if err := h.gateway.Process(context.Background(), ev); err != nil {
		t.Fatalf("unknown vendor must not error: %v", err)
	}
	if len(h.forwarder.calls) != 0 {
		t.Fatal("nothing must be forwarded")
	}
	if len(h.convs.rows) != 0 {
		t.Fatal("no conversation must be created")
	}
}

func TestGatewayAckSkipped(t *testing.T) {
	h := newHarness()

	ev := event.GatewayEvent{InstanceID: "inst-a", Phone: "5511999999999"}
	if err := h.gateway.Process(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(h.forwarder.calls) != 0 || len(h.convs.rows) != 0 {
		t.Fatal("acks must not produce forwards or rows")
	}
}

// An agent reply flows back through the gateway using the digits-only
// dial target, rehosting nothing for plain text.
func TestDeskReplyFullFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	// Inbound first, so the route cache is warm.
	if err := h.gateway.Process(ctx, gatewayTextEvent("inst-a", "5511999999999", "oi")); err != nil {
		t.Fatal(err)
	}

	reply := event.DeskEvent{
		Event:              event.DeskMessageCreated,
		MessageType:        event.DeskOutgoing,
		Content:            "ola, como posso ajudar?",
		AgentID:            42,
		ContactID:          "+5511999999999",
		DeskConversationID: "987",
	}
	if err := h.desk.Process(ctx, reply); err != nil {
		t.Fatal(err)
	}

	if len(h.sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(h.sender.sent))
	}
	sent := h.sender.sent[0]
	if sent.kind != "text" || sent.phone != "5511999999999" || sent.content != "ola, como posso ajudar?" {
		t.Fatalf("sent: %+v", sent)
	}

	// Both directions stayed on the same conversation and session.
	if len(h.convs.rows) != 1 {
		t.Fatalf("conversations = %d, want 1", len(h.convs.rows))
	}
	open := h.sessions.openSessions("conv-1")
	if len(open) != 1 {
		t.Fatalf("open sessions = %d, want 1", len(open))
	}

	if len(h.logs.entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(h.logs.entries))
	}
	if h.logs.entries[1].Direction != messagelog.DirectionOutbound {
		t.Fatalf("second entry direction = %q", h.logs.entries[1].Direction)
	}
}

// A desk media reply is rehosted from the rewritten stable link before the
// gateway sees it.
func TestDeskMediaReplyRehosts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	reply := event.DeskEvent{
		Event:       event.DeskMessageCreated,
		MessageType: event.DeskOutgoing,
		Content:     "segue o contrato",
		AgentID:     42,
		ContactID:   "+5511999999999",
		Attachments: []event.DeskAttachment{{
			FileType: "application/pdf",
			DataURL:  "https://desk.example/blobs/redirect/abc/contrato.pdf",
		}},
		DeskConversationID: "987",
	}
	if err := h.desk.Process(ctx, reply); err != nil {
		t.Fatal(err)
	}

	if len(h.rehoster.sources) != 1 {
		t.Fatalf("rehosts = %d, want 1", len(h.rehoster.sources))
	}
	if h.rehoster.sources[0] != "https://desk.example/disk/abc/contrato.pdf" {
		t.Fatalf("rehost source = %q, want the rewritten disk link", h.rehoster.sources[0])
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(h.sender.sent))
	}
	sent := h.sender.sent[0]
	if sent.kind != "document/pdf" || sent.url != "https://media.example/rehosted" {
		t.Fatalf("sent: %+v", sent)
	}
}

// Group replies dial the group id verbatim.
func TestDeskGroupReplyKeepsGroupID(t *testing.T) {
	h := newHarness()

	reply := event.DeskEvent{
		Event:              event.DeskMessageCreated,
		MessageType:        event.DeskOutgoing,
		Content:            "bom dia a todos",
		AgentID:            42,
		ContactID:          "120363041234567890-group",
		DeskConversationID: "987",
	}
	if err := h.desk.Process(context.Background(), reply); err != nil {
		t.Fatal(err)
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(h.sender.sent))
	}
	if h.sender.sent[0].phone != "120363041234567890-group" {
		t.Fatalf("dial target = %q, want the verbatim group id", h.sender.sent[0].phone)
	}
}

// A group member's message and the agent's reply to that member must land
// on one conversation: the member phone is normalized on both directions,
// group traffic or not.
func TestGroupMemberKeysMatchAcrossDirections(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	ev := event.GatewayEvent{
		Type:             event.GatewayReceivedCallback,
		InstanceID:       "inst-a",
		MessageID:        "msg-1",
		Phone:            "120363041234567890-group",
		ParticipantPhone: "5511888887777",
		IsGroup:          true,
		SenderName:       "Maria",
		ChatID:           "lid-1",
		Text:             "oi",
	}
	if err := h.gateway.Process(ctx, ev); err != nil {
		t.Fatal(err)
	}

	reply := event.DeskEvent{
		Event:              event.DeskMessageCreated,
		MessageType:        event.DeskOutgoing,
		Content:            "ola",
		AgentID:            42,
		ContactID:          "5511888887777",
		DeskConversationID: "987",
	}
	if err := h.desk.Process(ctx, reply); err != nil {
		t.Fatal(err)
	}

	if len(h.convs.rows) != 1 {
		t.Fatalf("conversations = %d, want 1", len(h.convs.rows))
	}
	conv := h.convs.rows["conv-1"]
	if conv.ParticipantID != "+5511888887777" {
		t.Fatalf("participant key = %q, want the normalized member phone", conv.ParticipantID)
	}
	open := h.sessions.openSessions("conv-1")
	if len(open) != 1 {
		t.Fatalf("open sessions = %d, want 1", len(open))
	}
}

// When the agent of another vendor answers, the session hands off: the old
// one closes, a fresh one opens, and the conversation is reassigned.
func TestVendorHandoffAcrossDirections(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.gateway.Process(ctx, gatewayTextEvent("inst-a", "5511999999999", "oi")); err != nil {
		t.Fatal(err)
	}

	reply := event.DeskEvent{
		Event:              event.DeskMessageCreated,
		MessageType:        event.DeskOutgoing,
		Content:            "assumindo o atendimento",
		AgentID:            43, // vendor-b's agent
		ContactID:          "+5511999999999",
		DeskConversationID: "988",
	}
	if err := h.desk.Process(ctx, reply); err != nil {
		t.Fatal(err)
	}

	open := h.sessions.openSessions("conv-1")
	if len(open) != 1 {
		t.Fatalf("open sessions = %d, want 1", len(open))
	}
	if open[0].VendorID != "vendor-b" {
		t.Fatalf("open session vendor = %q, want vendor-b", open[0].VendorID)
	}

	conv := h.convs.rows["conv-1"]
	if conv.CurrentVendorID != "vendor-b" {
		t.Fatalf("conversation vendor = %q, want vendor-b", conv.CurrentVendorID)
	}

	// vendor-a's route entry is gone, vendor-b's is present.
	if _, ok := h.cache.Get(ctx, "vendor-a", "+5511999999999"); ok {
		t.Fatal("stale route for vendor-a survived the handoff")
	}
	if _, ok := h.cache.Get(ctx, "vendor-b", "+5511999999999"); !ok {
		t.Fatal("vendor-b's route was not cached")
	}
}

package event

import "testing"

func TestParseGatewayEventText(t *testing.T) {
	body := []byte(`{
		"type": "ReceivedCallback",
		"instanceId": "inst-1",
		"messageId": "msg-1",
		"phone": "5511999999999",
		"senderName": "Maria",
		"chatLid": "lid-123",
		"text": {"message": "oi"}
	}`)
	ev, err := ParseGatewayEvent(body)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.IsMessageCallback() {
		t.Fatal("expected message callback")
	}
	if ev.Kind() != KindText {
		t.Fatalf("kind = %q", ev.Kind())
	}
	if ev.RawParticipant() != "5511999999999" {
		t.Fatalf("raw participant = %q", ev.RawParticipant())
	}
	if ev.DisplayName() != "Maria" {
		t.Fatalf("display name = %q", ev.DisplayName())
	}
	if ev.NativeChatID() != "lid-123" {
		t.Fatalf("native chat id = %q", ev.NativeChatID())
	}
}

func TestParseGatewayEventGroupMedia(t *testing.T) {
	body := []byte(`{
		"instanceId": "inst-1",
		"phone": "120363041234567890-group",
		"participantPhone": "5511888888888",
		"isGroup": true,
		"chatName": "Equipe",
		"image": {"imageUrl": "https://cdn.example/img.jpg", "caption": "foto", "mimeType": "image/jpeg"}
	}`)
	ev, err := ParseGatewayEvent(body)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.IsMessageCallback() {
		t.Fatal("type-less events must count as messages")
	}
	if ev.RawParticipant() != "5511888888888" {
		t.Fatalf("group raw participant = %q", ev.RawParticipant())
	}
	if ev.DisplayName() != "Equipe" {
		t.Fatalf("display name fallback = %q", ev.DisplayName())
	}
	if ev.Kind() != KindImage {
		t.Fatalf("kind = %q", ev.Kind())
	}
	if ev.Caption(KindImage) != "foto" {
		t.Fatalf("caption = %q", ev.Caption(KindImage))
	}
}

// A non-empty text body wins over any media payload.
func TestGatewayKindTextWins(t *testing.T) {
	ev := GatewayEvent{
		Text:  "caption text",
		Image: &GatewayMedia{URL: "https://cdn.example/img.jpg"},
	}
	if ev.Kind() != KindText {
		t.Fatalf("kind = %q, want text", ev.Kind())
	}
	// But Caption pulls text first even for a media kind.
	if ev.Caption(KindImage) != "caption text" {
		t.Fatalf("caption = %q", ev.Caption(KindImage))
	}
}

func TestGatewayKindUnknownForAck(t *testing.T) {
	ev, err := ParseGatewayEvent([]byte(`{"instanceId": "inst-1", "phone": "5511999999999"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind() != KindUnknown {
		t.Fatalf("kind = %q, want unknown", ev.Kind())
	}
}

func TestGatewayNonMessageCallback(t *testing.T) {
	ev, err := ParseGatewayEvent([]byte(`{"type": "DeliveryCallback", "instanceId": "inst-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.IsMessageCallback() {
		t.Fatal("delivery callback must not count as a message")
	}
}

package event

import "testing"

func TestParseDeskEvent(t *testing.T) {
	body := []byte(`{
		"event": "message_created",
		"message_type": "outgoing",
		"content": "ola",
		"sender": {"id": 42, "name": "Agente"},
		"conversation": {
			"id": 987,
			"meta": {"sender": {"identifier": "+5511999999999"}}
		}
	}`)
	ev, err := ParseDeskEvent(body)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.ShouldForward() {
		t.Fatal("expected forwardable event")
	}
	if ev.ContactID != "+5511999999999" {
		t.Fatalf("contact id = %q", ev.ContactID)
	}
	if ev.DeskConversationID != "987" {
		t.Fatalf("desk conversation id = %q", ev.DeskConversationID)
	}
	if ev.AgentID != 42 {
		t.Fatalf("agent id = %d", ev.AgentID)
	}
	if ev.Kind() != KindText {
		t.Fatalf("kind = %q", ev.Kind())
	}
}

func TestDeskContactFallsBackToPhoneNumber(t *testing.T) {
	body := []byte(`{
		"event": "message_created",
		"message_type": "outgoing",
		"content": "ola",
		"conversation": {"id": 1, "meta": {"sender": {"phone_number": "+5511999999999"}}}
	}`)
	ev, err := ParseDeskEvent(body)
	if err != nil {
		t.Fatal(err)
	}
	if ev.ContactID != "+5511999999999" {
		t.Fatalf("contact id = %q", ev.ContactID)
	}
}

func TestDeskShouldForwardFilters(t *testing.T) {
	cases := []struct {
		name string
		ev   DeskEvent
		want bool
	}{
		{"outgoing message", DeskEvent{Event: "message_created", MessageType: "outgoing"}, true},
		{"incoming echo", DeskEvent{Event: "message_created", MessageType: "incoming"}, false},
		{"private note", DeskEvent{Event: "message_created", MessageType: "outgoing", Private: true}, false},
		{"other event", DeskEvent{Event: "conversation_updated", MessageType: "outgoing"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ev.ShouldForward(); got != tc.want {
				t.Fatalf("ShouldForward() = %t, want %t", got, tc.want)
			}
		})
	}
}

func TestDeskKindFromAttachment(t *testing.T) {
	cases := []struct {
		fileType string
		want     Kind
	}{
		{"image/png", KindImage},
		{"video/mp4", KindVideo},
		{"audio/ogg", KindAudio},
		{"application/pdf", KindDocument},
		{"document", KindDocument},
		{"weird/type", KindUnknown},
	}
	for _, tc := range cases {
		ev := DeskEvent{Attachments: []DeskAttachment{{FileType: tc.fileType}}}
		if got := ev.Kind(); got != tc.want {
			t.Fatalf("kind for %q = %q, want %q", tc.fileType, got, tc.want)
		}
	}
}

// Content plus an attachment is still a media message; the content
// becomes the caption, not a separate text send.
func TestDeskKindContentWithAttachment(t *testing.T) {
	ev := DeskEvent{
		Content:     "veja a foto",
		Attachments: []DeskAttachment{{FileType: "image/jpeg"}},
	}
	if ev.Kind() != KindImage {
		t.Fatalf("kind = %q, want image", ev.Kind())
	}
}

func TestDeskDocumentExtension(t *testing.T) {
	cases := []struct {
		fileType string
		want     string
	}{
		{"application/pdf", "pdf"},
		{"file", "file"},
		{"", "pdf"},
	}
	for _, tc := range cases {
		ev := DeskEvent{Attachments: []DeskAttachment{{FileType: tc.fileType}}}
		if got := ev.DocumentExtension(); got != tc.want {
			t.Fatalf("extension for %q = %q, want %q", tc.fileType, got, tc.want)
		}
	}
	empty := DeskEvent{}
	if got := empty.DocumentExtension(); got != "pdf" {
		t.Fatalf("extension without attachment = %q", got)
	}
}

package command

import (
	"testing"

	"github.com/louisbranch/rivalry.club/internal/event"
)

func TestAccept(t *testing.T) {
	evt := event.Event{AggregateUUID: "match-1", Type: event.TypeMatchCreated}

	d := Accept(evt)

	if len(d.Events) != 1 {
		t.Fatalf("Accept events = %d, want 1", len(d.Events))
	}
	if len(d.Rejections) != 0 {
		t.Fatalf("Accept rejections = %d, want 0", len(d.Rejections))
	}
	if d.Events[0].AggregateUUID != "match-1" {
		t.Fatalf("event aggregate = %q, want match-1", d.Events[0].AggregateUUID)
	}
}

func TestReject(t *testing.T) {
	d := Reject(Rejection{Code: "MATCH_FULL", Message: "match is full"})

	if len(d.Events) != 0 {
		t.Fatalf("Reject events = %d, want 0", len(d.Events))
	}
	if len(d.Rejections) != 1 {
		t.Fatalf("Reject rejections = %d, want 1", len(d.Rejections))
	}
	if got := d.Rejections[0].Error(); got != "match is full" {
		t.Fatalf("rejection error = %q, want %q", got, "match is full")
	}
}

func TestNewEvent(t *testing.T) {
	cmd := Command{AggregateUUID: "match-9", Type: "match.join"}

	evt := NewEvent(cmd, event.TypePlayerJoined, []byte(`{"userId":3}`))

	if evt.AggregateUUID != "match-9" {
		t.Fatalf("aggregate = %q, want match-9", evt.AggregateUUID)
	}
	if evt.Type != event.TypePlayerJoined {
		t.Fatalf("type = %q, want %q", evt.Type, event.TypePlayerJoined)
	}
	if string(evt.PayloadJSON) != `{"userId":3}` {
		t.Fatalf("payload = %s", evt.PayloadJSON)
	}
}

package agent

import (
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage("alpha", "beta", KindTask, &Request{Action: "ping"}, "corr-1")

	if msg.ID == "" {
		t.Error("message has no id")
	}
	if msg.CorrelationID != "corr-1" {
		t.Errorf("correlation id = %q, want %q", msg.CorrelationID, "corr-1")
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", msg.Timestamp, err)
	}

	other := NewMessage("alpha", "beta", KindTask, nil, NewCorrelationID())
	if other.ID == msg.ID {
		t.Error("two messages share an id")
	}
}

func TestDecodeRequest(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		msg := NewMessage("alpha", "beta", KindTask, &Request{
			Action:     "schedule_meeting",
			Parameters: map[string]any{"title": "standup"},
		}, "corr-1")
		req, err := DecodeRequest(msg)
		if err != nil {
			t.Fatalf("DecodeRequest: %v", err)
		}
		if req.Action != "schedule_meeting" {
			t.Errorf("action = %q, want %q", req.Action, "schedule_meeting")
		}
		if req.Parameters["title"] != "standup" {
			t.Errorf("title = %v, want %q", req.Parameters["title"], "standup")
		}
	})

	t.Run("missing action", func(t *testing.T) {
		msg := NewMessage("alpha", "beta", KindTask, &Request{}, "corr-1")
		if _, err := DecodeRequest(msg); err == nil {
			t.Error("request without action decoded, want error")
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		msg := NewMessage("alpha", "beta", KindTask, nil, "corr-1")
		msg.Payload = "{not json"
		if _, err := DecodeRequest(msg); err == nil {
			t.Error("malformed payload decoded, want error")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	t.Run("valid statuses", func(t *testing.T) {
		for _, status := range []ResponseStatus{ResponseSuccess, ResponseError, ResponseAmbiguous, ResponsePartial} {
			msg := NewMessage("beta", "alpha", KindTaskResponse, &Response{Status: status}, "corr-1")
			resp, err := DecodeResponse(msg)
			if err != nil {
				t.Fatalf("DecodeResponse(%s): %v", status, err)
			}
			if resp.Status != status {
				t.Errorf("status = %q, want %q", resp.Status, status)
			}
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		msg := NewMessage("beta", "alpha", KindTaskResponse, map[string]string{"status": "maybe"}, "corr-1")
		if _, err := DecodeResponse(msg); err == nil {
			t.Error("unknown status decoded, want error")
		}
	})

	t.Run("ambiguous carries meetings", func(t *testing.T) {
		msg := NewMessage("beta", "alpha", KindTaskResponse, &Response{
			Status: ResponseAmbiguous,
			Meetings: []Meeting{
				{ID: "m1", Title: "sync", StartTime: "2026-09-01T10:00:00Z", EndTime: "2026-09-01T10:30:00Z"},
				{ID: "m2", Title: "sync", StartTime: "2026-09-02T10:00:00Z", EndTime: "2026-09-02T10:30:00Z"},
			},
			Action: "cancel_meeting_by_id",
		}, "corr-1")
		resp, err := DecodeResponse(msg)
		if err != nil {
			t.Fatalf("DecodeResponse: %v", err)
		}
		if len(resp.Meetings) != 2 {
			t.Fatalf("meetings = %v, want 2", len(resp.Meetings))
		}
		if resp.Action != "cancel_meeting_by_id" {
			t.Errorf("action_to_perform = %q, want %q", resp.Action, "cancel_meeting_by_id")
		}
	})
}

package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid message:send message
// ---------------------------------------------------------------------------

func TestParseClientMessage_MessageSend(t *testing.T) {
	input := []byte(`{"type":"message:send","senderId":"u1","receiverId":"u2","text":"hi"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeMessageSend {
		t.Fatalf("expected type %q, got %q", TypeMessageSend, msgType)
	}

	sm, ok := msg.(MessageSendMsg)
	if !ok {
		t.Fatalf("expected MessageSendMsg, got %T", msg)
	}
	if sm.SenderID != "u1" {
		t.Errorf("expected senderId %q, got %q", "u1", sm.SenderID)
	}
	if sm.ReceiverID != "u2" {
		t.Errorf("expected receiverId %q, got %q", "u2", sm.ReceiverID)
	}
	if sm.Text != "hi" {
		t.Errorf("expected text %q, got %q", "hi", sm.Text)
	}
	if sm.Image != "" {
		t.Errorf("expected empty image, got %q", sm.Image)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing an image-only message:send message
// ---------------------------------------------------------------------------

func TestParseClientMessage_MessageSend_ImageOnly(t *testing.T) {
	input := []byte(`{"type":"message:send","senderId":"u1","receiverId":"u2","image":"https://cdn.example/img.png"}`)

	_, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sm := msg.(MessageSendMsg)
	if sm.Text != "" {
		t.Errorf("expected empty text, got %q", sm.Text)
	}
	if sm.Image != "https://cdn.example/img.png" {
		t.Errorf("unexpected image: %q", sm.Image)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a message:received acknowledgement
// ---------------------------------------------------------------------------

func TestParseClientMessage_MessageReceived(t *testing.T) {
	input := []byte(`{"type":"message:received","payload":{"unSeenMessages":["id-1","id-2"]}}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeMessageReceived {
		t.Fatalf("expected type %q, got %q", TypeMessageReceived, msgType)
	}

	rm, ok := msg.(MessageReceivedMsg)
	if !ok {
		t.Fatalf("expected MessageReceivedMsg, got %T", msg)
	}
	if len(rm.Payload.UnseenMessages) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(rm.Payload.UnseenMessages))
	}
	if rm.Payload.UnseenMessages[0] != "id-1" || rm.Payload.UnseenMessages[1] != "id-2" {
		t.Errorf("unexpected ids: %v", rm.Payload.UnseenMessages)
	}
}

// ---------------------------------------------------------------------------
// Test: message:received with no payload decodes to an empty id list
// ---------------------------------------------------------------------------

func TestParseClientMessage_MessageReceived_EmptyPayload(t *testing.T) {
	input := []byte(`{"type":"message:received"}`)

	_, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rm := msg.(MessageReceivedMsg)
	if len(rm.Payload.UnseenMessages) != 0 {
		t.Errorf("expected no ids, got %v", rm.Payload.UnseenMessages)
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a users:online server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_UsersOnline(t *testing.T) {
	payload := UsersOnlineMsg{Online: []string{"u1", "u2"}}

	data, err := NewServerMessage(TypeUsersOnline, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Decode back and verify structure.
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeUsersOnline {
		t.Errorf("expected type %q, got %v", TypeUsersOnline, result["type"])
	}

	online, ok := result["online"].([]interface{})
	if !ok {
		t.Fatalf("expected online to be an array, got %T", result["online"])
	}
	if len(online) != 2 {
		t.Fatalf("expected 2 users, got %d", len(online))
	}
	if online[0] != "u1" || online[1] != "u2" {
		t.Errorf("unexpected roster: %v", online)
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a message:read-result server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_ReadResult(t *testing.T) {
	payload := ReadResultMsg{
		Status:       StatusSuccess,
		UpdatedCount: 2,
		UpdatedIDs:   []string{"id-1", "id-2"},
	}

	data, err := NewServerMessage(TypeReadResult, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeReadResult {
		t.Errorf("expected type %q, got %v", TypeReadResult, result["type"])
	}
	if result["status"] != StatusSuccess {
		t.Errorf("expected status %q, got %v", StatusSuccess, result["status"])
	}

	count, ok := result["updatedCount"].(float64)
	if !ok {
		t.Fatalf("expected updatedCount to be a number, got %T", result["updatedCount"])
	}
	if int(count) != 2 {
		t.Errorf("expected updatedCount 2, got %v", count)
	}

	ids, ok := result["updatedIds"].([]interface{})
	if !ok {
		t.Fatalf("expected updatedIds to be an array, got %T", result["updatedIds"])
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 updatedIds, got %d", len(ids))
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a user:offline server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_UserOffline(t *testing.T) {
	lastSeen := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	payload := UserOfflineMsg{UserID: "u2", LastSeen: lastSeen}

	data, err := NewServerMessage(TypeUserOffline, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeUserOffline {
		t.Errorf("expected type %q, got %v", TypeUserOffline, result["type"])
	}
	if result["userId"] != "u2" {
		t.Errorf("expected userId %q, got %v", "u2", result["userId"])
	}
	if result["lastSeen"] != "2026-03-14T09:30:00Z" {
		t.Errorf("unexpected lastSeen: %v", result["lastSeen"])
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a rate_limited server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_RateLimited(t *testing.T) {
	data, err := NewServerMessage(TypeRateLimited, RateLimitedMsg{RetryAfter: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeRateLimited {
		t.Errorf("expected type %q, got %v", TypeRateLimited, result["type"])
	}
	if result["retry_after"] != float64(10) {
		t.Errorf("expected retry_after 10, got %v", result["retry_after"])
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing an unknown message type returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"users:online","online":["u1"]}`)

	msgType, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected error for server-only message type")
	}
	if msgType != TypeUsersOnline {
		t.Errorf("expected type to be returned even on error, got %q", msgType)
	}
	if msg != nil {
		t.Errorf("expected nil msg on error, got %v", msg)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a message with a missing type field returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_MissingType(t *testing.T) {
	input := []byte(`{"senderId":"u1","receiverId":"u2"}`)

	_, _, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected error for missing type field")
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing invalid JSON returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_InvalidJSON(t *testing.T) {
	input := []byte(`{"type":"message:send",`)

	_, _, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

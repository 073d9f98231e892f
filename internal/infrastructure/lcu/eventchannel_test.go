package lcu

import "testing"

// === Event frame decoding ===

func TestDecodeEventFrame(t *testing.T) {
	payload := []byte(`[8,"OnJsonApiEvent",{"uri":"/lol-gameflow/v1/gameflow-phase","data":"ChampSelect","eventType":"Update"}]`)
	event, ok := decodeEventFrame(payload)
	if !ok {
		t.Fatal("expected a decoded event")
	}
	if event.URI != "/lol-gameflow/v1/gameflow-phase" {
		t.Errorf("uri = %q", event.URI)
	}
	if event.EventType != "Update" {
		t.Errorf("eventType = %q", event.EventType)
	}
	if string(event.Data) != `"ChampSelect"` {
		t.Errorf("data = %s", event.Data)
	}
}

func TestDecodeEventFrame_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"not an array", `{"uri":"/x"}`},
		{"heartbeat without body", `[]`},
		{"wrong opcode", `[5,"OnJsonApiEvent",{"uri":"/x"}]`},
		{"wrong topic", `[8,"OnOtherTopic",{"uri":"/x"}]`},
		{"too short", `[8,"OnJsonApiEvent"]`},
		{"body not an object", `[8,"OnJsonApiEvent","oops"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := decodeEventFrame([]byte(tt.payload)); ok {
				t.Errorf("decoded %q, want rejection", tt.payload)
			}
		})
	}
}

package ledger

import (
	"encoding/json"
	"testing"
)

func TestMarshalMetadata(t *testing.T) {
	out, err := marshalMetadata(nil)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if string(out) != "{}" {
		t.Fatalf("empty metadata must serialize as {}, got %s", out)
	}

	out, err = marshalMetadata(map[string]any{"reason": "referral"})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if back["reason"] != "referral" {
		t.Fatalf("unexpected metadata: %v", back)
	}
}

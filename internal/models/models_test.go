package models

import "testing"

func TestConfigParam(t *testing.T) {
	chat := &Chat{Config: ConfigMap{"DeleteSystemMessages": "true"}}
	if got := chat.ConfigParam("DeleteSystemMessages", "false"); got != "true" {
		t.Fatalf("got %q", got)
	}
	if got := chat.ConfigParam("Missing", "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}

	nilConfig := &Chat{}
	if got := nilConfig.ConfigParam("Any", "def"); got != "def" {
		t.Fatalf("nil config: got %q", got)
	}
}

func TestConfigMapScanRoundTrip(t *testing.T) {
	m := ConfigMap{"a": "1", "b": "2"}
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var back ConfigMap
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if back["a"] != "1" || back["b"] != "2" {
		t.Fatalf("round trip lost entries: %v", back)
	}

	var fromNil ConfigMap
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if fromNil == nil {
		t.Fatal("nil scan should yield an empty map")
	}
}

func TestIsGroupDestination(t *testing.T) {
	cases := map[string]bool{
		"group":      true,
		"supergroup": true,
		"private":    false,
		"channel":    false,
	}
	for chatType, want := range cases {
		req := &ActionRequest{ChatType: chatType}
		if req.IsGroupDestination() != want {
			t.Fatalf("IsGroupDestination(%q) != %v", chatType, want)
		}
	}
}

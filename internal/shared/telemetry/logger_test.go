package telemetry

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	Info("pipeline.stage", map[string]any{"stage": "ocr", "user_id": "u1"})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for _, key := range []string{"ts", "level", "msg", "stage", "user_id"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in %v", key, entry)
		}
	}
	if entry["level"] != "info" || entry["msg"] != "pipeline.stage" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestSetLevelFiltersInfo(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("error")
	t.Cleanup(func() {
		SetLevel("info")
		SetOutput(nil)
	})

	Info("dropped", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	Error("kept", map[string]any{"error": "boom"})
	if !bytes.Contains(buf.Bytes(), []byte(`"kept"`)) {
		t.Fatalf("expected error line, got %q", buf.String())
	}
}

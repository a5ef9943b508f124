package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docproc/internal/bootstrap"
	"docproc/internal/llm"
	"docproc/internal/ocr"
	"docproc/internal/records"
	"docproc/internal/shared/config"
)

type fixedLLM struct{ out string }

func (f fixedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return f.out, nil
}

type fixedOCR struct{ text string }

func (f fixedOCR) Recognize(ctx context.Context, img ocr.Image) (string, error) {
	return f.text, nil
}

func useTestApp(t *testing.T, cfg config.Config) {
	t.Helper()
	app, err := bootstrap.Build(cfg,
		bootstrap.WithLLM(fixedLLM{out: "```json\n{\"vendor\": \"Hotel Sunrise\", \"total\": 120.5}\n```"}),
		bootstrap.WithOCREngine(fixedOCR{text: "Hotel Sunrise\nTotal 120.50"}),
		bootstrap.WithRepo(records.NewMemoryRepo()),
	)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	prev := BuildApp
	BuildApp = func() (*bootstrap.App, error) { return app, nil }
	t.Cleanup(func() { BuildApp = prev })
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		TogetherAPIKey:  "test-key",
		DatabaseURI:     "memory://",
		ObjectStoreType: "local",
		UploadDir:       filepath.Join(dir, "uploads"),
		OutputDir:       filepath.Join(dir, "output"),
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTransformThenFetch(t *testing.T) {
	cfg := testConfig(t)
	useTestApp(t, cfg)

	txt := filepath.Join(t.TempDir(), "hotel.txt")
	if err := os.WriteFile(txt, []byte("Hotel Sunrise\nTotal 120.50"), 0o644); err != nil {
		t.Fatalf("write text: %v", err)
	}

	out, err := execute(t, "transform_json", txt, "42", "hotel_bill")
	if err != nil {
		t.Fatalf("transform_json: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if rec["vendor"] != "Hotel Sunrise" || rec["document_type"] != "hotel_bill" {
		t.Fatalf("unexpected record %v", rec)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "hotel.json")); err != nil {
		t.Fatalf("expected JSON artifact: %v", err)
	}

	out, err = execute(t, "fetch", "42", "all")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(out, "\n    {\n        \"_id\"") {
		t.Fatalf("expected 4-space indented array, got:\n%s", out)
	}
	var recs []map[string]any
	if err := json.Unmarshal([]byte(out), &recs); err != nil || len(recs) != 1 {
		t.Fatalf("unexpected fetch output %q (%v)", out, err)
	}

	out, err = execute(t, "fetch", "42", "invoice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if strings.TrimSpace(out) != "No data found for User 42 and Document Type 'invoice'" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestUploadCommand(t *testing.T) {
	cfg := testConfig(t)
	useTestApp(t, cfg)

	img := filepath.Join(t.TempDir(), "bill.png")
	if err := os.WriteFile(img, []byte("\x89PNG\r\n\x1a\nimage"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	out, err := execute(t, "upload", img, "42", "hotel_bill")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, `"vendor": "Hotel Sunrise"`) {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestCommandErrors(t *testing.T) {
	useTestApp(t, testConfig(t))

	if _, err := execute(t, "fetch", "42"); err == nil {
		t.Fatalf("expected argument count error")
	}
	_, err := execute(t, "transform_json", filepath.Join(t.TempDir(), "missing.txt"), "42", "invoice")
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("expected file not found error, got %v", err)
	}
	if _, err := execute(t, "upload", filepath.Join(t.TempDir(), "missing.png"), "42", "invoice"); err == nil {
		t.Fatalf("expected error for missing image")
	}
}

func TestCommandsRequireConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.TogetherAPIKey = ""
	useTestApp(t, cfg)

	txt := filepath.Join(t.TempDir(), "hotel.txt")
	if err := os.WriteFile(txt, []byte("Hotel"), 0o644); err != nil {
		t.Fatalf("write text: %v", err)
	}
	_, err := execute(t, "transform_json", txt, "42", "hotel_bill")
	if err == nil || !strings.Contains(err.Error(), "TOGETHER_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}

	// fetch needs only the database.
	if _, err := execute(t, "fetch", "42", "all"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"docproc/internal/extract"
	"docproc/internal/llm"
	"docproc/internal/ocr"
	"docproc/internal/records"
	"docproc/internal/shared/storage/object/local"
)

type ocrFunc func(ctx context.Context, img ocr.Image) (string, error)

func (f ocrFunc) Recognize(ctx context.Context, img ocr.Image) (string, error) {
	return f(ctx, img)
}

type stubLLM struct {
	mu    sync.Mutex
	out   string
	err   error
	calls int
}

func (s *stubLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.out, s.err
}

type failingRecords struct {
	err error
}

func (f failingRecords) StoreFile(ctx context.Context, path, userID, documentType string) (records.Record, error) {
	return nil, f.err
}

func (f failingRecords) Fetch(ctx context.Context, userID, documentType string) (records.FetchResult, error) {
	return records.FetchResult{}, f.err
}

const hotelJSON = "```json\n{\"vendor\": \"Hotel Sunrise\", \"total\": 120.5, \"currency\": \"USD\"}\n```"

type fixture struct {
	proc      *Processor
	llm       *stubLLM
	svc       *records.Service
	uploadDir string
	outputDir string
}

func newFixture(t *testing.T, recognize ocrFunc) *fixture {
	t.Helper()
	dir := t.TempDir()
	client := &stubLLM{out: hotelJSON}
	svc := records.NewService(records.NewMemoryRepo())
	f := &fixture{
		llm:       client,
		svc:       svc,
		uploadDir: filepath.Join(dir, "uploads"),
		outputDir: filepath.Join(dir, "output"),
	}
	f.proc = &Processor{
		Store:     local.New(f.uploadDir),
		OCR:       recognize,
		Extractor: extract.New(client, "model-x"),
		Records:   svc,
		OutputDir: f.outputDir,
	}
	return f
}

func hotelOCR(ctx context.Context, img ocr.Image) (string, error) {
	return "Hotel Sunrise\nRoom 204\nTotal: 120.50 USD", nil
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return n
}

func hotelUpload() Upload {
	return Upload{
		UserID:       "42",
		DocumentType: "hotel_bill",
		FileName:     "bill.png",
		Body:         strings.NewReader("\x89PNG\r\n\x1a\nfake image bytes"),
	}
}

func TestProcessHotelBill(t *testing.T) {
	var seen ocr.Image
	f := newFixture(t, func(ctx context.Context, img ocr.Image) (string, error) {
		seen = img
		return hotelOCR(ctx, img)
	})

	rec, err := f.proc.Process(context.Background(), hotelUpload())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rec["vendor"] != "Hotel Sunrise" || rec["total"] != json.Number("120.5") || rec["currency"] != "USD" {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec.DocumentType() != "hotel_bill" {
		t.Fatalf("expected document_type hotel_bill, got %q", rec.DocumentType())
	}
	if rec.ID() == "" {
		t.Fatalf("expected stored id")
	}
	if _, ok := rec[records.FieldTimestamp].(string); !ok {
		t.Fatalf("expected timestamp, got %v", rec[records.FieldTimestamp])
	}
	if seen.Name != "bill.png" || seen.MimeType != "image/png" || len(seen.Data) == 0 {
		t.Fatalf("unexpected OCR input name=%q mime=%q len=%d", seen.Name, seen.MimeType, len(seen.Data))
	}

	if n := countFiles(t, f.uploadDir); n != 0 {
		t.Fatalf("expected staged upload removed, found %d files", n)
	}
	if n := countFiles(t, f.outputDir); n != 0 {
		t.Fatalf("expected artifacts removed, found %d files", n)
	}

	got, err := f.proc.Fetch(context.Background(), "42", "hotel_bill")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !got.Found || len(got.Records) != 1 || got.Records[0].ID() != rec.ID() {
		t.Fatalf("unexpected fetch result %+v", got)
	}
}

func TestProcessKeepArtifacts(t *testing.T) {
	f := newFixture(t, hotelOCR)
	f.proc.KeepArtifacts = true

	if _, err := f.proc.Process(context.Background(), hotelUpload()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n := countFiles(t, f.uploadDir); n != 1 {
		t.Fatalf("expected staged upload kept, found %d files", n)
	}
	txt, _ := filepath.Glob(filepath.Join(f.outputDir, "bill_*.txt"))
	js, _ := filepath.Glob(filepath.Join(f.outputDir, "bill_*.json"))
	if len(txt) != 1 || len(js) != 1 {
		t.Fatalf("expected one txt and one json artifact, got %v %v", txt, js)
	}
	text, err := os.ReadFile(txt[0])
	if err != nil {
		t.Fatalf("read text artifact: %v", err)
	}
	if !strings.Contains(string(text), "Hotel Sunrise") {
		t.Fatalf("unexpected text artifact %q", text)
	}
}

func TestProcessStageFailures(t *testing.T) {
	tests := []struct {
		name      string
		ocr       ocrFunc
		llmOut    string
		llmErr    error
		records   RecordStore
		stage     Stage
		prefix    string
		wantCalls int
	}{
		{
			name: "ocr",
			ocr: func(ctx context.Context, img ocr.Image) (string, error) {
				return "", errors.New("engine down")
			},
			llmOut:    hotelJSON,
			stage:     StageOCR,
			prefix:    "OCR failed: engine down",
			wantCalls: 0,
		},
		{
			name:      "extract invalid json",
			ocr:       hotelOCR,
			llmOut:    "I could not read this invoice.",
			stage:     StageExtract,
			prefix:    "JSON transformation failed",
			wantCalls: 1,
		},
		{
			name:      "extract completion error",
			ocr:       hotelOCR,
			llmErr:    errors.New("timeout"),
			stage:     StageExtract,
			prefix:    "JSON transformation failed",
			wantCalls: 1,
		},
		{
			name:      "storage",
			ocr:       hotelOCR,
			llmOut:    hotelJSON,
			records:   failingRecords{err: errors.New("db unavailable")},
			stage:     StageStore,
			prefix:    "Storage failed: db unavailable",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.ocr)
			f.llm.out = tt.llmOut
			f.llm.err = tt.llmErr
			if tt.records != nil {
				f.proc.Records = tt.records
			}

			_, err := f.proc.Process(context.Background(), hotelUpload())
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if stageErr.Stage != tt.stage {
				t.Fatalf("expected stage %s, got %s", tt.stage, stageErr.Stage)
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Fatalf("expected message prefix %q, got %q", tt.prefix, err.Error())
			}
			if f.llm.calls != tt.wantCalls {
				t.Fatalf("expected %d llm calls, got %d", tt.wantCalls, f.llm.calls)
			}
			if n := countFiles(t, f.uploadDir); n != 0 {
				t.Fatalf("expected staged upload removed, found %d files", n)
			}
			if n := countFiles(t, f.outputDir); n != 0 {
				t.Fatalf("expected artifacts removed, found %d files", n)
			}

			res, err := f.svc.Fetch(context.Background(), "42", records.AllTypes)
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if res.Found {
				t.Fatalf("expected nothing stored, got %v", res.Records)
			}
		})
	}
}

func TestProcessValidation(t *testing.T) {
	f := newFixture(t, hotelOCR)

	up := hotelUpload()
	up.UserID = " "
	_, err := f.proc.Process(context.Background(), up)
	if !errors.Is(err, records.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		t.Fatalf("validation must fail before any stage, got %v", err)
	}
	if f.llm.calls != 0 {
		t.Fatalf("expected no llm calls")
	}

	up = hotelUpload()
	up.Body = nil
	if _, err := f.proc.Process(context.Background(), up); !errors.Is(err, records.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing body, got %v", err)
	}
}

func TestProcessNotConfigured(t *testing.T) {
	p := &Processor{}
	if _, err := p.Process(context.Background(), hotelUpload()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := p.Fetch(context.Background(), "42", "all"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestProcessConcurrentSameFileName(t *testing.T) {
	f := newFixture(t, hotelOCR)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.proc.Process(context.Background(), hotelUpload())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	res, err := f.proc.Fetch(context.Background(), "42", "ALL")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Records) != n {
		t.Fatalf("expected %d records, got %d", n, len(res.Records))
	}
}

func TestTransform(t *testing.T) {
	f := newFixture(t, hotelOCR)
	txt := filepath.Join(t.TempDir(), "hotel.txt")
	if err := os.WriteFile(txt, []byte("Hotel Sunrise\nTotal: 120.50"), 0o644); err != nil {
		t.Fatalf("write text: %v", err)
	}

	rec, err := f.proc.Transform(context.Background(), txt, "42", "hotel_bill")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if rec["vendor"] != "Hotel Sunrise" {
		t.Fatalf("unexpected record %v", rec)
	}
	if _, err := os.Stat(filepath.Join(f.outputDir, "hotel.json")); err != nil {
		t.Fatalf("expected JSON artifact kept: %v", err)
	}

	_, err = f.proc.Transform(context.Background(), filepath.Join(f.outputDir, "missing.txt"), "42", "hotel_bill")
	if !errors.Is(err, extract.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestTransformKeepsLargeIntegersExact(t *testing.T) {
	f := newFixture(t, hotelOCR)
	f.llm.out = `{"invoice_no": 12345678901234567891, "acct": 9007199254740993}`
	txt := filepath.Join(t.TempDir(), "invoice.txt")
	if err := os.WriteFile(txt, []byte("Invoice 12345678901234567891"), 0o644); err != nil {
		t.Fatalf("write text: %v", err)
	}

	if _, err := f.proc.Transform(context.Background(), txt, "42", "invoice"); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	res, err := f.proc.Fetch(context.Background(), "42", "invoice")
	if err != nil || len(res.Records) != 1 {
		t.Fatalf("Fetch: %+v %v", res, err)
	}
	out, err := json.Marshal(res.Records[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	artifact, err := os.ReadFile(filepath.Join(f.outputDir, "invoice.json"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	for _, want := range []string{"12345678901234567891", "9007199254740993"} {
		if !strings.Contains(string(out), want) || !strings.Contains(string(artifact), want) {
			t.Fatalf("expected %s in record %s and artifact %s", want, out, artifact)
		}
	}
}

func TestArtifactStem(t *testing.T) {
	a := artifactStem("scans/hotel bill.png")
	b := artifactStem("scans/hotel bill.png")
	if a == b {
		t.Fatalf("expected unique stems, got %q twice", a)
	}
	if !strings.HasPrefix(a, "hotel_bill_") {
		t.Fatalf("unexpected stem %q", a)
	}
	if got := artifactStem(""); !strings.HasPrefix(got, "upload_") {
		t.Fatalf("expected fallback stem, got %q", got)
	}
}

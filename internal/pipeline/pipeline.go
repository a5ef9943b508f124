// Package pipeline runs an uploaded document through staging, OCR, JSON
// extraction and storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docproc/internal/extract"
	"docproc/internal/ocr"
	"docproc/internal/records"
	"docproc/internal/shared/metrics"
	"docproc/internal/shared/storage/object"
	"docproc/internal/shared/telemetry"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageUpload  Stage = "upload"
	StageOCR     Stage = "ocr"
	StageExtract Stage = "extract"
	StageStore   Stage = "store"
)

// Label is the human-facing stage name used in error messages.
func (s Stage) Label() string {
	switch s {
	case StageUpload:
		return "Upload"
	case StageOCR:
		return "OCR"
	case StageExtract:
		return "JSON transformation"
	case StageStore:
		return "Storage"
	}
	return string(s)
}

// ErrNotConfigured is returned when a required collaborator is missing.
var ErrNotConfigured = errors.New("pipeline not configured")

// StageError wraps the failure of a single stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage.Label(), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Extractor produces a JSON artifact from a text file.
type Extractor interface {
	ExtractFile(ctx context.Context, txtPath, outputDir string) (extract.Result, error)
}

// RecordStore persists extracted JSON files and answers fetches.
type RecordStore interface {
	StoreFile(ctx context.Context, path, userID, documentType string) (records.Record, error)
	Fetch(ctx context.Context, userID, documentType string) (records.FetchResult, error)
}

// Upload is one document submitted for processing.
type Upload struct {
	UserID       string
	DocumentType string
	FileName     string
	MimeType     string
	Body         io.Reader
}

// Processor wires the stages together. The zero value is not usable;
// Store, OCR, Extractor and Records must be set.
type Processor struct {
	Store         object.ObjectStore
	OCR           ocr.Engine
	Extractor     Extractor
	Records       RecordStore
	OutputDir     string
	KeepArtifacts bool
}

// Process stages the upload, recognizes its text, extracts JSON and stores
// the result. Staged and intermediate files are removed on every exit path
// unless KeepArtifacts is set.
func (p *Processor) Process(ctx context.Context, up Upload) (rec records.Record, err error) {
	if err := validate(up.UserID, up.DocumentType); err != nil {
		return nil, err
	}
	if up.Body == nil {
		return nil, fmt.Errorf("%w: image is required", records.ErrInvalidInput)
	}
	if p.Store == nil || p.OCR == nil || p.Extractor == nil || p.Records == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	fields := map[string]any{
		"user_id":       up.UserID,
		"document_type": up.DocumentType,
		"file_name":     up.FileName,
	}
	defer func() {
		fields["duration_ms"] = time.Since(start).Milliseconds()
		if err != nil {
			metrics.IncUpload("failure")
			fields["error"] = err.Error()
			telemetry.Warn("pipeline.failed", fields)
			return
		}
		metrics.IncUpload("success")
		fields["record_id"] = rec.ID()
		telemetry.Info("pipeline.complete", fields)
	}()

	var trash artifacts
	if !p.KeepArtifacts {
		defer trash.remove(context.WithoutCancel(ctx), p.Store)
	}

	ns, err := records.Namespace(up.UserID)
	if err != nil {
		return nil, err
	}

	var (
		key  string
		mime string
	)
	err = runStage(StageUpload, func() error {
		var saveErr error
		key, _, mime, saveErr = p.Store.Save(ctx, ns, uploadName(up.FileName), up.Body)
		return saveErr
	})
	if err != nil {
		return nil, err
	}
	trash.objects = append(trash.objects, key)
	if up.MimeType != "" {
		mime = up.MimeType
	}

	stem := artifactStem(up.FileName)
	txtPath := filepath.Join(p.OutputDir, stem+".txt")
	trash.files = append(trash.files, txtPath, filepath.Join(p.OutputDir, stem+".json"))

	err = runStage(StageOCR, func() error {
		data, readErr := p.readStaged(ctx, key)
		if readErr != nil {
			return readErr
		}
		text, ocrErr := p.OCR.Recognize(ctx, ocr.Image{Name: up.FileName, MimeType: mime, Data: data})
		if ocrErr != nil {
			return ocrErr
		}
		if mkErr := os.MkdirAll(p.OutputDir, 0o755); mkErr != nil {
			return fmt.Errorf("create output dir: %w", mkErr)
		}
		return os.WriteFile(txtPath, []byte(text), 0o644)
	})
	if err != nil {
		return nil, err
	}

	return p.extractAndStore(ctx, txtPath, up.UserID, up.DocumentType)
}

// Transform extracts JSON from an existing text file and stores it. The
// JSON artifact is left in OutputDir.
func (p *Processor) Transform(ctx context.Context, txtPath, userID, documentType string) (records.Record, error) {
	if err := validate(userID, documentType); err != nil {
		return nil, err
	}
	if p.Extractor == nil || p.Records == nil {
		return nil, ErrNotConfigured
	}
	rec, err := p.extractAndStore(ctx, txtPath, userID, documentType)
	if err != nil {
		telemetry.Warn("pipeline.transform_failed", map[string]any{
			"path":  txtPath,
			"error": err.Error(),
		})
		return nil, err
	}
	return rec, nil
}

// Fetch returns the user's stored records of documentType ("all" for every type).
func (p *Processor) Fetch(ctx context.Context, userID, documentType string) (records.FetchResult, error) {
	if err := validate(userID, documentType); err != nil {
		return records.FetchResult{}, err
	}
	if p.Records == nil {
		return records.FetchResult{}, ErrNotConfigured
	}
	res, err := p.Records.Fetch(ctx, userID, documentType)
	switch {
	case err != nil:
		metrics.IncFetch("failure")
	case res.Found:
		metrics.IncFetch("found")
	default:
		metrics.IncFetch("empty")
	}
	return res, err
}

func (p *Processor) extractAndStore(ctx context.Context, txtPath, userID, documentType string) (records.Record, error) {
	var res extract.Result
	err := runStage(StageExtract, func() error {
		var extractErr error
		res, extractErr = p.Extractor.ExtractFile(ctx, txtPath, p.OutputDir)
		return extractErr
	})
	if err != nil {
		return nil, err
	}

	var rec records.Record
	err = runStage(StageStore, func() error {
		var storeErr error
		rec, storeErr = p.Records.StoreFile(ctx, res.Path, userID, documentType)
		return storeErr
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Processor) readStaged(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.Store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open staged upload: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read staged upload: %w", err)
	}
	return data, nil
}

func runStage(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(string(stage), time.Since(start))
	if err != nil {
		metrics.IncStageFailure(string(stage))
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

func validate(userID, documentType string) error {
	var missing []string
	if strings.TrimSpace(userID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(documentType) == "" {
		missing = append(missing, "documentType")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", records.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

func uploadName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || strings.TrimSpace(base) == "" || strings.Contains(base, "..") {
		return "upload"
	}
	return base
}

// artifactStem is unique per call so concurrent uploads of the same file
// name never share intermediate files.
func artifactStem(name string) string {
	stem := extract.Stem(uploadName(name))
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, stem)
	if stem == "" {
		stem = "upload"
	}
	return stem + "_" + uuid.NewString()
}

type artifacts struct {
	objects []string
	files   []string
}

func (a *artifacts) remove(ctx context.Context, store object.ObjectStore) {
	for _, key := range a.objects {
		if err := store.Delete(ctx, key); err != nil {
			telemetry.Warn("pipeline.cleanup_failed", map[string]any{"object": key, "error": err.Error()})
		}
	}
	for _, path := range a.files {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			telemetry.Warn("pipeline.cleanup_failed", map[string]any{"file": path, "error": err.Error()})
		}
	}
}

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"docproc/internal/llm"
	"docproc/internal/shared/telemetry"
)

const (
	systemPrompt = "You are an AI that extracts structured JSON from invoices."
	userPrompt   = "Extract structured JSON from this invoice text. Return only valid JSON without any additional text or delimiters:\n"
)

var (
	// ErrFileNotFound is returned when the input text file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrEmptyCompletion is returned when the model produced no text.
	ErrEmptyCompletion = errors.New("empty completion from model")
)

// DecodeError reports a sanitized completion that is not a JSON object.
type DecodeError struct {
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode model output: %v: %s", e.Err, e.Text)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Result is a successful extraction.
type Result struct {
	// Path is the written JSON artifact; empty for in-memory extraction.
	Path string
	// Raw holds the sanitized object exactly as the model ordered its keys.
	Raw    json.RawMessage
	Fields map[string]any
}

// Extractor turns invoice text into a JSON object through an LLM.
type Extractor struct {
	Client llm.Client
	Model  string
	Params llm.Params
}

// New returns an Extractor using the fixed extraction parameters.
func New(client llm.Client, model string) *Extractor {
	return &Extractor{Client: client, Model: model, Params: llm.DefaultExtractionParams()}
}

// ExtractFile reads txtPath, extracts a JSON object and writes it to
// outputDir/<stem>.json with 4-space indentation. Nothing is written on failure.
func (e *Extractor) ExtractFile(ctx context.Context, txtPath, outputDir string) (Result, error) {
	data, err := os.ReadFile(txtPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrFileNotFound, txtPath)
		}
		return Result{}, fmt.Errorf("read %s: %w", txtPath, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	res, err := e.ExtractText(ctx, string(data))
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, res.Raw, "", "    "); err != nil {
		return Result{}, &DecodeError{Text: string(res.Raw), Err: err}
	}
	buf.WriteByte('\n')

	outPath := filepath.Join(outputDir, Stem(txtPath)+".json")
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", outPath, err)
	}
	res.Path = outPath

	telemetry.Info("extract.written", map[string]any{
		"input":  txtPath,
		"output": outPath,
		"fields": len(res.Fields),
	})
	return res, nil
}

// ExtractText runs the extraction on in-memory text.
func (e *Extractor) ExtractText(ctx context.Context, text string) (Result, error) {
	if e.Client == nil {
		return Result{}, llm.ErrNotConfigured
	}
	completion, err := e.Client.Complete(ctx, llm.CompletionRequest{
		Model:    e.Model,
		Messages: Conversation(text),
		Params:   e.Params,
	})
	if err != nil {
		return Result{}, fmt.Errorf("completion: %w", err)
	}
	if strings.TrimSpace(completion) == "" {
		return Result{}, ErrEmptyCompletion
	}

	cleaned := llm.CleanJSONOutput(completion)
	fields, err := decodeObject(cleaned)
	if err != nil {
		return Result{}, &DecodeError{Text: cleaned, Err: err}
	}
	return Result{Raw: json.RawMessage(cleaned), Fields: fields}, nil
}

// Conversation builds the two-message extraction prompt.
func Conversation(text string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt + text},
	}
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// decodeObject keeps numbers as json.Number so large integers are not rounded.
func decodeObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	if fields == nil {
		return nil, errors.New("expected a JSON object")
	}
	return fields, nil
}

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// commandRunner runs a binary and returns its stdout and stderr.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// TesseractEngine shells out to the tesseract CLI.
type TesseractEngine struct {
	Path    string
	TempDir string
	run     commandRunner
}

// NewTesseractEngine returns an engine invoking the binary at path.
func NewTesseractEngine(path string) *TesseractEngine {
	if strings.TrimSpace(path) == "" {
		path = "tesseract"
	}
	return &TesseractEngine{Path: path, run: execRunner}
}

// Recognize implements Engine. The image is written to a temp file that is
// removed before returning.
func (e *TesseractEngine) Recognize(ctx context.Context, img Image) (string, error) {
	tmp, err := os.CreateTemp(e.TempDir, "ocr-*"+filepath.Ext(img.Name))
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp image: %w", err)
	}

	run := e.run
	if run == nil {
		run = execRunner
	}
	stdout, stderr, err := run(ctx, e.Path, tmp.Name(), "stdout")
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("tesseract: %s", msg)
	}
	return string(stdout), nil
}

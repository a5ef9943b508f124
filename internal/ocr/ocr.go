// Package ocr turns an uploaded document image into plain text.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

var (
	// ErrNoText is returned when recognition succeeds but yields nothing.
	ErrNoText = errors.New("OCR produced no text")
	// ErrUnsupported is returned for inputs no engine can read.
	ErrUnsupported = errors.New("unsupported document")
)

// Image is a document to recognize.
type Image struct {
	Name     string
	MimeType string
	Data     []byte
}

// Engine recognizes the text on an image.
type Engine interface {
	Recognize(ctx context.Context, img Image) (string, error)
}

// Router reads embedded text layers directly and sends everything else to Engine.
// PDFs without a text layer are split into page images by Rasterizer first;
// with no Rasterizer the PDF goes to Engine unchanged.
type Router struct {
	Engine     Engine
	Rasterizer Rasterizer
}

// Recognize implements Engine.
func (r Router) Recognize(ctx context.Context, img Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrUnsupported)
	}

	var (
		text string
		err  error
	)
	switch mime := DetectMIME(img); {
	case mime == mimePDF:
		text, err = extractPDF(img.Data)
		if errors.Is(err, errNoTextLayer) && r.Engine != nil {
			img.MimeType = mimePDF
			text, err = r.recognizeScannedPDF(ctx, img)
		}
	case mime == mimeDOCX:
		text, err = extractDOCX(img.Data)
	case strings.HasPrefix(mime, mimeText):
		text = string(img.Data)
	default:
		if r.Engine == nil {
			return "", fmt.Errorf("%w: no OCR engine configured for %s", ErrUnsupported, mime)
		}
		img.MimeType = mime
		text, err = r.Engine.Recognize(ctx, img)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (r Router) recognizeScannedPDF(ctx context.Context, doc Image) (string, error) {
	if r.Rasterizer == nil {
		return r.Engine.Recognize(ctx, doc)
	}
	pages, err := r.Rasterizer.Rasterize(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("rasterize pdf: %w", err)
	}
	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		text, err := r.Engine.Recognize(ctx, page)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		if t := strings.TrimSpace(text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

// DetectMIME sniffs the payload, falling back to the declared type and the
// file extension when sniffing is inconclusive.
func DetectMIME(img Image) string {
	sniffed := http.DetectContentType(img.Data)
	clean := strings.ToLower(strings.TrimSpace(strings.Split(sniffed, ";")[0]))
	switch clean {
	case "application/zip":
		if isDOCX(img.Data) {
			return mimeDOCX
		}
		return clean
	case "application/octet-stream":
	default:
		if clean == mimeText {
			if declared := declaredMIME(img); declared != "" && declared != mimeText {
				return declared
			}
		}
		return clean
	}
	if declared := declaredMIME(img); declared != "" {
		return declared
	}
	return clean
}

func declaredMIME(img Image) string {
	if d := strings.ToLower(strings.TrimSpace(strings.Split(img.MimeType, ";")[0])); d != "" && d != "application/octet-stream" {
		return d
	}
	switch strings.ToLower(filepath.Ext(img.Name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	}
	return ""
}

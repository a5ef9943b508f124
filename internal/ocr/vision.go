package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"docproc/internal/llm"
)

const visionPrompt = `Convert the provided image into Markdown format. Ensure that all content from the page is included, such as headers, footers, subtexts, images (with alt text if possible), tables, and any other elements.

Requirements:
- Output Only Markdown: Return solely the Markdown content without any additional explanations or comments.
- No Delimiters: Do not use code fences or delimiters like ` + "```markdown" + `.
- Complete Content: Do not omit any part of the page, including headers, footers, and subtext.`

// VisionEngine transcribes images with a vision-capable chat model.
type VisionEngine struct {
	Client llm.Client
	Model  string
}

// Recognize implements Engine.
func (e VisionEngine) Recognize(ctx context.Context, img Image) (string, error) {
	if e.Client == nil {
		return "", llm.ErrNotConfigured
	}
	mime := img.MimeType
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: vision OCR needs an image, got %s", ErrUnsupported, mime)
	}
	out, err := e.Client.Complete(ctx, llm.CompletionRequest{
		Model: e.Model,
		Messages: []llm.Message{{
			Role:     llm.RoleUser,
			Content:  visionPrompt,
			ImageURL: DataURL(mime, img.Data),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	return out, nil
}

// DataURL encodes data as a base64 data: URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

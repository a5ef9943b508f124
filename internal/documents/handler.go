// Package documents exposes the upload and fetch endpoints.
package documents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docproc/internal/pipeline"
	"docproc/internal/records"
	"docproc/internal/shared/server/middleware"
	"docproc/internal/shared/server/respond"
)

const defaultMaxUploadSize = 10 << 20 // 10MB

// Welcome is the body of GET /.
const Welcome = "Welcome to the Document Processor API"

// Pipeline is the processing surface the handler depends on.
type Pipeline interface {
	Process(ctx context.Context, up pipeline.Upload) (records.Record, error)
	Fetch(ctx context.Context, userID, documentType string) (records.FetchResult, error)
}

// Handler wires HTTP handlers to the pipeline.
type Handler struct {
	Pipeline Pipeline
	// CheckUpload and CheckFetch report missing configuration before any work starts.
	CheckUpload    func() error
	CheckFetch     func() error
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(p Pipeline) *Handler {
	return &Handler{Pipeline: p, MaxUploadBytes: defaultMaxUploadSize}
}

// RegisterRoutes attaches the document routes. uploadMW runs before the
// upload handler only.
func (h *Handler) RegisterRoutes(r gin.IRoutes, uploadMW ...gin.HandlerFunc) {
	r.GET("/", h.root)
	r.POST("/upload", append(uploadMW, h.upload)...)
	r.GET("/fetch", h.fetch)
}

func (h *Handler) root(c *gin.Context) {
	respond.Message(c, http.StatusOK, Welcome, nil)
}

func (h *Handler) upload(c *gin.Context) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadSize
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fileHeader, fileErr := c.FormFile("image")
	userID := strings.TrimSpace(c.PostForm("userId"))
	documentType := strings.TrimSpace(c.PostForm("documentType"))

	var tooLarge *http.MaxBytesError
	if errors.As(fileErr, &tooLarge) {
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large",
			fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		return
	}
	if missing := missingFields(userID, documentType, fileErr == nil); missing != "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", missing)
		return
	}
	c.Set(middleware.UserIDKey, userID)
	c.Set(middleware.DocumentTypeKey, documentType)

	if !h.ready(c, h.CheckUpload) {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read image")
		return
	}
	defer file.Close()

	rec, err := h.Pipeline.Process(c.Request.Context(), pipeline.Upload{
		UserID:       userID,
		DocumentType: documentType,
		FileName:     fileHeader.Filename,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		Body:         file,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.Message(c, http.StatusOK, "Upload and processing successful", gin.H{"json_data": rec})
}

func (h *Handler) fetch(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	documentType := strings.TrimSpace(c.Query("documentType"))
	if missing := missingFields(userID, documentType, true); missing != "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", missing)
		return
	}
	c.Set(middleware.UserIDKey, userID)
	c.Set(middleware.DocumentTypeKey, documentType)

	if !h.ready(c, h.CheckFetch) {
		return
	}

	res, err := h.Pipeline.Fetch(c.Request.Context(), userID, documentType)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.Message(c, http.StatusOK, res.Message, gin.H{"data": res.Records})
}

func (h *Handler) ready(c *gin.Context, check func() error) bool {
	if h.Pipeline == nil {
		respond.Error(c, http.StatusInternalServerError, "config_error", pipeline.ErrNotConfigured.Error())
		return false
	}
	if check == nil {
		return true
	}
	if err := check(); err != nil {
		respond.Error(c, http.StatusInternalServerError, "config_error", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, records.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, pipeline.ErrNotConfigured):
		respond.Error(c, http.StatusInternalServerError, "config_error", err.Error())
	case errors.As(err, &stageErr):
		c.Set(middleware.FailedStageKey, string(stageErr.Stage))
		respond.Error(c, http.StatusInternalServerError, string(stageErr.Stage)+"_failed", err.Error())
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", err.Error())
	}
}

func missingFields(userID, documentType string, hasImage bool) string {
	var missing []string
	if userID == "" {
		missing = append(missing, "userId")
	}
	if documentType == "" {
		missing = append(missing, "documentType")
	}
	if !hasImage {
		missing = append(missing, "image")
	}
	if len(missing) == 0 {
		return ""
	}
	return strings.Join(missing, ", ") + " required"
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingConfig is returned when a required setting is absent.
var ErrMissingConfig = errors.New("missing configuration")

// Config holds application configuration.
type Config struct {
	Port                string
	Env                 string
	LogLevel            string
	CORSAllowOrigin     []string
	TogetherAPIKey      string
	LLMBaseURL          string
	LLMModel            string
	LLMTimeout          time.Duration
	OCREngine           string
	OCRModel            string
	TesseractPath       string
	PDFToPPMPath        string
	DatabaseURI         string
	DatabaseName        string
	ObjectStoreType     string
	UploadDir           string
	OutputDir           string
	PublicDir           string
	KeepArtifacts       bool
	MaxUploadMB         int
	UploadRatePerMinute int
	AWSRegion           string
	S3Bucket            string
	S3Prefix            string
	SSEKMSKeyID         string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("TOGETHER_BASE_URL", "https://api.together.xyz/v1")
	v.SetDefault("LLM_MODEL", "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free")
	v.SetDefault("LLM_TIMEOUT_SECONDS", 120)
	v.SetDefault("OCR_ENGINE", "llm")
	v.SetDefault("OCR_MODEL", "meta-llama/Llama-Vision-Free")
	v.SetDefault("TESSERACT_PATH", "tesseract")
	v.SetDefault("PDFTOPPM_PATH", "pdftoppm")
	v.SetDefault("MONGODB_DATABASE", "customer_data")
	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("OUTPUT_DIR", "output")
	v.SetDefault("PUBLIC_DIR", "public")
	v.SetDefault("KEEP_ARTIFACTS", false)
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("UPLOAD_RATE_PER_MINUTE", 0)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	databaseURI := strings.TrimSpace(v.GetString("MONGODB_URI"))
	if databaseURI == "" {
		databaseURI = strings.TrimSpace(v.GetString("DATABASE_URL"))
	}
	timeout := time.Duration(v.GetInt("LLM_TIMEOUT_SECONDS")) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxUpload := v.GetInt("MAX_UPLOAD_MB")
	if maxUpload <= 0 {
		maxUpload = 10
	}

	return Config{
		Port:                strings.TrimSpace(v.GetString("PORT")),
		Env:                 normalizeEnv(v.GetString("ENV")),
		LogLevel:            strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		CORSAllowOrigin:     splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		TogetherAPIKey:      strings.TrimSpace(v.GetString("TOGETHER_API_KEY")),
		LLMBaseURL:          strings.TrimRight(strings.TrimSpace(v.GetString("TOGETHER_BASE_URL")), "/"),
		LLMModel:            strings.TrimSpace(v.GetString("LLM_MODEL")),
		LLMTimeout:          timeout,
		OCREngine:           normalizeOCREngine(v.GetString("OCR_ENGINE")),
		OCRModel:            strings.TrimSpace(v.GetString("OCR_MODEL")),
		TesseractPath:       strings.TrimSpace(v.GetString("TESSERACT_PATH")),
		PDFToPPMPath:        strings.TrimSpace(v.GetString("PDFTOPPM_PATH")),
		DatabaseURI:         databaseURI,
		DatabaseName:        strings.TrimSpace(v.GetString("MONGODB_DATABASE")),
		ObjectStoreType:     normalizeStoreType(v.GetString("OBJECT_STORE")),
		UploadDir:           v.GetString("UPLOAD_DIR"),
		OutputDir:           v.GetString("OUTPUT_DIR"),
		PublicDir:           v.GetString("PUBLIC_DIR"),
		KeepArtifacts:       v.GetBool("KEEP_ARTIFACTS"),
		MaxUploadMB:         maxUpload,
		UploadRatePerMinute: v.GetInt("UPLOAD_RATE_PER_MINUTE"),
		AWSRegion:           strings.TrimSpace(v.GetString("AWS_REGION")),
		S3Bucket:            strings.TrimSpace(v.GetString("S3_BUCKET")),
		S3Prefix:            strings.TrimSpace(v.GetString("S3_PREFIX")),
		SSEKMSKeyID:         strings.TrimSpace(v.GetString("SSE_KMS_KEY_ID")),
	}
}

// RequireLLM reports whether the completion service credential is present.
func (c Config) RequireLLM() error {
	if c.TogetherAPIKey == "" {
		return fmt.Errorf("%w: TOGETHER_API_KEY not set", ErrMissingConfig)
	}
	return nil
}

// RequireDatabase reports whether the document database location is present.
func (c Config) RequireDatabase() error {
	if c.DatabaseURI == "" {
		return fmt.Errorf("%w: MONGODB_URI not set", ErrMissingConfig)
	}
	return nil
}

// MaxUploadBytes returns the request body limit for uploads.
func (c Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(c.MaxUploadMB) << 20
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeOCREngine(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tesseract":
		return "tesseract"
	default:
		return "llm"
	}
}

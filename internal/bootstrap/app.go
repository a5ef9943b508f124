package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"docproc/internal/documents"
	"docproc/internal/extract"
	"docproc/internal/llm"
	"docproc/internal/llm/together"
	"docproc/internal/ocr"
	"docproc/internal/pipeline"
	"docproc/internal/records"
	"docproc/internal/services/health"
	"docproc/internal/shared/config"
	"docproc/internal/shared/server"
	"docproc/internal/shared/storage/object"
	localstore "docproc/internal/shared/storage/object/local"
	s3store "docproc/internal/shared/storage/object/s3"
	"docproc/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	Store            object.ObjectStore
	LLM              llm.Client
	OCR              ocr.Engine
	Repo             records.Repo
	Records          *records.Service
	Pipeline         *pipeline.Processor
	DocumentsHandler *documents.Handler
	Health           *health.Service
}

// Option overrides a dependency, mostly for tests.
type Option func(*options)

type options struct {
	llm  llm.Client
	ocr  ocr.Engine
	repo records.Repo
}

// WithLLM replaces the completion client.
func WithLLM(c llm.Client) Option {
	return func(o *options) { o.llm = c }
}

// WithOCREngine replaces the image recognition engine behind the text-layer router.
func WithOCREngine(e ocr.Engine) Option {
	return func(o *options) { o.ocr = e }
}

// WithRepo replaces the records repository.
func WithRepo(r records.Repo) Option {
	return func(o *options) { o.repo = r }
}

// Build prepares shared dependencies and the router. Missing credentials
// do not fail the build; the handlers report them per request.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient := o.llm
	if llmClient == nil {
		llmClient, err = buildLLM(cfg)
		if err != nil {
			return nil, err
		}
	}

	engine := o.ocr
	if engine == nil {
		engine = buildOCREngine(cfg, llmClient)
	}

	repo := o.repo
	if repo == nil {
		repo, err = buildRepo(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	app := &App{
		Config: cfg,
		Store:  store,
		LLM:    llmClient,
		OCR:    ocr.Router{Engine: engine, Rasterizer: ocr.NewPopplerRasterizer(cfg.PDFToPPMPath)},
		Repo:   repo,
	}

	proc := &pipeline.Processor{
		Store:         store,
		OCR:           app.OCR,
		Extractor:     extract.New(llmClient, cfg.LLMModel),
		OutputDir:     cfg.OutputDir,
		KeepArtifacts: cfg.KeepArtifacts,
	}
	if repo != nil {
		app.Records = records.NewService(repo)
		proc.Records = app.Records
		app.Health = health.NewService(app.Records)
	} else {
		app.Health = health.NewService(nil)
	}
	app.Pipeline = proc

	handler := documents.NewHandler(proc)
	handler.MaxUploadBytes = cfg.MaxUploadBytes()
	handler.CheckUpload = func() error {
		if o.llm == nil {
			if err := cfg.RequireLLM(); err != nil {
				return err
			}
		}
		if o.repo == nil {
			return cfg.RequireDatabase()
		}
		return nil
	}
	handler.CheckFetch = func() error {
		if o.repo == nil {
			return cfg.RequireDatabase()
		}
		return nil
	}
	app.DocumentsHandler = handler

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		DocumentHandler: handler,
		Health:          app.Health,
	})
	return app, nil
}

// RequireCLI fails when the settings every CLI command needs are absent.
func (a *App) RequireCLI(needLLM bool) error {
	if needLLM {
		if err := a.Config.RequireLLM(); err != nil {
			return err
		}
	}
	if a.Records == nil {
		if err := a.Config.RequireDatabase(); err != nil {
			return err
		}
		return errors.New("records store not configured")
	}
	return nil
}

// Close releases the records repository.
func (a *App) Close(ctx context.Context) error {
	if a == nil || a.Repo == nil {
		return nil
	}
	return a.Repo.Close(ctx)
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.UploadDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.TogetherAPIKey == "" {
		telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{"reason": "TOGETHER_API_KEY not set"})
		return llm.PlaceholderClient{}, nil
	}
	return together.NewClient(cfg.TogetherAPIKey, cfg.LLMBaseURL, cfg.LLMTimeout)
}

func buildOCREngine(cfg config.Config, client llm.Client) ocr.Engine {
	switch cfg.OCREngine {
	case "tesseract":
		return ocr.NewTesseractEngine(cfg.TesseractPath)
	default:
		return ocr.VisionEngine{Client: client, Model: cfg.OCRModel}
	}
}

func buildRepo(ctx context.Context, cfg config.Config) (records.Repo, error) {
	if cfg.DatabaseURI == "" {
		telemetry.Warn("bootstrap.database_unconfigured", map[string]any{"reason": "MONGODB_URI not set"})
		return nil, nil
	}
	repo, err := records.Open(ctx, cfg.DatabaseURI, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("open records store: %w", err)
	}
	return repo, nil
}

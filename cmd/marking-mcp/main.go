package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ic-marking-mcp/internal/config"
	"github.com/ironsheep/ic-marking-mcp/internal/imaging"
	"github.com/ironsheep/ic-marking-mcp/internal/logging"
	"github.com/ironsheep/ic-marking-mcp/internal/ocr"
	"github.com/ironsheep/ic-marking-mcp/internal/pipeline"
	"github.com/ironsheep/ic-marking-mcp/internal/server"
	"github.com/ironsheep/ic-marking-mcp/internal/similarity"
	"github.com/ironsheep/ic-marking-mcp/internal/workerpool"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// engineStartupTimeout bounds engine initialization at startup.
const engineStartupTimeout = 2 * time.Minute

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("ic-marking-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("ic-marking-mcp - MCP server for IC marking verification")
			fmt.Println()
			fmt.Println("Usage: ic-marking-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Configuration is read from marking.yaml (in . or ./config, or the")
			fmt.Println("file named by MARKING_CONFIG), then MARKING_* environment variables.")
			fmt.Println("A .env file in the working directory is loaded first.")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  MARKING_PRIMARY_ENGINE=easyocr     easyocr or tesseract")
			fmt.Println("  MARKING_FALLBACK_ENGINE=tesseract  easyocr, tesseract or none")
			fmt.Println("  MARKING_LANGUAGES=en               Comma-separated language codes")
			fmt.Println("  MARKING_WORKER_POOL_SIZE=2         Concurrent preprocessing/OCR tasks (1-16)")
			fmt.Println("  MARKING_EASYOCR_URL=...            EasyOCR sidecar base URL")
			fmt.Println("  MARKING_TESSDATA_PREFIX=...        Tesseract language data directory")
			fmt.Println("  MARKING_MIN_CONFIDENCE=0.1         Default confidence threshold")
			fmt.Println("  MARKING_LOG_LEVEL=info             debug, info, warn or error")
			fmt.Println("  MARKING_LOG_FORMAT=text            text or json")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("MARKING_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is for MCP protocol.
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.Component(logger, "main")
	log.WithFields(logrus.Fields{
		"version":  Version,
		"commit":   GitCommit,
		"built":    BuildTime,
		"config":   cfg.File,
		"primary":  cfg.Primary,
		"fallback": cfg.Fallback,
	}).Info("starting IC marking MCP server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engines, err := buildEngines(cfg)
	if err != nil {
		log.WithError(err).Fatal("invalid OCR engine configuration")
	}

	startCtx, cancel := context.WithTimeout(ctx, engineStartupTimeout)
	dispatcher, err := ocr.Open(startCtx, ocr.Options{
		Primary:  cfg.Primary,
		Fallback: cfg.Fallback,
		Logger:   logging.Component(logger, "ocr"),
	}, engines...)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("OCR engines failed to initialize")
	}

	pool := workerpool.New(cfg.WorkerPoolSize)
	defer pool.Close()

	svc, err := pipeline.New(pipeline.Config{
		Dispatcher:    dispatcher,
		Pool:          pool,
		Matcher:       similarity.NewMatcher(logging.Component(logger, "similarity")),
		Logger:        logging.Component(logger, "pipeline"),
		MinConfidence: cfg.MinConfidence,
		TargetSize:    imaging.Size{Width: cfg.TargetWidth, Height: cfg.TargetHeight},
		Version:       Version,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}

	srv := server.New(svc, server.Options{
		Version: Version,
		Logger:  logging.Component(logger, "server"),
	})
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("server error")
		pool.Close()
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildEngines constructs the configured engines, primary first.
func buildEngines(cfg *config.Config) ([]ocr.Engine, error) {
	engines := make([]ocr.Engine, 0, 2)
	for _, kind := range cfg.Engines() {
		switch kind {
		case ocr.EasyOCR:
			eng, err := ocr.NewEasyOCREngine(ocr.EasyOCRConfig{
				BaseURL:   cfg.EasyOCRURL,
				Languages: cfg.Languages,
				Timeout:   cfg.EasyOCRTimeout,
			})
			if err != nil {
				return nil, err
			}
			engines = append(engines, eng)
		case ocr.Tesseract:
			engines = append(engines, ocr.NewTesseractEngine(ocr.TesseractConfig{
				Languages:      cfg.Languages,
				PageSegMode:    cfg.TesseractPSM,
				Whitelist:      cfg.TesseractWhitelist,
				TessdataPrefix: cfg.TessdataPrefix,
			}))
		default:
			return nil, fmt.Errorf("unsupported OCR engine %q", kind)
		}
	}
	return engines, nil
}

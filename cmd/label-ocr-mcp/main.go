package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/label-ocr-mcp/internal/allergen"
	"github.com/ironsheep/label-ocr-mcp/internal/config"
	"github.com/ironsheep/label-ocr-mcp/internal/detection"
	"github.com/ironsheep/label-ocr-mcp/internal/imaging"
	"github.com/ironsheep/label-ocr-mcp/internal/inference"
	"github.com/ironsheep/label-ocr-mcp/internal/logging"
	"github.com/ironsheep/label-ocr-mcp/internal/ocr"
	"github.com/ironsheep/label-ocr-mcp/internal/pipeline"
	"github.com/ironsheep/label-ocr-mcp/internal/recognition"
	"github.com/ironsheep/label-ocr-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("label-ocr-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		case "scan":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "usage: label-ocr-mcp scan <image> [allergen...]")
				os.Exit(2)
			}
			if err := runScan(os.Args[2], os.Args[3:]); err != nil {
				fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := runServer(); err != nil {
		logging.Default.Errorw("server error", "error", err)
		logging.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("label-ocr-mcp - MCP server that reads food labels and flags allergens")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  label-ocr-mcp                        Serve MCP over stdin/stdout")
	fmt.Println("  label-ocr-mcp scan <image> [a...]    Scan one photo and print its text")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Println("  LABEL_OCR_MODEL_DIR=models       Directory holding the .onnx models")
	fmt.Println("  LABEL_OCR_ORT_LIB=<path>         onnxruntime shared library")
	fmt.Println("  LABEL_OCR_RECOGNIZER=onnx        Recognizer backend: onnx or tesseract")
	fmt.Println("  LABEL_OCR_TUNING_FILE=<path>     YAML stage tuning")
	fmt.Println("  LABEL_OCR_DEBUG_DIR=<path>       Write intermediate images here")
	fmt.Println("  LABEL_OCR_LOG_LEVEL=debug        Enable debug logging")
	fmt.Println()
	fmt.Println("Configure the server in your MCP client (e.g., Claude Desktop).")
}

// app holds the wired pipeline and the settings it was built from.
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline

	// backendInfo is set for recognizers with external dependencies.
	backendInfo server.BackendInfo
}

// setup loads configuration, builds both stages and starts model loading
// in the background.
func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.LogLevel)
	log := logging.Named("main")
	log.Infow("starting", "version", Version, "commit", GitCommit, "backend", cfg.Backend)

	detector, err := detection.New(cfg.Detector)
	if err != nil {
		return nil, err
	}

	var (
		recognizer  pipeline.TextRecognizer
		backendInfo server.BackendInfo
	)
	switch cfg.Backend {
	case config.BackendTesseract:
		tess, err := ocr.New(cfg.Tesseract)
		if err != nil {
			return nil, err
		}
		recognizer, backendInfo = tess, tess
	default:
		recognizer, err = recognition.New(cfg.Recognizer)
		if err != nil {
			return nil, err
		}
	}

	var opts []pipeline.Option
	if cfg.DebugDir != "" {
		sink, err := imaging.NewDirSink(cfg.DebugDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithDebugSink(sink))
	}

	p, err := pipeline.New(detector, recognizer, cfg.Pipeline, opts...)
	if err != nil {
		return nil, err
	}

	// The detector always runs on ONNX Runtime, whichever recognizer is used.
	loader, err := inference.NewONNXLoader(cfg.ONNXOptions())
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := p.Start(loader); err != nil {
		p.Close()
		return nil, err
	}
	return &app{cfg: cfg, pipeline: p, backendInfo: backendInfo}, nil
}

func runServer() error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.pipeline.Close()
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Scanner:     a.pipeline,
		ScanTimeout: a.cfg.ScanTimeout,
		Version:     Version,
		Backend:     a.cfg.Backend,
		BackendInfo: a.backendInfo,
	})
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runScan(path string, selection []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.pipeline.Close()
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	img, err := imaging.NewImageCache().Load(path)
	if err != nil {
		return err
	}

	initCtx, cancel := context.WithTimeout(ctx, a.cfg.InitTimeout)
	defer cancel()
	if err := a.pipeline.Wait(initCtx); err != nil {
		return fmt.Errorf("models did not load: %w", err)
	}

	scanCtx, cancelScan := context.WithTimeout(ctx, a.cfg.ScanTimeout)
	defer cancelScan()
	res, err := a.pipeline.Scan(scanCtx, img)
	if err != nil {
		return err
	}

	fmt.Println(res.Text)
	if len(selection) == 0 {
		return nil
	}

	catalog, err := allergen.Default()
	if err != nil {
		return err
	}
	found := allergen.Flag(catalog, res.Text, selection)
	if len(found) == 0 {
		fmt.Println("\nNo selected allergens found.")
		return nil
	}
	fmt.Printf("\nAllergens found: %s\n", strings.Join(found, ", "))
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/acne-api/internal/config"
	"github.com/Brownie44l1/acne-api/internal/handlers"
	"github.com/Brownie44l1/acne-api/internal/logger"
	"github.com/Brownie44l1/acne-api/internal/model"
	"github.com/Brownie44l1/acne-api/internal/predict"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	if err := model.InitRuntime(cfg.Models.RuntimeLibrary); err != nil {
		return err
	}
	busy := false
	defer func() {
		if busy {
			log.Warn("Keeping ONNX environment alive, sessions still in use")
			return
		}
		model.DestroyRuntime()
	}()
	closeModel := func(name string, c interface{ Close() error }) {
		if err := c.Close(); err != nil {
			busy = true
			log.Warn("Model did not close cleanly", "model", name, "error", err)
		}
	}

	log.Info("Loading detection model", "model", cfg.Models.Detector.ModelPath, "pool_size", cfg.Models.Detector.PoolSize)
	detector, err := model.LoadDetector(model.DetectorOptions{
		ModelPath:     cfg.Models.Detector.ModelPath,
		MetadataPath:  cfg.Models.Detector.MetadataPath,
		IoU:           float32(cfg.Models.Detector.IoU),
		MaxDetections: cfg.Models.Detector.MaxDetections,
		PoolSize:      cfg.Models.Detector.PoolSize,
		DrainTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	defer closeModel("detector", detector)

	log.Info("Loading severity model", "model", cfg.Models.Severity.ModelPath, "pool_size", cfg.Models.Severity.PoolSize)
	classifier, err := model.LoadClassifier(model.ClassifierOptions{
		ModelPath:    cfg.Models.Severity.ModelPath,
		MetadataPath: cfg.Models.Severity.MetadataPath,
		PoolSize:     cfg.Models.Severity.PoolSize,
		DrainTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	defer closeModel("severity", classifier)

	log.Info("Models loaded",
		"detector_classes", detector.Names(),
		"severity_classes", classifier.Names(),
		"confidence", cfg.Models.Detector.Confidence,
	)

	svc := predict.NewService(detector, classifier, predict.Options{
		Confidence: float32(cfg.Models.Detector.Confidence),
		MaxPixels:  cfg.Server.MaxImagePixels,
	}, log)
	router := handlers.NewRouter(handlers.NewHandler(svc, log, cfg.Server.MaxUploadBytes), log, cfg.Server.Mode)

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", "address", srv.Addr)
		log.Info("Endpoints", "health", "GET /health", "predict", "POST /predict (multipart field 'image')")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/config"
	"github.com/raaihank/annotext/internal/export"
	"github.com/raaihank/annotext/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Input JSONL file, one document with its annotations per line")
		outputFile = flag.String("output", "", "Output file (JSONL, CSV or Parquet)")
		format     = flag.String("format", "", "Output format: jsonl, csv or parquet (default from config, then the output extension)")
		batchSize  = flag.Int("batch-size", 0, "Batch size for processing (default from config)")
	)
	flag.Parse()

	if *inputFile == "" || *outputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input documents.jsonl --output deidentified.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input documents.jsonl --output out.txt --format csv --batch-size 200\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	formatName := *format
	if formatName == "" {
		formatName = cfg.Export.Format
	}
	outputFormat, err := export.ResolveFileFormat(formatName, *outputFile)
	if err != nil {
		log.Fatal("Unknown output format", zap.Error(err))
	}

	exportConfig := cfg.Export
	if *batchSize > 0 {
		exportConfig.BatchSize = *batchSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling export...")
		cancel()
	}()

	pipeline := export.NewPipeline(&exportConfig, log.WithComponent("export").Logger)
	result, err := pipeline.ProcessFile(ctx, *inputFile, *outputFile, outputFormat)
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}

	log.Info("Export completed",
		zap.Int64("total", result.TotalRecords),
		zap.Int64("processed", result.ProcessedOK),
		zap.Int64("failed", result.ProcessedFailed),
		zap.Int64("skipped_spans", result.SkippedSpans),
		zap.Duration("duration", result.Duration))

	for _, msg := range result.Errors {
		log.Warn("Document not exported", zap.String("error", msg))
	}
}

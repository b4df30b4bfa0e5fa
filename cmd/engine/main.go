// Package main is the trade-lifecycle engine's entry point: it parses
// flags, builds the composition root (internal/engine), and runs it until
// a shutdown signal arrives. Grounded on the teacher's cmd/server/main.go
// flag parsing, setupLogger, and signal-driven graceful-shutdown shape,
// narrowed from its PhD-level multi-service wiring to one engine.Start/
// Stop call.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/silverline-labs/tradeengine/internal/brokerstub"
	"github.com/silverline-labs/tradeengine/internal/engine"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to the engine's tuning config file")
	dataDir := flag.String("data", "./data", "Durable-state directory (plans/exit_rules/oco_pairs/events)")
	symbolsCSV := flag.String("symbols", "EURUSD,XAUUSD,BTCUSD", "Comma-separated symbol list to trade")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	paper := flag.Bool("paper", true, "Use the in-memory paper broker instead of a live BrokerGateway")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	symbols := strings.Split(*symbolsCSV, ",")
	logger.Info("starting trade-lifecycle engine",
		zap.Strings("symbols", symbols),
		zap.String("config", *configPath),
		zap.Bool("paper", *paper),
	)

	if !*paper {
		logger.Fatal("no live BrokerGateway wired; rerun with -paper, or supply a real gateway.Broker at this call site")
	}
	broker := brokerstub.New()

	eng, err := engine.New(logger, engine.Options{
		Symbols:    symbols,
		Broker:     broker,
		ConfigPath: *configPath,
		DataDir:    *dataDir,
	})
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := eng.Start(ctx); err != nil {
			logger.Error("engine stopped with error", zap.Error(err))
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Error("error during engine shutdown", zap.Error(err))
	}
	logger.Info("engine stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

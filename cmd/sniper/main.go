// cmd/sniper/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/bot"
	"github.com/rovshanmuradov/cpmm-sniper/internal/config"
	"github.com/rovshanmuradov/cpmm-sniper/internal/export"
	"github.com/rovshanmuradov/cpmm-sniper/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	envFile := flag.String("env", ".env", "env file loaded before the environment")
	buyMint := flag.String("buy", "", "buy this mint once and exit, skipping detection")
	exportFormat := flag.String("export", "", "export the attempt journal as csv or json and exit")
	exportDir := flag.String("out", "exports", "output directory for -export")
	exportLimit := flag.Int("limit", 1000, "max attempts read for -export")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to load config: %v\n", err)
		return 1
	}

	logCfg := logger.DefaultConfig()
	logCfg.Debug = cfg.Log.Debug
	logCfg.File = cfg.Log.File
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to create logger: %v\n", err)
		return 1
	}
	defer func() {
		if err := logger.Sync(log); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	ctx := context.Background()
	runner := bot.NewRunner(cfg, log)
	defer func() {
		if err := runner.Shutdown(context.Background()); err != nil {
			log.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	if err := runner.Initialize(ctx); err != nil {
		log.Error("💥 Failed to initialize", zap.Error(err))
		return 1
	}

	if *exportFormat != "" {
		return exportJournal(ctx, runner, log, *exportFormat, *exportDir, *exportLimit)
	}

	if *buyMint != "" {
		mint, err := solana.PublicKeyFromBase58(*buyMint)
		if err != nil {
			log.Error("💥 Invalid mint", zap.String("mint", *buyMint), zap.Error(err))
			return 2
		}
		sig, err := runner.BuyOnce(ctx, mint)
		if err != nil {
			log.Error("❌ Manual buy failed", zap.Error(err))
			return 1
		}
		log.Info("💰 Manual buy confirmed", zap.String("signature", sig.String()))
		return 0
	}

	if err := runner.Run(ctx); err != nil {
		log.Error("💥 Sniper stopped", zap.Error(err))
		return 1
	}
	return 0
}

func exportJournal(ctx context.Context, runner *bot.Runner, log *zap.Logger, format, dir string, limit int) int {
	f, err := export.ParseFormat(format)
	if err != nil {
		log.Error("💥 Invalid export format", zap.Error(err))
		return 2
	}
	attempts, err := runner.Journal().ListRecent(ctx, limit)
	if err != nil {
		log.Error("💥 Failed to read journal", zap.Error(err))
		return 1
	}
	path, err := export.NewAttemptExporter(log).Export(attempts, export.Options{Format: f, OutputDir: dir})
	if errors.Is(err, export.ErrNothingToExport) {
		log.Warn("Journal is empty, nothing exported")
		return 0
	}
	if err != nil {
		log.Error("💥 Export failed", zap.Error(err))
		return 1
	}
	fmt.Println(path)
	return 0
}

// Package main is the entry point for the scanlike CLI: remove pages from a PDF
// and/or make it look like a paper scan.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/local/scanlike/internal/config"
	"github.com/local/scanlike/internal/logger"
	"github.com/local/scanlike/internal/metrics"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg holds the environment defaults; flags and the config file override them.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "scanlike",
	Short: "Remove pages from a PDF and make it look scanned",
	Long: `scanlike takes a born-digital PDF, optionally removes a set of pages
(--remove "1,3,5-7"), and optionally rasterizes every remaining page and degrades
it so the result looks like a paper scan (--scan).

Inputs may be local paths, http(s):// URLs or s3://bucket/key references; the
output may be a local path or an s3:// reference.`,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		metrics.Init()
		return logger.Init(logger.Options{
			Level:        viper.GetString("log_level"),
			Pretty:       cfg.Logging.Pretty,
			File:         cfg.Logging.File,
			MaxSizeMB:    cfg.Logging.MaxSizeMB,
			MaxBackups:   cfg.Logging.MaxBackups,
			MaxAgeDays:   cfg.Logging.MaxAgeDays,
			Compress:     cfg.Logging.Compress,
			SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
			AxiomAPIKey:  cfg.Axiom.APIKey,
			AxiomOrgID:   cfg.Axiom.OrgID,
			AxiomDataset: cfg.Axiom.Dataset,
			AxiomFlush:   cfg.Axiom.FlushInterval,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
	RunE: runPipeline,
}

func init() {
	// .env is optional
	_ = godotenv.Load()
	cfg = config.FromEnv()

	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./scanlike.yaml or ~/.config/scanlike/config.yaml)")
	pf.String("log-level", cfg.Logging.Level, "log level: debug, info, warn, error")
	pf.String("renderer-path", cfg.Scan.RendererPath, "poppler pdftoppm binary or its directory; empty uses the embedded MuPDF renderer")
	pf.Int("dpi", cfg.Scan.DPI, fmt.Sprintf("render resolution for --scan (%d-%d)", config.MinDPI, config.MaxDPI))
	pf.Int("quality", cfg.Scan.Quality, "JPEG quality of scanned pages")
	pf.Int("workers", cfg.Scan.Workers, "concurrent page workers")
	pf.Int64("seed", cfg.Scan.Seed, "random seed for scan effects; 0 picks one per run")

	bind(pf.Lookup("log-level"), "log_level")
	bind(pf.Lookup("renderer-path"), "renderer_path")
	bind(pf.Lookup("dpi"), "dpi")
	bind(pf.Lookup("quality"), "quality")
	bind(pf.Lookup("workers"), "workers")
	bind(pf.Lookup("seed"), "seed")

	f := rootCmd.Flags()
	f.String("in", "", "input PDF: path, file://, http(s):// or s3://bucket/key")
	f.String("out", "", "output PDF: path or s3://bucket/key")
	f.StringP("remove", "r", "", `pages to remove, e.g. "1,3,5-7"`)
	f.Bool("scan", false, "rasterize pages and apply the scan effect")
	_ = rootCmd.MarkFlagRequired("in")
	_ = rootCmd.MarkFlagRequired("out")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scanlike")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scanlike"))
		}
	}

	viper.SetEnvPrefix("SCANLIKE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("scanlike failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

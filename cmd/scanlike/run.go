package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/local/scanlike/internal/config"
	"github.com/local/scanlike/internal/imagerender"
	"github.com/local/scanlike/internal/orchestrator"
	"github.com/local/scanlike/internal/scanerr"
	"github.com/local/scanlike/internal/storage"
)

func newOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Dependencies{
		Storage: storage.New(storage.Options{
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Password:  cfg.Storage.Password,
		}),
		Rasterizer: rasterizer(),
		Workers:    viper.GetInt("workers"),
	})
}

func runPipeline(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	remove, _ := cmd.Flags().GetString("remove")
	scan, _ := cmd.Flags().GetBool("scan")

	dpi := viper.GetInt("dpi")
	if scan && (dpi < config.MinDPI || dpi > config.MaxDPI) {
		return fmt.Errorf("invalid --dpi %d: %w", dpi, orchestrator.ErrDPIRange)
	}
	cmd.SilenceUsage = true

	req := orchestrator.Request{
		Input:   in,
		Output:  out,
		Remove:  remove,
		Scan:    scan,
		DPI:     dpi,
		Quality: viper.GetInt("quality"),
		Seed:    viper.GetInt64("seed"),
	}

	res, err := newOrchestrator().Run(cmd.Context(), req, nil)
	if errors.Is(err, orchestrator.ErrNoOperation) {
		fmt.Fprintln(cmd.ErrOrStderr(), "no operation specified (use --remove and/or --scan); nothing written")
		return nil
	}
	if scanerr.IsRecoverable(err) {
		log.Warn().Err(err).Str("remove", remove).Msg("page range rejected; nothing written")
		return fmt.Errorf("%w (check the --remove expression)", err)
	}
	if err != nil {
		log.Error().Err(err).Str("kind", scanerr.Kind(err)).Msg("run failed")
		return err
	}

	msg := fmt.Sprintf("wrote %s (%d of %d pages", res.Output, res.PagesOut, res.PagesIn)
	if res.Scanned {
		msg += fmt.Sprintf(", scanned at %d dpi, seed %d", dpi, res.Seed)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg+")")
	return nil
}

func rasterizer() imagerender.Rasterizer {
	return imagerender.New(viper.GetString("renderer_path"))
}

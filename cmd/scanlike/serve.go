package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/local/scanlike/internal/limiter"
	"github.com/local/scanlike/internal/orchestrator"
	"github.com/local/scanlike/internal/server"
	"github.com/local/scanlike/internal/statuscheck"
	"github.com/local/scanlike/internal/store"
	"github.com/local/scanlike/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP upload/progress/download service",
	Long: `serve exposes the pipeline over HTTP:

  POST /process          multipart upload (file, remove, scan, dpi) -> {job_id}
  GET  /progress/{id}    job status
  GET  /download/{id}    the finished PDF
  GET  /status           renderer and Redis readiness
  GET  /web/             browser front-end
  GET  /health, /metrics

With WEB_USERNAME and WEB_PASSWORD set, the job routes need a web session
or the same credentials as basic auth.

Job status lives in Redis when REDIS_URL is set, in memory otherwise.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", cfg.Server.Addr, "listen address")
	f.String("redis-url", cfg.Server.RedisURL, "Redis URL for job status; empty keeps status in memory")
	f.String("upload-dir", cfg.Server.UploadDir, "directory for uploaded PDFs")
	f.String("result-dir", cfg.Server.ResultDir, "directory for finished PDFs")
	f.Int("max-jobs", cfg.Server.MaxInflight, "concurrent jobs before uploads are refused")

	bind(f.Lookup("addr"), "addr")
	bind(f.Lookup("redis-url"), "redis_url")
	bind(f.Lookup("upload-dir"), "upload_dir")
	bind(f.Lookup("result-dir"), "result_dir")
	bind(f.Lookup("max-jobs"), "max_jobs")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cmd.SilenceUsage = true

	orchestrator.CleanupTemps("", cfg.Server.CleanupMaxAge)

	var (
		status store.StatusStore = store.NewMemoryStatus()
		pinger statuscheck.RedisPinger
	)
	if url := viper.GetString("redis_url"); url != "" {
		rs, err := store.NewRedisStatus(ctx, url)
		if err != nil {
			return err
		}
		status, pinger = rs, rs
		log.Info().Msg("job status stored in redis")
	}
	defer status.Close()

	front := web.New(cfg.Server.WebUsername, cfg.Server.WebPassword)
	orch := newOrchestrator()
	srv := server.New(ctx, orch, status, limiter.New(viper.GetInt("max_jobs")), server.Options{
		UploadDir:   viper.GetString("upload_dir"),
		ResultDir:   viper.GetString("result_dir"),
		MaxUploadMB: cfg.Server.MaxUploadMB,
		DefaultDPI:  viper.GetInt("dpi"),
		Quality:     viper.GetInt("quality"),
		Seed:        viper.GetInt64("seed"),
		Auth:        front.Protect,
	})

	checker := statuscheck.New(statuscheck.Options{
		Redis:    pinger,
		Renderer: rasterizer(),
	})

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	front.RegisterRoutes(mux)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/web/", http.StatusFound)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		sum := checker.Summary(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !sum.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(sum)
	})

	// periodic sweep of work dirs left by crashed runs
	go func() {
		t := time.NewTicker(max(cfg.Server.CleanupMaxAge, time.Minute))
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				orchestrator.CleanupTemps("", cfg.Server.CleanupMaxAge)
			}
		}
	}()

	addr := viper.GetString("addr")
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = hs.Shutdown(shutdownCtx)
	srv.Wait()
	log.Info().Msg("shutdown complete")
	return nil
}

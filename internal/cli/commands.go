package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace bounds graceful HTTP shutdown.
const shutdownGrace = 10 * time.Second

func serveCommand(rt *runtime) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report API; optionally crawl on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("crawl-interval") {
				rt.cfg.CrawlInterval = interval
			}
			app, err := Build(rt.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, app)
		},
	}
	cmd.Flags().DurationVar(&interval, "crawl-interval", 0, "regenerate the report on this interval (overrides CRAWL_INTERVAL, 0 disables)")
	return cmd
}

// serve runs the HTTP server and the optional scheduler until ctx is done or
// one of them fails, then shuts the server down gracefully.
func serve(ctx context.Context, app *App) error {
	srv := app.Server()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("component", "server").Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		log.Info().Str("component", "server").Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	if every := app.Config.CrawlInterval; every > 0 {
		g.Go(func() error { return app.Pipeline.Start(gctx, every) })
	}
	return g.Wait()
}

func crawlCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one ingestion: fetch the top list and store a vote batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := Build(rt.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			at, err := app.Pipeline.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			n, _, err := app.Pipeline.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "crawled at %s, %d votes stored\n", at.Format(time.RFC3339), n)
			return nil
		},
	}
}

func generateCommand(rt *runtime) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Produce the report unless a fresh one exists; prints its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := Build(rt.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			out, err := app.Pipeline.Generate(cmd.Context(), force)
			if err != nil {
				return err
			}
			state := "reused"
			if out.Regenerated {
				state = "regenerated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s at %s)\n", out.Path, state, out.ProducedAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate even when the last report is fresh")
	return cmd
}

func versionCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "memereport", rt.version)
		},
	}
}

// Package cli implements the memereport command line: the HTTP server, one-off
// crawls and report generation, all sharing one wiring of the pipeline.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-meme-report/internal/config"
	"github.com/tbourn/go-meme-report/internal/observability"
	"github.com/tbourn/go-meme-report/internal/sysutil"
)

// runtime is the state shared by subcommands after the root pre-run.
type runtime struct {
	version  string
	envFiles []string
	logLevel string

	cfg          config.Config
	shutdownOTel observability.ShutdownFunc
}

// NewRootCommand builds the command tree. version is reported by the version
// command and attached to logs and traces.
func NewRootCommand(version string) *cobra.Command {
	rt := &runtime{version: sysutil.FirstNonEmpty(version, "dev")}

	root := &cobra.Command{
		Use:           "memereport",
		Short:         "Crawl top memes, track their votes and render a report",
		Version:       rt.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&rt.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the environment is read")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "overrides LOG_LEVEL")

	versionCmd := versionCommand(rt)
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return rt.init(cmd.Context())
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if rt.shutdownOTel == nil {
			return nil
		}
		return rt.shutdownOTel(context.WithoutCancel(cmd.Context()))
	}

	root.AddCommand(
		serveCommand(rt),
		crawlCommand(rt),
		generateCommand(rt),
		versionCmd,
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(version string) {
	root := NewRootCommand(version)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "memereport:", err)
		os.Exit(1)
	}
}

func (rt *runtime) init(ctx context.Context) error {
	config.LoadDotEnv(rt.envFiles...)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl := strings.TrimSpace(rt.logLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, rt.version)

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, rt.version)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.shutdownOTel = shutdown
	return nil
}

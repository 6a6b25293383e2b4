package serve_lsp

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/walteh/tmplcheck/pkg/analyzer"
	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/checks"
	"github.com/walteh/tmplcheck/pkg/config"
	"github.com/walteh/tmplcheck/pkg/lsp"
)

type Handler struct {
	fs         afero.Fs
	configPath string
	version    string
}

func NewServeLSPCommand(fs afero.Fs, version string) *cobra.Command {
	me := &Handler{fs: fs, version: version}

	cmd := &cobra.Command{
		Use:   "serve-lsp",
		Short: "start the language server on stdin and stdout",
	}

	cmd.Flags().StringVar(&me.configPath, "config", config.DefaultPath, "the config file to load, if it exists")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), cmd.InOrStdin(), nopCloser{cmd.OutOrStdout()})
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, in io.Reader, out io.WriteCloser) error {
	cfg, err := config.LoadOrDefault(me.fs, me.configPath, checks.Names())
	if err != nil {
		return err
	}
	if _, err := cfg.Apply(checks.All()); err != nil {
		return err
	}

	server := lsp.NewServer(me.version,
		func() []check.Check {
			cs, _ := cfg.Apply(checks.All())
			return cs
		},
		analyzer.WithTimeout(cfg.Engine.Timeout),
		analyzer.WithTrace(cfg.Engine.Trace),
	)

	zerolog.Ctx(ctx).Debug().Str("config", me.configPath).Msg("starting language server")

	return server.Serve(ctx, in, out)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

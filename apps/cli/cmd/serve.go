package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/server"
)

var (
	serveAddrFlag    string
	serveSaveDirFlag string
	serveMaxBodyFlag int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local server that receives uploads",
	Long: `Run a local HTTP server that accepts multipart uploads on any path and
answers with JSON describing the fields and files it received, including
each file's size and SHA-256. Useful as a target while trying uploads out.

Examples:
  hitupload serve
  hitupload serve --addr :9000 --save-dir ./received
  hitupload upload localhost 8080 /upload report.pdf --expect-status 200`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", getEnvString("HITUPLOAD_SERVE_ADDR", server.DefaultAddr), "Listen address (env: HITUPLOAD_SERVE_ADDR)")
	serveCmd.Flags().StringVar(&serveSaveDirFlag, "save-dir", "", "Write received files into this directory")
	serveCmd.Flags().Int64Var(&serveMaxBodyFlag, "max-body", server.DefaultMaxBodySize, "Largest accepted request body in bytes")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	cfg := server.Config{
		Addr:        serveAddrFlag,
		SaveDir:     serveSaveDirFlag,
		MaxBodySize: serveMaxBodyFlag,
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return &uerrors.ConfigError{Field: "addr", Value: serveAddrFlag, Message: err.Error()}
	}

	srv := server.New(cfg, log)
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())

	<-cmd.Context().Done()
	return srv.Stop(context.WithoutCancel(cmd.Context()))
}

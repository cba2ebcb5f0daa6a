package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"readmegen/internal/config"
	"readmegen/internal/llmclient"
	"readmegen/internal/publish"
	"readmegen/internal/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		o          overrides
		port       string
		allowLocal bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the README API over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			o.apply(cmd, &cfg)
			if cmd.Flags().Changed("port") {
				cfg.Port = config.NormalizePort(port)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
			h, err := newHandler(cfg, allowLocal, logger)
			if err != nil {
				return err
			}
			return server.New(cfg.Port, h.Routes(), logger).Run(cmd.Context())
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&port, "port", "", "listen address, e.g. 8080 or :8080 (default from PORT or :8080)")
	cmd.Flags().BoolVar(&allowLocal, "allow-local", false, "accept mode=local requests that read the server filesystem")
	return cmd
}

func newHandler(cfg config.Config, allowLocal bool, logger *log.Logger) (*server.Handler, error) {
	base := cfg.LLM()
	base.Logger = logger

	var sink publish.Sink
	if cfg.S3.Enabled() {
		s3, err := publish.NewS3Sink(cfg.S3.Publish())
		if err != nil {
			return nil, err
		}
		sink = s3
	}

	return server.NewHandler(server.Deps{
		Pipeline: pipelineOptions(cfg, logger),
		Source:   sourceOptions(cfg, logger),
		Generator: func(ctx context.Context, model string) (llmclient.Generator, error) {
			lc := base
			if model != "" {
				lc.Model = model
			}
			return llmclient.New(ctx, lc)
		},
		Provider:   base.Provider,
		Sink:       sink,
		AllowLocal: allowLocal,
		Logger:     logger,
	})
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexfoundry/caseflowd/internal/config"
	"github.com/lexfoundry/caseflowd/internal/logging"
	"github.com/lexfoundry/caseflowd/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools over stdio",
	Long: `Serve the case_submit, case_status, case_report, and case_resume
tools over stdio for MCP clients. Logs go to stderr; stdout carries the
protocol stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func runMCP() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pipe, err := buildPipeline(ctx, cfg, logger, cfg.Offline)
	if err != nil {
		return err
	}
	defer pipe.Close()

	cfg.MCP.Version = version
	srv, err := mcpserver.NewServer(pipe.orch, logger, cfg.MCP)
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	return srv.Run(ctx)
}

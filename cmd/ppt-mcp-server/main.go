package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mark3labs/mcp-go/server"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/powerpoint"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/sandbox"
)

type options struct {
	OutputDir string `long:"output-dir" env:"PPT_OUTPUT_DIR" default:"." description:"directory presentations are saved under"`
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"INFO" description:"DEBUG, INFO, WARN or ERROR"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	logger.SetLevel(opts.LogLevel)

	sb, err := sandbox.NewSandbox(opts.OutputDir)
	if err != nil {
		logger.Error("Failed to initialize output directory", err, "output_dir", opts.OutputDir)
		os.Exit(1)
	}
	logger.Info("Starting PowerPoint tool server", "output_dir", sb.Root)

	s := server.NewMCPServer(
		"PowerPoint Automation",
		"1.0.0",
		server.WithLogging(),
	)
	powerpoint.NewTools(sb).Register(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

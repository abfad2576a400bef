package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mark3labs/mcp-go/server"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/gmail"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
)

type options struct {
	CredsFilePath string `long:"creds-file-path" env:"GMAIL_CREDS_PATH" required:"true" description:"OAuth client credentials JSON"`
	TokenPath     string `long:"token-path" env:"GMAIL_TOKEN_PATH" required:"true" description:"stored OAuth token JSON"`
	LogLevel      string `long:"log-level" env:"LOG_LEVEL" default:"INFO" description:"DEBUG, INFO, WARN or ERROR"`
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

	svc, err := gmail.NewService(context.Background(), opts.CredsFilePath, opts.TokenPath)
	if err != nil {
		logger.Error("Failed to initialize Gmail", err, "creds", opts.CredsFilePath, "token", opts.TokenPath)
		os.Exit(1)
	}
	logger.Info("Starting Gmail tool server")

	s := server.NewMCPServer(
		"gmail",
		"1.0.0",
		server.WithLogging(),
	)
	gmail.NewTools(svc).Register(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/config"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/mcp"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/registry"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

const startupTimeout = 30 * time.Second

// toolServer is a connected MCP server as seen by the agent.
type toolServer interface {
	tools.Session
	Name() string
	Initialize(ctx context.Context) error
	Descriptors(ctx context.Context) ([]tools.Descriptor, error)
	Close() error
}

type launchFunc func(cfg config.ServerConfig) (toolServer, error)

func launchProcess(cfg config.ServerConfig) (toolServer, error) {
	c, err := mcp.Launch(cfg.Name, mcp.Command{
		Path: cfg.Command,
		Args: cfg.Args,
		Dir:  cfg.Dir,
		Env:  cfg.Environ(),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// toolset is every started server plus the merged catalog.
type toolset struct {
	servers  []toolServer
	registry *registry.Registry
}

// bootstrap starts and initializes all servers concurrently. Catalogs are
// registered in configuration order once every server is ready, so name
// shadowing does not depend on which server answered first.
func bootstrap(ctx context.Context, servers []config.ServerConfig, launch launchFunc) (*toolset, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	started := make([]toolServer, len(servers))
	catalogs := make([][]tools.Descriptor, len(servers))

	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range servers {
		g.Go(func() error {
			logger.Info("Starting tool server", "server", sc.Name, "command", sc.Command)
			srv, err := launch(sc)
			if err != nil {
				return fmt.Errorf("start %s: %w", sc.Name, err)
			}
			started[i] = srv

			if err := srv.Initialize(gctx); err != nil {
				return fmt.Errorf("initialize %s: %w", sc.Name, err)
			}
			descriptors, err := srv.Descriptors(gctx)
			if err != nil {
				return fmt.Errorf("list tools of %s: %w", sc.Name, err)
			}
			catalogs[i] = descriptors

			names := make([]string, len(descriptors))
			for j, d := range descriptors {
				names[j] = d.Name
			}
			logger.Info("Tool server ready", "server", sc.Name, "tools", names)
			return nil
		})
	}

	ts := &toolset{registry: registry.New()}
	err := g.Wait()
	for _, srv := range started {
		if srv != nil {
			ts.servers = append(ts.servers, srv)
		}
	}
	if err != nil {
		if cerr := ts.Close(); cerr != nil {
			logger.Warn("Failed to stop tool servers", "error", cerr)
		}
		return nil, err
	}

	for i, srv := range started {
		ts.registry.Register(srv, catalogs[i])
	}
	return ts, nil
}

// Close stops every started server.
func (ts *toolset) Close() error {
	var errs []error
	for _, srv := range ts.servers {
		if err := srv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", srv.Name(), err))
		}
	}
	return errors.Join(errs...)
}

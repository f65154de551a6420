package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/chatmux/internal/console"
	"github.com/Tyrowin/chatmux/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chatmux", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	httpAddr := fs.String("http", "", "address for health, metrics and WebSocket endpoints")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: chatmux [flags] [port]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath, fs.Arg(0), *httpAddr, *logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	srv := server.New(cfg, server.WithLogger(logger))
	if err := srv.Listen(); err != nil {
		logger.Error("failed to start server", "error", err)
		return 1
	}
	fmt.Fprintf(stdout, "Server started on %s\n", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Serve)
	g.Go(srv.ServeWeb)
	g.Go(func() error {
		return console.Run(ctx, stdin, stdout, srv)
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown(cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, console.ErrClose) {
		logger.Error("server stopped with error", "error", err)
		return 1
	}
	return 0
}

// loadConfig layers the config file, the environment and the command line,
// in that order of precedence from lowest to highest.
func loadConfig(path, port, httpAddr, logLevel string) (server.Config, error) {
	cfg := server.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = server.LoadConfigFile(path); err != nil {
			return cfg, err
		}
	}
	server.ApplyEnv(&cfg)

	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return cfg, fmt.Errorf("invalid port %q", port)
		}
		cfg.Addr = net.JoinHostPort("", strconv.FormatUint(n, 10))
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

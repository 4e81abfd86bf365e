package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/telemetrydev/newrelic-mcp/internal"
	"github.com/telemetrydev/newrelic-mcp/internal/config"
)

func main() {
	var (
		transport  = flag.String("transport", "stdio", "transport mode: stdio or sse")
		apiKey     = flag.String("api-key", "", "New Relic API key (overrides NEW_RELIC_API_KEY)")
		accountID  = flag.String("account-id", "", "New Relic account ID (overrides NEW_RELIC_ACCOUNT_ID)")
		region     = flag.String("region", "", "New Relic region: US or EU")
		timeout    = flag.Int("timeout", 0, "request timeout in seconds")
		retries    = flag.Int("retry-attempts", 0, "retries for failed read queries")
		configPath = flag.String("config", "", "path to a JSON config file")
		host       = flag.String("host", "127.0.0.1", "host for SSE mode")
		port       = flag.Int("port", 8080, "port for SSE mode")
		endpoint   = flag.String("endpoint", "/mcp", "HTTP endpoint path for SSE mode")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("newrelic-mcp " + internal.Version)
		return
	}

	cli := config.Settings{
		APIKey:    *apiKey,
		AccountID: *accountID,
		Region:    *region,
		Timeout:   *timeout,
	}
	if flagPassed("retry-attempts") {
		cli = cli.WithRetryAttempts(*retries)
	}

	settings, err := config.Resolve(cli, *configPath)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := buildLogger(*logLevel)
	logger.Info("starting newrelic-mcp",
		"version", internal.Version,
		"account_id", settings.AccountID,
		"region", settings.Region,
		"api_key", settings.MaskedAPIKey())

	server := internal.BuildServer(settings, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(*transport)) {
	case "stdio":
		if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && err != context.Canceled {
			log.Fatalf("stdio server failed: %v", err)
		}
	case "sse":
		h := mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server { return server }, nil)
		mux := http.NewServeMux()
		mux.Handle(*endpoint, h)

		addr := fmt.Sprintf("%s:%d", *host, *port)
		httpServer := &http.Server{Addr: addr, Handler: mux}

		go func() {
			<-ctx.Done()
			_ = httpServer.Shutdown(context.Background())
		}()

		logger.Info("SSE server listening", "addr", addr, "endpoint", *endpoint)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("sse server failed: %v", err)
		}
	default:
		log.Fatalf("unsupported transport %q, expected stdio or sse", *transport)
	}
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

func buildLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

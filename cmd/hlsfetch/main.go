package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"hlsfetch/internal/api"
	"hlsfetch/internal/config"
	"hlsfetch/internal/fetch"
	"hlsfetch/internal/logger"
	"hlsfetch/internal/publish"
	"hlsfetch/internal/session"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// 1. Parse command-line arguments
	showVersion := flag.Bool("v", false, "Print the version and exit")
	configFile := flag.String("c", "", "Path to an optional YAML config file")
	logLevel := flag.String("L", "", "Log level (error, warn, info, debug)")
	concurrency := flag.Int("n", 0, "Maximum concurrent segment downloads")
	statusAddr := flag.String("s", "", "Serve /status and /metrics on this address")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <playlist-url> <output-name>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println("hlsfetch", version)
		return
	}
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	playlistURL, outputName := flag.Arg(0), flag.Arg(1)
	if err := checkPlaylistURL(playlistURL); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// 2. Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *statusAddr != "" {
		cfg.StatusAddr = *statusAddr
	}

	// 3. Initialize logger
	log := logger.NewLogger(cfg.LogLevel)

	// 4. Initialize the session
	client := fetch.NewClient(log, fetch.ClientOptions{
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	sess := session.New(log, session.Options{
		WorkRoot:    cfg.WorkRoot,
		Concurrency: cfg.Concurrency,
		Retry: fetch.RetryPolicy{
			RequestTimeout: cfg.SegmentTimeout,
			Delay:          cfg.RetryDelay,
			MaxAttempts:    cfg.MaxAttempts,
		},
		Fetcher: client,
	})

	// 5. Stop on SIGINT/SIGTERM; the working directory stays for a later resume.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if cfg.StatusAddr != "" {
		server = &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           api.New(sess),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infof("Status server starting on %s", cfg.StatusAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Could not listen on %s: %v", cfg.StatusAddr, err)
			}
		}()
	}

	// 6. Download
	log.Infof("Downloading %s into %s.ts", playlistURL, outputName)
	runErr := sess.Run(ctx, playlistURL, outputName)

	if runErr == nil && cfg.Publish.Enabled() {
		runErr = upload(ctx, cfg.Publish, log, sess.Output())
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Status server shutdown failed: %v", err)
		}
		cancel()
	}

	if runErr != nil {
		log.Errorf("Download failed: %v", runErr)
		stop()
		os.Exit(1)
	}
}

func upload(ctx context.Context, cfg config.Publish, log logger.Logger, output string) error {
	pub, err := publish.New(cfg, log)
	if err != nil {
		return err
	}
	_, err = pub.Upload(ctx, output)
	return err
}

// checkPlaylistURL accepts only http and https playlist URLs.
func checkPlaylistURL(raw string) error {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return fmt.Errorf("playlist url must start with http:// or https://, got %q", raw)
	}
	return nil
}

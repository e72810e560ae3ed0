// Command uyap-extractor runs one portal job from the command line without
// the HTTP server: it opens a browser, waits for the e-signature login and
// then lists cases, extracts them, or queries the given case numbers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JustJay7/uyap-extractor/internal/app"
	"github.com/JustJay7/uyap-extractor/internal/config"
	"github.com/JustJay7/uyap-extractor/internal/session"
	"github.com/JustJay7/uyap-extractor/internal/sorgu"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

func main() {
	var (
		list    bool
		extract bool
		cases   string
		types   string
	)
	flag.BoolVar(&list, "list", false, "List the cases in the portal's case list")
	flag.BoolVar(&extract, "extract", false, "Extract every listed case with its details")
	flag.StringVar(&cases, "cases", "", "Comma-separated case numbers to query, e.g. 2024/141,2024/142")
	flag.StringVar(&types, "types", "", "Comma-separated query types; empty runs all")
	flag.Parse()

	if !list && !extract && cases == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.LogLevel, "text")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, list, extract, splitList(cases), splitList(types)); err != nil {
		log.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, list, extract bool, cases, types []string) error {
	a, err := app.New(cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	enabled := make(map[sorgu.Type]bool)
	for _, code := range types {
		t, err := sorgu.ParseType(code)
		if err != nil {
			return err
		}
		enabled[t] = true
	}
	if len(enabled) == 0 {
		for _, t := range a.Registry.Types() {
			enabled[t] = true
		}
	}

	h, err := a.Sessions.Acquire(ctx, session.DefaultKey)
	if err != nil {
		return err
	}
	log.Info("Waiting for e-signature login", "url", cfg.LoginURL, "timeout", cfg.LoginTimeout)
	if err := session.Login(ctx, h, cfg.LoginURL, session.DefaultLocators().Menu, cfg.LoginTimeout); err != nil {
		return err
	}

	var out any
	switch {
	case list:
		out, err = a.Extractor.SearchFiles(ctx, h.Controller())
	case extract:
		out, err = a.Extractor.ExtractData(ctx, h.Controller())
	default:
		reports, failures := a.Dispatcher.PerformBatch(ctx, h, cases, enabled)
		for cn, ferr := range failures {
			log.Error("Case query failed", "case", cn, "error", ferr)
		}
		out = reports
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

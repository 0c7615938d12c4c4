// Command docforge runs a single prompt through the request-execution
// engine. The documentation workflow consumes the engine as a library;
// this entry point exists for configuration checks and ad-hoc prompts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docforge-ai/docforge/config"
	"github.com/docforge-ai/docforge/llm"
	"github.com/docforge-ai/docforge/llm/backends"
	"github.com/docforge-ai/docforge/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", config.DefaultPath(), "Path to config file")
		profile    = flag.String("profile", "default", "Primary profile to run against")
		fallbacks  = flag.String("fallbacks", "", "Comma-separated fallback profiles")
		noCache    = flag.Bool("no-cache", false, "Bypass the response cache")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}
	if flag.NArg() < 1 {
		return fmt.Errorf("usage: docforge [flags] <prompt>")
	}
	prompt := strings.Join(flag.Args(), " ")

	log, err := logger.Init(*logFile, *pretty)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	var cache llm.Cache
	if cfg.Globals.CacheDir != "" {
		cache, err = llm.NewDiskCache(cfg.Globals.CacheDir, log)
		if err != nil {
			return err
		}
	} else {
		cache = llm.NewMemoryCache()
	}

	service, err := llm.NewService(cfg, backends.Factory, cache, log)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	spec := llm.PromptSpec{
		Request: llm.NewRequest([]llm.Message{llm.NewUserMessage(prompt)}),
		Profile: *profile,
	}
	if *fallbacks != "" {
		spec.Fallbacks = strings.Split(*fallbacks, ",")
	}

	resp, err := service.Prompt(ctx, spec, !*noCache)
	if err != nil {
		return err
	}
	if resp.Err != nil {
		return resp.Err
	}

	fmt.Println(resp.Message.Text)
	return nil
}

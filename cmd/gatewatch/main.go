package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/gatewatch/internal/config"
	"github.com/danmuck/gatewatch/internal/logging"
	"github.com/danmuck/gatewatch/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "TOML config path (defaults apply when empty)")
	envPath := flag.String("env", ".env", "dotenv file loaded before GATEWATCH_* overrides")
	replay := flag.String("replay", "", "replay a captured stream file instead of dialing the gateway")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fail(err)
	}
	logging.ConfigureRuntime()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	if *replay != "" {
		cfg.Gateway.ReplayPath = *replay
	}

	svc, err := watch.NewService(cfg)
	if err != nil {
		fail(err)
	}
	if err := svc.Run(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "gatewatch: %v\n", err)
	os.Exit(1)
}

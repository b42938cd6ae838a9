// Command server runs claudegate, an OpenAI-compatible front end for the
// Anthropic Messages API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/claudegate/claudegate/internal/api"
	claudeauth "github.com/claudegate/claudegate/internal/auth/claude"
	"github.com/claudegate/claudegate/internal/config"
	"github.com/claudegate/claudegate/internal/logging"
	"github.com/claudegate/claudegate/internal/usage"
)

func main() {
	var (
		configPath  string
		claudeLogin bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	flag.BoolVar(&claudeLogin, "claude-login", false, "run the Claude OAuth login flow and exit")
	flag.Parse()

	// A .env next to the binary can carry ANTHROPIC_API_KEY.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	broadcaster := logging.Setup(cfg)

	if claudeLogin {
		if err = runClaudeLogin(cfg); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		return
	}

	server := api.NewServer(cfg, usage.NewTracker(), broadcaster)

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		log.Warnf("config hot reload disabled: %v", err)
	} else {
		watcher.OnReload(server.Reload)
		if err = watcher.Start(); err != nil {
			log.Warnf("config hot reload disabled: %v", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	if err = server.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runClaudeLogin(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.AuthDir, 0o700); err != nil {
		return fmt.Errorf("failed to create auth directory: %w", err)
	}
	tokenPath, err := claudeauth.NewClaudeAuth(cfg.ProxyURL).Login(context.Background(), cfg.AuthDir)
	if err != nil {
		return err
	}
	fmt.Printf("Credentials saved to %s\n", tokenPath)
	return nil
}

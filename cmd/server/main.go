// Command server runs the sharebin HTTP server: the snippet, upload and
// account endpoints the sharebin client talks to, plus a small HTML shell
// for links opened in a browser.
//
// Configuration comes from the environment (see internal/config); a .env
// file in the working directory is read first if present.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/sharebin/internal/config"
	"github.com/sakif/sharebin/internal/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)

	// Outside production a missing secret gets a throwaway one, so tokens
	// stop working across restarts but the server still comes up.
	if cfg.JWTSecret.Value() == "" && !cfg.Production() {
		cfg.JWTSecret = config.NewSecret(randomSecret())
		logger.Warn("JWT_SECRET not set, using a random secret for this run")
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

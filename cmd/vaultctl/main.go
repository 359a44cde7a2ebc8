package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"vaultx/internal/config"
	"vaultx/internal/crypto"
	"vaultx/internal/remote"
	"vaultx/internal/session"
	"vaultx/internal/store"
	"vaultx/internal/vault"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog"
)

func main() {
	// Wipe locked key memory on Ctrl-C and on normal exit.
	memguard.CatchInterrupt()
	defer memguard.Purge()

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		return
	}

	logFile, err := openLog(cfg.DataDir)
	if err != nil {
		fmt.Println("Error opening log:", err)
		return
	}
	defer logFile.Close()
	logger := config.NewLogger(cfg.Logging, cfg.Env, logFile)

	app, err := newApp(cfg)
	if err != nil {
		fmt.Println("Error starting vault:", err)
		return
	}
	app.engine, err = buildEngine(cfg, app.identity, logger)
	if err != nil {
		fmt.Println("Error starting vault:", err)
		return
	}

	if _, err := app.engine.Resume(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("session resume failed")
	}

	app.run()
}

type app struct {
	cfg      *config.ClientConfig
	identity *remote.IdentityClient
	engine   *vault.Engine
}

func newApp(cfg *config.ClientConfig) (*app, error) {
	identity, err := remote.NewIdentityClient(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, identity: identity}, nil
}

func buildEngine(cfg *config.ClientConfig, identity *remote.IdentityClient, logger zerolog.Logger) (*vault.Engine, error) {
	secure, err := store.NewFileSecureStore(filepath.Join(cfg.DataDir, "secure"))
	if err != nil {
		return nil, err
	}
	metadata, err := store.NewFileMetadataStore(filepath.Join(cfg.DataDir, "metadata"))
	if err != nil {
		return nil, err
	}
	blobs, err := remote.NewBlobClient(cfg.ServerURL, identity, remote.WithMaxBlobSize(cfg.MaxBlobSize))
	if err != nil {
		return nil, err
	}

	sess, err := session.New(secure, session.Config{
		KDF:         crypto.KDFParams{Iterations: cfg.KDFIterations},
		IdleTimeout: cfg.IdleTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	vcfg := vault.DefaultConfig()
	vcfg.ShardCount = cfg.ShardCount
	vcfg.MaxAttempts = cfg.MaxAttempts
	vcfg.CooldownPeriod = cfg.CooldownPeriod
	vcfg.Retry.MaxRetries = cfg.RetryMax

	return vault.NewEngine(sess, vault.Collaborators{
		Identity: identity,
		Blobs:    blobs,
		Metadata: metadata,
	}, vcfg, logger)
}

// openLog keeps diagnostics out of the interactive terminal.
func openLog(dataDir string) (*os.File, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dataDir, "vaultctl.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

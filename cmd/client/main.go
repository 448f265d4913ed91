// Package main is the interactive client of the equipment analytics API.
package main

import (
	"cmp"
	"fmt"
	"os"

	"github.com/atinyakov/chemora/internal/client/api"
	"github.com/atinyakov/chemora/internal/client/app"
	"github.com/atinyakov/chemora/internal/client/prompt"
	"github.com/atinyakov/chemora/internal/client/storage"
	"github.com/atinyakov/chemora/internal/config"
	"github.com/atinyakov/chemora/internal/logger"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Chemora client %s (%s)\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	zapLogger := log.Log

	if err := options.Validate(); err != nil {
		zapLogger.Fatal("invalid configuration", zap.Error(err))
	}

	kv, err := storage.Open(options.StorageBackend, options.StorageDir)
	if err != nil {
		zapLogger.Fatal("cannot open credential store", zap.Error(err))
	}
	codec, err := storage.NewCodecFromSecret([]byte(options.StorageSecret))
	if err != nil {
		zapLogger.Fatal("cannot derive storage keys", zap.Error(err))
	}
	store := storage.NewCredentialStore(kv, codec, zapLogger.Named("storage"))
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Error("failed to close credential store", zap.Error(err))
		}
	}()

	hc, err := api.NewHTTPClient(options.Timeout, options.CAFile)
	if err != nil {
		zapLogger.Fatal("cannot build http client", zap.Error(err))
	}
	client := api.New(options.APIURL, hc, zapLogger.Named("api"))

	a := app.New(client, store, zapLogger)
	sh := newShell(a, prompt.New(os.Stdin, os.Stdout), os.Stdout)
	sh.run()
}

// Command bffserver runs the BFF reactor: one SO_REUSEPORT-bound
// listener and event loop per worker, serving the fixed JSON route set
// over HTTP/1.1.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/Happensit/bff/app"
	"github.com/Happensit/bff/config"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	watcher, err := config.WatchRestartRequired(cfg.EnvFile, func(path string) {
		log.Warn().Str("file", path).Msg("config file changed on disk; restart required to apply")
	})
	if err == nil {
		defer watcher.Close()
	}

	a := app.New(cfg, log, nil)
	if err := a.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("bff exited with error")
	}
}

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/alecthomas/kong"

	"example.com/tryserve/internal/config"
	"example.com/tryserve/internal/logger"
	"example.com/tryserve/internal/server"
)

var cli struct {
	Config string `help:"Path to the configuration file (TOML, YAML or JSON)." short:"c"`
	Port   int    `help:"Override the configured listen port."`
	Dir    string `help:"Override the configured static files directory."`
	CORS   string `name:"cors" help:"Override the configured CORS match (\"*\" or an origin pattern)."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("tryserve"),
		kong.Description("Static file server that falls through to an application handler."),
	)

	var cfg *config.Config
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if cli.Port != 0 {
		cfg.Server.Port = cli.Port
	}
	if cli.Dir != "" {
		cfg.Static.FilesDir = cli.Dir
	}
	if cli.CORS != "" {
		cfg.Server.CORSMatch = cli.CORS
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	lg, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	// The standalone binary answers unresolved paths with a plain 404;
	// embedders supply their own application handler here.
	srv, err := server.New(cfg, lg, http.NotFoundHandler(),
		server.WithBeforeClose(func() {
			lg.Info("shutting down", nil)
		}),
	)
	if err != nil {
		lg.Error("failed to initialize server", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		lg.Error("server exited with an error", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}
	lg.Info("server stopped", nil)
}

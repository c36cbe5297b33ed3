// Package main is the entry point for the Stellar MusicCast controller.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-musiccast/internal/config"
	"github.com/edumarques81/stellar-musiccast/internal/domain/browser"
	"github.com/edumarques81/stellar-musiccast/internal/domain/capability"
	"github.com/edumarques81/stellar-musiccast/internal/domain/control"
	"github.com/edumarques81/stellar-musiccast/internal/domain/registry"
	"github.com/edumarques81/stellar-musiccast/internal/infra/discovery"
	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
	"github.com/edumarques81/stellar-musiccast/internal/infra/userdata"
	"github.com/edumarques81/stellar-musiccast/internal/transport/socketio"
	"github.com/edumarques81/stellar-musiccast/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file (optional)")
	port := flag.Int("port", 3001, "HTTP server port")
	dataDir := flag.String("data-dir", "./data", "Directory for persisted user data")
	staticDir := flag.String("static", "", "Directory to serve static files from (optional)")
	discoveryTimeout := flag.Duration("discovery-timeout", 3*time.Second, "How long each discovery method listens")
	noDiscovery := flag.Bool("no-discovery", false, "Skip network discovery at startup")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "data-dir":
			cfg.Storage.DataDir = *dataDir
		case "static":
			cfg.Server.StaticDir = *staticDir
		case "discovery-timeout":
			cfg.Discovery.Timeout = max(1, int(discoveryTimeout.Round(time.Second)/time.Second))
		case "no-discovery":
			cfg.Discovery.OnStartup = !*noDiscovery
		case "debug":
			if *debug {
				cfg.Logging.Level = "debug"
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  MusicCast Control Plane")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Int("port", cfg.Server.Port).
		Str("data_dir", cfg.Storage.DataDir).
		Bool("ssdp", cfg.Discovery.SSDP).
		Bool("mdns", cfg.Discovery.MDNS).
		Dur("discovery_timeout", cfg.GetDiscoveryTimeout()).
		Int("window_size", cfg.Browser.WindowSize).
		Str("level", level.String()).
		Msg("Configuration")

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Storage.DataDir).Msg("Failed to create data directory")
	}
	store := userdata.NewStore(cfg.DatabasePath())
	if err := store.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open user data store")
	}
	defer store.Close()

	client := musiccast.NewClient(
		musiccast.WithTimeout(cfg.GetTransportTimeout()),
		musiccast.WithRateLimit(cfg.Transport.RateLimit),
		musiccast.WithLanguage(cfg.Transport.Language),
		musiccast.WithUserAgent(versionInfo.UserAgent()),
	)
	cache := capability.New(client, capability.WithConcurrency(cfg.Transport.Concurrency))

	reg, err := registry.New(newDiscoverer(cfg), store, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load manual devices")
	}
	log.Info().Strs("manual", reg.ManualAddresses()).Msg("Manual devices loaded")

	socketServer, err := socketio.NewServer(socketio.Deps{
		Registry:       reg,
		Cache:          cache,
		Browsers:       browser.NewManager(client, cfg.Browser.WindowSize, cfg.Browser.Zone),
		Control:        control.NewService(client),
		Settings:       store,
		MaxConnections: cfg.Server.MaxConnections,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if cfg.Discovery.OnStartup {
			reg.RefreshDiscovery(ctx)
		}
		reg.LoadDeviceInfo(ctx)
	}()

	mux := newMux(socketServer, reg, socketServer.ClientCount, cfg.Server.StaticDir)
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.Addr()).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

// newDiscoverer combines the enabled discovery methods. It returns nil when none is enabled.
func newDiscoverer(cfg *config.Config) discovery.Discoverer {
	var ds []discovery.Discoverer
	if cfg.Discovery.SSDP {
		opts := []discovery.SSDPOption{discovery.WithSearchWait(cfg.GetDiscoveryTimeout())}
		if cfg.Discovery.Interface != "" {
			addr, err := discovery.InterfaceLocalAddr(cfg.Discovery.Interface)
			if err != nil {
				log.Warn().Err(err).Str("interface", cfg.Discovery.Interface).Msg("SSDP will search on all interfaces")
			} else {
				opts = append(opts, discovery.WithLocalAddr(addr))
			}
		}
		ds = append(ds, discovery.NewSSDPDiscoverer(opts...))
	}
	if cfg.Discovery.MDNS {
		ds = append(ds, discovery.NewMDNSDiscoverer(discovery.MDNSConfig{
			Service:   cfg.Discovery.Service,
			Domain:    cfg.Discovery.Domain,
			Timeout:   cfg.GetDiscoveryTimeout(),
			Interface: cfg.Discovery.Interface,
		}))
	}
	if len(ds) == 0 {
		return nil
	}
	return discovery.NewMultiDiscoverer(ds...)
}

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Bluespess/bluespess"
	"github.com/Bluespess/bluespess/logging"
)

func main() {
	configPath := flag.String("config", "", "path to server config YAML")
	flag.Parse()

	cfg := bluespess.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := bluespess.LoadServerConfig(*configPath)
		if err != nil {
			logging.New(cfg.Log).WithError(err).Fatal("config load failed")
		}
		cfg = loaded
	}
	logger := logging.New(cfg.Log)

	world := bluespess.NewWorld(logger)
	world.SetNetTickDelay(cfg.NetTickDelay())

	if cfg.TemplatesPath != "" {
		if err := world.LoadTemplatesYAML(cfg.TemplatesPath); err != nil {
			logger.WithError(err).Fatal("template load failed")
		}
	}
	if cfg.MapPath != "" {
		m, err := bluespess.LoadMapYAML(cfg.MapPath)
		if err != nil {
			logger.WithError(err).Fatal("map load failed")
		}
		if err := world.InstanceMap(m); err != nil {
			logger.WithError(err).Fatal("map instancing failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go world.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", world.HandleConnection)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	logger.WithField("addr", cfg.Addr).Info("listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("server failed")
	}
}

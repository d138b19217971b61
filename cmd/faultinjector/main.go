// Command faultinjector exposes the scripted fault scenarios over HTTP,
// per spec §4.4 and §6.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vectorlane/cansil"
)

func main() {
	canChannel := flag.String("can-channel", "", "CAN interface name (overrides CAN_CHANNEL)")
	port := flag.Int("port", 0, "HTTP listen port (overrides FAULT_PORT)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := cansil.LoadConfig()
	if *canChannel != "" {
		cfg.CANChannel = *canChannel
	}
	if *port != 0 {
		cfg.FaultPort = *port
	}

	var broker *cansil.Broker
	if cfg.MQTTHost != "" {
		b, err := cansil.NewBroker(cfg.MQTTHost, cfg.MQTTPort, "taktflow", "cansil-faultinjector")
		if err != nil {
			log.WithError(err).Warn("broker connection failed, continuing without telemetry")
		} else {
			broker = b
			defer broker.Close()
		}
	}

	dial := func() (cansil.Bus, error) {
		return cansil.NewSocketCANBus(cfg.CANChannel)
	}

	inj := cansil.NewInjector(dial, broker, cfg.LockDuration())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if broker != nil {
		go inj.WatchLock(broker, ctx.Done())
	}

	api := cansil.NewFaultAPI(inj)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.FaultPort),
		Handler: api.Router(),
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown signal received")
		cancel()
		_ = srv.Close()
	}()

	log.WithField("port", cfg.FaultPort).Info("fault injector listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("fault injector HTTP server exited with error")
	}
}

// Command plant runs the fixed-rate physics simulator: it decodes
// actuator commands off the CAN bus, advances the vehicle model, and
// re-encodes sensor feedback, per spec §4.3.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vectorlane/cansil"
)

func main() {
	canChannel := flag.String("can-channel", "", "CAN interface name (overrides CAN_CHANNEL)")
	profilePath := flag.String("profile", "", "path to an INI actuator tuning profile")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := cansil.LoadConfig()
	if *canChannel != "" {
		cfg.CANChannel = *canChannel
	}

	profile, err := cansil.LoadProfile(*profilePath)
	if err != nil {
		log.WithError(err).Fatal("failed to load actuator profile")
	}

	var broker *cansil.Broker
	if cfg.MQTTHost != "" {
		broker, err = cansil.NewBroker(cfg.MQTTHost, cfg.MQTTPort, "taktflow", "cansil-plant")
		if err != nil {
			log.WithError(err).Warn("broker connection failed, continuing without telemetry")
			broker = nil
		} else {
			defer broker.Close()
		}
	}

	bus, err := cansil.NewSocketCANBus(cfg.CANChannel)
	if err != nil {
		log.WithError(err).WithField("channel", cfg.CANChannel).Fatal("failed to open CAN interface")
	}

	p := cansil.NewPlant(bus, broker)
	profile.ApplyMotor(p.Motor)
	profile.ApplySteering(p.Steering)
	profile.ApplyBrake(p.Brake)
	profile.ApplyBattery(p.Battery)
	profile.ApplyLidar(p.Lidar)

	if err := p.Connect(); err != nil {
		log.WithError(err).Fatal("failed to connect CAN bus")
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := p.Run(ctx); err != nil {
		log.WithError(err).Fatal("plant run loop exited with error")
	}
}

// Command verdictchecker executes scenario YAML files against the SIL
// platform and evaluates pass/fail verdicts, per spec §4.5.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vectorlane/cansil"
)

// scenarioFlags collects a repeatable --scenario flag into a slice, the
// flag package's documented pattern for flag.Value-backed repeated
// arguments.
type scenarioFlags []string

func (s *scenarioFlags) String() string { return strings.Join(*s, ",") }
func (s *scenarioFlags) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var scenarios scenarioFlags
	flag.Var(&scenarios, "scenario", "path to a scenario YAML file (repeatable)")
	resultsDir := flag.String("results-dir", "./results", "directory to write result files")
	timeoutSec := flag.Int("timeout", 60, "default per-scenario timeout in seconds")
	faultAPIURL := flag.String("fault-api-url", "http://localhost:8091", "fault injection API base URL")
	mqttHost := flag.String("mqtt-host", "localhost", "MQTT broker host")
	mqttPort := flag.Int("mqtt-port", 1883, "MQTT broker port")
	canChannel := flag.String("can-channel", "vcan0", "CAN bus channel")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if len(scenarios) == 0 {
		log.Error("at least one --scenario is required")
		os.Exit(1)
	}
	if err := os.MkdirAll(*resultsDir, 0755); err != nil {
		log.WithError(err).Fatal("failed to create results directory")
	}

	for _, sp := range scenarios {
		if _, err := os.Stat(sp); err != nil {
			log.WithField("path", sp).Error("scenario file not found")
			os.Exit(1)
		}
	}

	log.Info("=== CAN SIL Verdict Checker ===")
	log.WithField("count", len(scenarios)).Info("scenarios")
	log.WithField("dir", *resultsDir).Info("results dir")
	log.WithField("url", *faultAPIURL).Info("fault API")
	log.WithFields(log.Fields{"host": *mqttHost, "port": *mqttPort}).Info("MQTT")
	log.WithField("channel", *canChannel).Info("CAN channel")

	bus, err := cansil.NewSocketCANBus(*canChannel)
	if err != nil {
		log.WithError(err).WithField("channel", *canChannel).Error("cannot open CAN channel")
		log.Error("ensure vcan0 is up: modprobe vcan && ip link add vcan0 type vcan && ip link set vcan0 up")
		os.Exit(1)
	}
	if err := bus.Connect(); err != nil {
		log.WithError(err).Error("cannot connect CAN bus")
		os.Exit(1)
	}
	defer bus.Close()

	broker, err := cansil.NewBroker(*mqttHost, *mqttPort, "taktflow", "cansil-verdictchecker")
	if err != nil {
		log.WithError(err).Fatal("cannot connect to MQTT broker")
	}
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	canMon := cansil.NewCANMonitor(bus)
	canMon.Start(ctx)

	brokerMon := cansil.NewBrokerMonitor(broker)
	if err := brokerMon.Start("taktflow/#"); err != nil {
		log.WithError(err).Fatal("cannot subscribe broker monitor")
	}

	time.Sleep(time.Second)

	client := cansil.NewHTTPFaultClient(*faultAPIURL, "verdictchecker")
	executor := cansil.NewScenarioExecutor(canMon, brokerMon, client)
	executor.DefaultTimeout = time.Duration(*timeoutSec) * time.Second

	var results []cansil.ScenarioResult
	for _, sp := range scenarios {
		s, err := cansil.LoadScenario(sp)
		if err != nil {
			log.WithError(err).WithField("path", sp).Error("failed to parse scenario")
			results = append(results, cansil.ScenarioResult{
				ScenarioID:   strings.TrimSuffix(filepath.Base(sp), filepath.Ext(sp)),
				ScenarioName: filepath.Base(sp),
				ASPICE:       "SWE.5",
				Error:        fmt.Sprintf("failed to parse scenario: %v", err),
			})
			continue
		}
		results = append(results, executor.Execute(s))
	}

	junitPath := filepath.Join(*resultsDir, "sil_results.xml")
	summaryPath := filepath.Join(*resultsDir, "summary.txt")
	if err := cansil.WriteJUnitReport(results, junitPath); err != nil {
		log.WithError(err).Error("failed to write JUnit report")
	}
	if err := cansil.WriteSummaryReport(results, summaryPath); err != nil {
		log.WithError(err).Error("failed to write summary report")
	}

	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	log.WithFields(log.Fields{"total": len(results), "failed": failed}).Info("run complete")
	if failed > 0 {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-roomrelease/internal/bridgesim"
	"github.com/saaga0h/jeeves-roomrelease/pkg/config"
	"github.com/saaga0h/jeeves-roomrelease/pkg/mqtt"
)

func main() {
	// MQTT settings come from the environment, flags below override them
	cfg := config.NewConfig()
	cfg.ServiceName = "room-bridge-sim"
	cfg.MQTTClientID = "room-bridge-sim"
	cfg.LoadFromEnv()

	fs := pflag.NewFlagSet("room-bridge-sim", pflag.ExitOnError)
	scenarioPath := fs.String("scenario", "scenarios/empty-room.yaml", "Scenario YAML file")
	speed := fs.Float64("speed", 1, "Playback speed multiplier")
	linger := fs.Duration("linger", 15*time.Minute, "Keep answering requests this long after the last step")
	verbose := fs.BoolP("verbose", "v", false, "Debug logging")
	fs.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&cfg.MQTTPort, "mqtt-port", cfg.MQTTPort, "MQTT broker port")
	fs.StringVar(&cfg.MQTTUser, "mqtt-user", cfg.MQTTUser, "MQTT username")
	fs.StringVar(&cfg.MQTTPassword, "mqtt-password", cfg.MQTTPassword, "MQTT password")
	_ = fs.Parse(os.Args[1:])

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	scenario, err := bridgesim.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scenario error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting room bridge simulator",
		"scenario", scenario.Name,
		"room", scenario.Room,
		"steps", len(scenario.Steps),
		"speed", *speed,
		"mqtt_broker", cfg.MQTTAddress())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mqttClient := mqtt.NewClient(cfg, logger)
	if err := mqttClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to MQTT", "error", err)
		os.Exit(1)
	}
	defer mqttClient.Disconnect()

	bridge := bridgesim.NewBridge(mqttClient, scenario, logger)
	if err := bridge.Subscribe(); err != nil {
		logger.Error("Failed to subscribe to requests", "error", err)
		os.Exit(1)
	}

	player := bridgesim.NewPlayer(bridge, *speed, logger)
	if err := player.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Scenario failed", "error", err)
		os.Exit(1)
	}

	if ctx.Err() == nil {
		logger.Info("Timeline finished, still answering requests", "linger", *linger)
		select {
		case <-ctx.Done():
		case <-time.After(*linger):
		}
	}

	logger.Info("Simulation complete",
		"commands", len(bridge.Commands()),
		"declined", bridge.Declined())
}

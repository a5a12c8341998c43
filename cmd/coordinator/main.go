// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command coordinator starts the AleutianSwarm coordination HTTP server.
//
// This is the main entry point for the containerized coordinator service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - COORDINATOR_PORT: HTTP server port (default: 12230)
//   - REDIS_ADDR: Redis host:port for lock and graph state (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password (optional)
//   - REDIS_DB: Redis logical database (default: 0)
//   - GITHUB_TOKEN: GitHub API token for branch head and tree reads (optional)
//   - GITHUB_API_URL: GitHub API base URL for Enterprise deployments (optional)
//   - SWEEP_SECRET: bearer token guarding the admin cleanup endpoint (optional)
//   - SWEEP_INTERVAL_SECONDS: background sweep cadence (default: 60)
//   - SWEEP_ENABLED: run the background stale-lock sweeper (default: true)
//   - ACTIVITY_CAPACITY: in-memory activity feed size (default: 1024)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//
// # Usage
//
//	# Build
//	go build -o coordinator ./cmd/coordinator
//
//	# Run
//	./coordinator
//
//	# Or via container
//	podman-compose up coordinator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := coordinator.Config{
		Port:             getEnvInt("COORDINATOR_PORT", 12230),
		RedisAddr:        getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		GitHubAPIURL:     os.Getenv("GITHUB_API_URL"),
		SweepSecret:      os.Getenv("SWEEP_SECRET"),
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		SweepEnabled:     getEnvBool("SWEEP_ENABLED", true),
		ActivityCapacity: getEnvInt("ACTIVITY_CAPACITY", 1024),
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	slog.Info("Starting coordinator",
		"port", cfg.Port,
		"redis_addr", cfg.RedisAddr,
		"sweep_enabled", cfg.SweepEnabled,
		"sweep_interval", cfg.SweepInterval,
	)

	svc, err := coordinator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create coordinator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Coordinator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSwarm/pkg/validation"
)

const (
	DefaultCoordinatorPort = 12230
	DefaultCoordinatorHost = "localhost"

	// DefaultConfigFile is looked up in the working directory when
	// SWARM_CONFIG is not set. A missing file is not an error; every
	// setting has a flag or environment fallback.
	DefaultConfigFile = "swarm.yaml"
)

// Config is the optional YAML client configuration.
//
// Precedence for every setting is flag > environment > this file > default,
// resolved by the getters below.
type Config struct {
	// CoordinatorURL is the base URL of the coordinator service,
	// e.g. "http://localhost:12230".
	CoordinatorURL string `yaml:"coordinator_url,omitempty"`

	// Repo is the canonical "owner/name" the agent is working on.
	Repo string `yaml:"repo,omitempty"`

	// Branch the agent is working on. Defaults to "main".
	Branch string `yaml:"branch,omitempty"`

	// AgentID is the stable identity sent as X-User-ID.
	AgentID string `yaml:"agent_id,omitempty"`

	// AgentName is the display name sent as X-User-Name.
	AgentName string `yaml:"agent_name,omitempty"`
}

// loadConfig reads the YAML client config if one exists.
//
// A missing file yields a zero Config. A file that exists but does not
// parse is fatal; silently ignoring a typo'd config leads agents to post
// against the wrong repo.
func loadConfig() {
	configPath := os.Getenv("SWARM_CONFIG")
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Fatalf("Error reading %s: %v", configPath, err)
	}

	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		log.Fatalf("Error parsing %s: %v", configPath, err)
	}
}

// getCoordinatorBaseURL returns the coordinator address.
func getCoordinatorBaseURL() string {
	// 1. Priority: flag
	if coordinatorURL != "" {
		return coordinatorURL
	}
	// 2. Environment variable (used by tests and container overrides)
	if url := os.Getenv("SWARM_COORDINATOR_URL"); url != "" {
		return url
	}
	// 3. Client config file
	if config.CoordinatorURL != "" {
		return config.CoordinatorURL
	}
	// 4. Default: standard host/port
	return fmt.Sprintf("http://%s:%d", DefaultCoordinatorHost, DefaultCoordinatorPort)
}

// resolveRepo returns the repo every command operates on, or exits if none
// is configured anywhere.
func resolveRepo() string {
	repo := repoFlag
	if repo == "" {
		repo = os.Getenv("SWARM_REPO")
	}
	if repo == "" {
		repo = config.Repo
	}
	if repo == "" {
		log.Fatalf("No repo configured. Set --repo, SWARM_REPO, or repo: in %s.", DefaultConfigFile)
	}
	return repo
}

// resolveBranch returns the working branch, sanitized. The branch lands in
// server-side storage keys, so glob and traversal shapes are rejected here
// before a request is ever made.
func resolveBranch() string {
	branch := branchFlag
	if branch == "" {
		branch = os.Getenv("SWARM_BRANCH")
	}
	if branch == "" {
		branch = config.Branch
	}
	if branch == "" {
		branch = "main"
	}
	clean, err := validation.SanitizeBranch(branch)
	if err != nil {
		log.Fatalf("Invalid branch: %v", err)
	}
	return clean
}

// resolveIdentity returns the (id, name) pair sent in the identity headers.
// The id may be empty; read-only commands work anonymously and the server
// rejects status posts without one.
func resolveIdentity() (string, string) {
	id := agentIDFlag
	if id == "" {
		id = os.Getenv("SWARM_AGENT_ID")
	}
	if id == "" {
		id = config.AgentID
	}
	if id != "" {
		clean, err := validation.SanitizeUserID(id)
		if err != nil {
			log.Fatalf("Invalid agent id: %v", err)
		}
		id = clean
	}

	name := agentNameFlag
	if name == "" {
		name = os.Getenv("SWARM_AGENT_NAME")
	}
	if name == "" {
		name = config.AgentName
	}
	if name == "" {
		name = id
	}
	return id, name
}

// requireIdentity is resolveIdentity for commands that post status; it
// exits when no agent id is configured.
func requireIdentity() (string, string) {
	id, name := resolveIdentity()
	if id == "" {
		log.Fatalf("No agent id configured. Set --agent, SWARM_AGENT_ID, or agent_id: in %s.", DefaultConfigFile)
	}
	return id, name
}

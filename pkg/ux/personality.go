// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel controls how much visual styling CLI output carries.
//
// The swarm CLI is run by humans at a terminal and by coding agents
// through pipes, usually in the same minute. Humans get color and
// icons; agents get stable line-oriented text they can parse. The
// level decides which rendering every helper in this package uses.
type PersonalityLevel string

const (
	// PersonalityFull enables all colors, icons, and boxes.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard enables colors and icons with less decoration.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons and plain text only.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine emits plain prefixed lines (OK:, WARN:,
	// ERROR:, PROGRESS:) for scripting and agent consumption. The
	// prefixes are a compatibility surface; do not change them.
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality holds the process-wide UX configuration.
type Personality struct {
	// Level controls the rendering mode of every output helper.
	Level PersonalityLevel
}

var (
	currentPersonality = Personality{Level: PersonalityFull}
	personalityMu      sync.RWMutex
)

// GetPersonality returns the current personality settings.
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality replaces the current personality settings.
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel updates just the personality level.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// levelAliases maps accepted spellings to levels. Shorthands exist so
// `--personality q` works in one-off shell invocations.
var levelAliases = map[string]PersonalityLevel{
	"full":     PersonalityFull,
	"f":        PersonalityFull,
	"standard": PersonalityStandard,
	"std":      PersonalityStandard,
	"s":        PersonalityStandard,
	"minimal":  PersonalityMinimal,
	"min":      PersonalityMinimal,
	"m":        PersonalityMinimal,
	"machine":  PersonalityMachine,
	"quiet":    PersonalityMachine,
	"q":        PersonalityMachine,
}

// ParsePersonalityLevel converts a string to a PersonalityLevel.
// Unknown values fall back to PersonalityStandard.
func ParsePersonalityLevel(s string) PersonalityLevel {
	if level, ok := levelAliases[strings.ToLower(s)]; ok {
		return level
	}
	return PersonalityStandard
}

// InitPersonality resolves the personality for this process.
//
// Resolution order: the ALEUTIAN_PERSONALITY environment variable wins,
// then a non-terminal stdout forces machine mode, then the default is
// full. Agents driving the CLI through a pipe therefore get machine
// output without setting anything.
func InitPersonality() {
	if env := os.Getenv("ALEUTIAN_PERSONALITY"); env != "" {
		SetPersonalityLevel(ParsePersonalityLevel(env))
		return
	}
	if !isTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityFull)
}

// isTerminal reports whether stdout is a terminal.
func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

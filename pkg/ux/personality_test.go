// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"sync"
	"testing"
)

// =============================================================================
// GetPersonality / SetPersonality Tests
// =============================================================================

func TestSetPersonality_AndGet(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityMinimal})

	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("expected level %v, got %v", PersonalityMinimal, got)
	}
}

func TestSetPersonalityLevel(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	levels := []PersonalityLevel{
		PersonalityFull,
		PersonalityStandard,
		PersonalityMinimal,
		PersonalityMachine,
	}

	for _, level := range levels {
		t.Run(string(level), func(t *testing.T) {
			SetPersonalityLevel(level)
			if got := GetPersonality().Level; got != level {
				t.Errorf("expected %v, got %v", level, got)
			}
		})
	}
}

// =============================================================================
// ParsePersonalityLevel Tests
// =============================================================================

func TestParsePersonalityLevel_Full(t *testing.T) {
	inputs := []string{"full", "Full", "FULL", "f"}
	for _, input := range inputs {
		if got := ParsePersonalityLevel(input); got != PersonalityFull {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityFull", input, got)
		}
	}
}

func TestParsePersonalityLevel_Standard(t *testing.T) {
	inputs := []string{"standard", "Standard", "STANDARD", "std", "s"}
	for _, input := range inputs {
		if got := ParsePersonalityLevel(input); got != PersonalityStandard {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityStandard", input, got)
		}
	}
}

func TestParsePersonalityLevel_Minimal(t *testing.T) {
	inputs := []string{"minimal", "Minimal", "MINIMAL", "min", "m"}
	for _, input := range inputs {
		if got := ParsePersonalityLevel(input); got != PersonalityMinimal {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityMinimal", input, got)
		}
	}
}

func TestParsePersonalityLevel_Machine(t *testing.T) {
	inputs := []string{"machine", "Machine", "MACHINE", "quiet", "q"}
	for _, input := range inputs {
		if got := ParsePersonalityLevel(input); got != PersonalityMachine {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityMachine", input, got)
		}
	}
}

func TestParsePersonalityLevel_Unknown(t *testing.T) {
	inputs := []string{"", "verbose", "nautical", "42"}
	for _, input := range inputs {
		if got := ParsePersonalityLevel(input); got != PersonalityStandard {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityStandard fallback", input, got)
		}
	}
}

// =============================================================================
// InitPersonality Tests
// =============================================================================

func TestInitPersonality_EnvOverride(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	tests := []struct {
		env  string
		want PersonalityLevel
	}{
		{"machine", PersonalityMachine},
		{"q", PersonalityMachine},
		{"full", PersonalityFull},
		{"minimal", PersonalityMinimal},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("ALEUTIAN_PERSONALITY", tt.env)
			InitPersonality()
			if got := GetPersonality().Level; got != tt.want {
				t.Errorf("InitPersonality with env %q: got %v, want %v", tt.env, got, tt.want)
			}
		})
	}
}

func TestInitPersonality_NoEnv(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	// Empty value takes the same path as unset.
	t.Setenv("ALEUTIAN_PERSONALITY", "")

	InitPersonality()

	// Under `go test` stdout may or may not be a terminal; the level
	// must agree with whatever isTerminal reports here.
	want := PersonalityMachine
	if isTerminal() {
		want = PersonalityFull
	}
	if got := GetPersonality().Level; got != want {
		t.Errorf("InitPersonality without env: got %v, want %v (isTerminal=%v)", got, want, isTerminal())
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestPersonality_ConcurrentAccess(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					SetPersonalityLevel(PersonalityMachine)
				} else {
					_ = GetPersonality()
				}
			}
		}(i)
	}
	wg.Wait()
}

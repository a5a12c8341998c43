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
	"fmt"
	"sync"
	"time"
)

// spinnerFrames is the braille animation cycle used while waiting on
// the coordinator.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner is an animated waiting indicator for interactive modes.
//
// In machine mode Start prints a single "PROGRESS: <message>" line and
// no animation runs; agents reading the stream see one parseable line
// per long-running step instead of carriage returns.
type Spinner struct {
	mu        sync.Mutex
	message   string
	running   bool
	animating bool // an animation goroutine was launched
	frame     int
	stop      chan struct{}
	done      chan struct{}
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the animation. Calling Start on a running spinner is a
// no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true

	if GetPersonality().Level == PersonalityMachine {
		message := s.message
		s.mu.Unlock()
		fmt.Printf("PROGRESS: %s\n", message)
		return
	}

	s.animating = true
	s.mu.Unlock()

	go s.animate()
}

// animate redraws the spinner line until stopped.
func (s *Spinner) animate() {
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			// Clear the spinner line before handing the row back.
			fmt.Print("\r\033[K")
			close(s.done)
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := spinnerFrames[s.frame%len(spinnerFrames)]
			s.frame++
			message := s.message
			s.mu.Unlock()
			fmt.Printf("\r%s %s", Styles.Highlight.Render(frame), message)
		}
	}
}

// Stop halts the animation and clears the line. Calling Stop on a
// stopped spinner is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	animating := s.animating
	s.animating = false
	s.mu.Unlock()

	if !animating {
		return
	}
	close(s.stop)
	<-s.done
}

// UpdateMessage changes the message shown on the next frame.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// StopWithSuccess stops the spinner and prints a success message.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	Success(message)
}

// StopWithError stops the spinner and prints an error message.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	Error(message)
}

// StopWithWarning stops the spinner and prints a warning message.
func (s *Spinner) StopWithWarning(message string) {
	s.Stop()
	Warning(message)
}

// WithSpinner runs fn behind a spinner and reports the outcome.
//
// On success the message is re-printed as a success line; on failure
// the error is appended and printed as an error line, and the error is
// returned unchanged.
func WithSpinner(message string, fn func() error) error {
	spin := NewSpinner(message)
	spin.Start()

	if err := fn(); err != nil {
		spin.StopWithError(fmt.Sprintf("%s: %v", message, err))
		return err
	}

	spin.StopWithSuccess(message)
	return nil
}

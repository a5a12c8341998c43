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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianSwarm/pkg/ux"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess  = 0 // Operation completed successfully
	CLIExitFindings = 1 // Operation completed but work must not proceed
	CLIExitError    = 2 // Operation failed
)

// outputJSON writes structured data as indented JSON to stdout.
func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// lockIcon maps a lock status to its display icon. Writers are the holds
// that block other agents, so they get the warning glyph.
func lockIcon(status datatypes.LockStatus) ux.Icon {
	if status == datatypes.StatusWriting {
		return ux.IconWarning
	}
	return ux.IconPending
}

// renderLocks prints the lock table sorted by path, followed by the
// summary line. Returns the number of write holds so callers can pick an
// exit code.
func renderLocks(locks map[string]datatypes.LockEntry) int {
	paths := make([]string, 0, len(locks))
	for path := range locks {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	writing, reading := 0, 0
	nowMs := time.Now().UnixMilli()
	for _, path := range paths {
		entry := locks[path]
		switch entry.Status {
		case datatypes.StatusWriting:
			writing++
		case datatypes.StatusReading:
			reading++
		}

		reason := fmt.Sprintf("%s by %s", entry.Status, holderName(entry))
		if remaining := entry.Expiry - nowMs; remaining > 0 {
			reason += fmt.Sprintf(", expires in %s", (time.Duration(remaining) * time.Millisecond).Round(time.Second))
		}
		ux.FileStatus(path, lockIcon(entry.Status), reason)
	}

	ux.Summary(writing, reading, len(paths))
	return writing
}

// holderName prefers the display name, falling back to the id.
func holderName(entry datatypes.LockEntry) string {
	if entry.UserName != "" {
		return entry.UserName
	}
	return entry.UserID
}

// renderOrchestration prints the directive an agent should act on next.
func renderOrchestration(o datatypes.Orchestration) {
	switch o.Action {
	case datatypes.ActionProceed:
		ux.Success(o.Reason)
	case datatypes.ActionPull, datatypes.ActionPush:
		ux.Warning(o.Reason)
		if o.Command != "" {
			ux.Muted("  run: " + o.Command)
		}
	case datatypes.ActionSwitchTask:
		content := o.Reason
		if file := o.Metadata["conflicting_file"]; file != "" {
			content += fmt.Sprintf("\n%s held by %s", file, o.Metadata["conflicting_user"])
		}
		ux.WarningBox("Switch task", content)
	case datatypes.ActionStop:
		ux.Error(o.Reason)
	default:
		ux.Info(o.Reason)
	}
}

// renderEvent prints one activity event as a single line.
func renderEvent(e datatypes.ActivityEvent) {
	icon := ux.IconBullet
	switch e.Type {
	case datatypes.EventStatusWriting:
		icon = ux.IconWarning
	case datatypes.EventStatusOpen:
		icon = ux.IconSuccess
	}

	stamp := time.UnixMilli(e.Timestamp).Format("15:04:05")
	who := e.UserName
	if who == "" {
		who = e.UserID
	}
	fmt.Printf("%s %s %s %s %s", icon.Render(), stamp, who, e.Status, e.FilePath)
	if e.Message != "" {
		fmt.Printf("  %s", ux.Styles.Muted.Render(e.Message))
	}
	fmt.Println()
}

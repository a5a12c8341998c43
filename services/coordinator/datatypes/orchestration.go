// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// OrchestrationAction is the discrete next step handed back to an agent.
type OrchestrationAction string

const (
	// ActionProceed tells the agent its requested work may continue.
	ActionProceed OrchestrationAction = "PROCEED"

	// ActionPull tells the agent its local head is behind the remote.
	ActionPull OrchestrationAction = "PULL"

	// ActionPush tells the agent it claims completion without having
	// advanced the branch.
	ActionPush OrchestrationAction = "PUSH"

	// ActionSwitchTask tells the agent the files it wants are held by
	// someone else.
	ActionSwitchTask OrchestrationAction = "SWITCH_TASK"

	// ActionStop is reserved for policy layers above the coordinator.
	ActionStop OrchestrationAction = "STOP"

	// ActionWait is reserved for policy layers above the coordinator.
	ActionWait OrchestrationAction = "WAIT"
)

// Shell-style command hints attached to orchestration responses.
const (
	CommandPullRebase = "git pull --rebase"
	CommandPush       = "git push"
)

// LockKind distinguishes how a conflicting lock relates to the request.
type LockKind string

const (
	// LockKindDirect means the lock is on a requested file.
	LockKindDirect LockKind = "DIRECT"

	// LockKindNeighbor means the lock is on a file one import hop away
	// from a requested file.
	LockKindNeighbor LockKind = "NEIGHBOR"
)

// CoordinationStatus is the headline outcome of a check_status call.
type CoordinationStatus string

const (
	CoordinationOK       CoordinationStatus = "OK"
	CoordinationStale    CoordinationStatus = "STALE"
	CoordinationConflict CoordinationStatus = "CONFLICT"
)

// Orchestration is the structured directive returned with every coordination
// outcome. Business results (conflict, staleness) ride inside a successful
// response as an Orchestration rather than as an error.
type Orchestration struct {
	// Action is the next step the agent should take.
	Action OrchestrationAction `json:"action"`

	// Command is an optional human-facing shell hint, e.g. "git pull --rebase".
	Command string `json:"command,omitempty"`

	// Reason explains the action in one sentence.
	Reason string `json:"reason"`

	// Metadata carries structured detail such as remote_head, your_head,
	// conflicting_file, conflicting_user, lock_kind.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Package connstate classifies device connectivity into the three-state
// model consumed by the dashboard shell.
package connstate

import "crisisrelay/internal/model"

// Detect derives the connection state from the current link status.
// It is a pure function: reachable wins over everything, then any peer
// at all means mesh relay is possible, otherwise the device is cut off.
// Callers re-evaluate on every reachability or peer-count change; this
// package does not subscribe to events itself.
func Detect(reachable bool, peers int) model.ConnectionState {
	if reachable {
		return model.StateOnline
	}
	if peers > 0 {
		return model.StateMesh
	}
	return model.StateIsolated
}

// Info holds the display strings for one connection state.
type Info struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

var stateInfo = map[model.ConnectionState]Info{
	model.StateOnline: {
		Label:       "Online",
		Description: "Connected to the internet. Messages send immediately.",
	},
	model.StateMesh: {
		Label:       "Mesh Mode",
		Description: "No internet, relaying through nearby devices. Messages may be delayed.",
	},
	model.StateIsolated: {
		Label:       "Isolated",
		Description: "No internet and no nearby devices. Messages are queued until a link returns.",
	},
}

// Describe returns the display label and description for a state.
// Unknown states get the isolated strings, the safest thing to show.
func Describe(state model.ConnectionState) Info {
	if info, ok := stateInfo[state]; ok {
		return info
	}
	return stateInfo[model.StateIsolated]
}

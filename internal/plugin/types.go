// Package plugin runs external actions when gestures change.
//
// A plugin is a directory holding a plugin.json manifest and an executable.
// The executable reads one Request as JSON on stdin and writes one Response
// as JSON on stdout.
package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/mudra/internal/gesture"
)

// Manifest describes a plugin.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a plugin for one emitted gesture.
type Request struct {
	Action  string          `json:"action"`
	Label   string          `json:"label"`
	Payload string          `json:"payload"`
	Name    string          `json:"name"`
	Seq     uint64          `json:"seq"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds the request for a transition.
func NewRequest(action string, tr *gesture.Transition, params json.RawMessage) *Request {
	return &Request{
		Action:  action,
		Label:   tr.Label.String(),
		Payload: string(tr.Payload),
		Name:    tr.Payload.Name(),
		Seq:     tr.Seq,
		Params:  params,
	}
}

// Response is a plugin's answer.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// AnyPayload binds an action to every emitted gesture.
const AnyPayload = "*"

// Binding runs Plugin's Action whenever a gesture with Payload is emitted.
type Binding struct {
	Payload string          `json:"payload"`
	Plugin  string          `json:"plugin"`
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Validate checks the binding's fields. It does not check that the plugin
// exists, since plugins are discovered at startup.
func (b Binding) Validate() error {
	if b.Payload != AnyPayload {
		if _, err := gesture.ParsePayload(b.Payload); err != nil {
			return fmt.Errorf("binding payload: %w", err)
		}
	}
	if b.Plugin == "" {
		return fmt.Errorf("binding for %q has no plugin", b.Payload)
	}
	if b.Action == "" {
		return fmt.Errorf("binding for %q has no action", b.Payload)
	}
	if len(b.Params) > 0 && !json.Valid(b.Params) {
		return fmt.Errorf("binding for %q has invalid params", b.Payload)
	}
	return nil
}

// Matches reports whether the binding applies to p.
func (b Binding) Matches(p gesture.Payload) bool {
	return b.Payload == AnyPayload || gesture.Payload(b.Payload) == p
}

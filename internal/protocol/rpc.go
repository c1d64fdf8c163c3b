// Package protocol defines the JSON framing the bridge speaks. One
// RPCMessage travels per yamux stream write; payloads are typed per
// message type.
package protocol

import (
	"encoding/json"

	"github.com/waymark-dev/waymark/internal/engine"
)

// RPCMessage represents a JSON-RPC 2.0-like message.
// Requests carry an ID; responses echo it back with type "response".
type RPCMessage struct {
	ID      interface{}     `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Request types the bridge daemon understands.
const (
	TypeStart     = "start"
	TypeAdvance   = "advance"
	TypeSetTasks  = "set_tasks"
	TypeStatus    = "status"
	TypeContext   = "context"
	TypeArtefacts = "register_artefacts"
	TypeSummary   = "set_summary"
	TypeList      = "list"
	TypeResponse  = "response"
)

// StartRequest creates a new instance from a template on the daemon side.
type StartRequest struct {
	TemplatePath string `json:"template_path"`
}

// AdvanceRequest records an output and moves the named instance forward.
type AdvanceRequest struct {
	InstanceID string `json:"instance_id"`
	Output     string `json:"output"`
}

// SetTasksRequest assigns the task list for one loop of an instance.
type SetTasksRequest struct {
	InstanceID string        `json:"instance_id"`
	LoopID     string        `json:"loop_id"`
	Tasks      []engine.Task `json:"tasks"`
}

// InstanceRequest addresses an instance without further arguments.
type InstanceRequest struct {
	InstanceID string `json:"instance_id"`
}

// ArtefactsRequest appends artefact paths to an instance.
type ArtefactsRequest struct {
	InstanceID string   `json:"instance_id"`
	Paths      []string `json:"paths"`
}

// SummaryRequest records the summary text of an instance.
type SummaryRequest struct {
	InstanceID string `json:"instance_id"`
	Summary    string `json:"summary"`
}

// StatusResponse is the reply to start/advance/set_tasks/status requests.
type StatusResponse struct {
	InstanceID string          `json:"instance_id"`
	Template   string          `json:"template"`
	Snapshot   engine.Snapshot `json:"snapshot"`
}

// ContextResponse carries the accumulated outputs of an instance.
type ContextResponse struct {
	InstanceID string            `json:"instance_id"`
	Outputs    map[string]string `json:"outputs"`
}

// ListResponse names every instance the daemon currently manages.
type ListResponse struct {
	Instances []InstanceInfo `json:"instances"`
}

// InstanceInfo is one row of a ListResponse.
type InstanceInfo struct {
	InstanceID string        `json:"instance_id"`
	Template   string        `json:"template"`
	Status     engine.Status `json:"status"`
	StepID     string        `json:"step_id"`
}

// EncodeRPC encodes any payload into a RawMessage for inclusion in an RPCMessage
func EncodeRPC(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// DecodeRPC unmarshals a payload into the given request/response struct.
func DecodeRPC(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}

package event

import (
	"github.com/tailored-agentic-units/relay/prompt"
)

// Type tags every event on the wire and in the replay buffer.
type Type string

const (
	TypeOutput        Type = "output"
	TypeMessage       Type = "message"
	TypeThinking      Type = "thinking"
	TypeToolUse       Type = "tool_use"
	TypeUsage         Type = "usage"
	TypeTodos         Type = "todos"
	TypeAgent         Type = "agent"
	TypeStatus        Type = "status"
	TypeCommandOutput Type = "command_output"
	TypeCompacting    Type = "compacting"

	TypePermissionRequest     Type = "permission_request"
	TypeQuestionRequest       Type = "question_request"
	TypePlanApprovalRequest   Type = "plan_approval_request"
	TypeCommitApprovalRequest Type = "commit_approval_request"

	TypePermissionResolved     Type = "permission_resolved"
	TypeQuestionResolved       Type = "question_resolved"
	TypePlanApprovalResolved   Type = "plan_approval_resolved"
	TypeCommitApprovalResolved Type = "commit_approval_resolved"

	TypeReplayDone Type = "replay_done"
)

// Payload is the variant-specific body of an event. The interface is sealed;
// the types in this package are the only implementations, one per Type.
type Payload interface {
	EventType() Type
	isPayload()
}

// Output is a chunk of raw subprocess output.
type Output struct {
	Content string `json:"content"`
	Stream  string `json:"stream,omitempty"`
}

func (Output) EventType() Type { return TypeOutput }
func (Output) isPayload()      {}

// Message is a completed assistant or user turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (Message) EventType() Type { return TypeMessage }
func (Message) isPayload()      {}

// Thinking is a chunk of the assistant's reasoning stream.
type Thinking struct {
	Content string `json:"content"`
}

func (Thinking) EventType() Type { return TypeThinking }
func (Thinking) isPayload()      {}

// ToolUse reports a tool invocation started by the assistant.
type ToolUse struct {
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
}

func (ToolUse) EventType() Type { return TypeToolUse }
func (ToolUse) isPayload()      {}

// Usage reports token consumption for the session so far.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (Usage) EventType() Type { return TypeUsage }
func (Usage) isPayload()      {}

// Todo is one entry of a Todos event.
type Todo struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// Todos carries the assistant's current task list.
type Todos struct {
	Items []Todo `json:"items"`
}

func (Todos) EventType() Type { return TypeTodos }
func (Todos) isPayload()      {}

// Agent reports subagent activity.
type Agent struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

func (Agent) EventType() Type { return TypeAgent }
func (Agent) isPayload()      {}

// Status reports a session state change, e.g. running or idle.
type Status struct {
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

func (Status) EventType() Type { return TypeStatus }
func (Status) isPayload()      {}

// CommandOutput carries the result of a shell command run inside the session.
type CommandOutput struct {
	Command  string `json:"command"`
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

func (CommandOutput) EventType() Type { return TypeCommandOutput }
func (CommandOutput) isPayload()      {}

// Compacting signals that context compaction started or finished.
type Compacting struct {
	Active bool `json:"active"`
}

func (Compacting) EventType() Type { return TypeCompacting }
func (Compacting) isPayload()      {}

// PermissionRequest announces a Permission prompt as the session's active
// prompt.
type PermissionRequest struct {
	RequestID        string         `json:"request_id"`
	ToolName         string         `json:"tool_name"`
	ToolInput        map[string]any `json:"tool_input,omitempty"`
	Description      string         `json:"description,omitempty"`
	SuggestedPattern string         `json:"suggested_pattern,omitempty"`
}

func (PermissionRequest) EventType() Type { return TypePermissionRequest }
func (PermissionRequest) isPayload()      {}

// QuestionRequest announces a UserQuestion prompt as the session's active
// prompt.
type QuestionRequest struct {
	RequestID string            `json:"request_id"`
	Questions []prompt.Question `json:"questions"`
}

func (QuestionRequest) EventType() Type { return TypeQuestionRequest }
func (QuestionRequest) isPayload()      {}

// PlanApprovalRequest announces a PlanApproval prompt as the session's
// active prompt.
type PlanApprovalRequest struct {
	RequestID   string `json:"request_id"`
	PlanContent string `json:"plan_content,omitempty"`
	PlanPath    string `json:"plan_path,omitempty"`
}

func (PlanApprovalRequest) EventType() Type { return TypePlanApprovalRequest }
func (PlanApprovalRequest) isPayload()      {}

// CommitApprovalRequest announces a CommitApproval prompt as the session's
// active prompt.
type CommitApprovalRequest struct {
	RequestID     string `json:"request_id"`
	CommitMessage string `json:"commit_message"`
	GitStatus     string `json:"git_status,omitempty"`
}

func (CommitApprovalRequest) EventType() Type { return TypeCommitApprovalRequest }
func (CommitApprovalRequest) isPayload()      {}

// PermissionResolved tells every subscriber a Permission prompt was answered
// so stale dialogs on other tabs can be dismissed.
type PermissionResolved struct {
	RequestID string `json:"request_id"`
}

func (PermissionResolved) EventType() Type { return TypePermissionResolved }
func (PermissionResolved) isPayload()      {}

// QuestionResolved tells every subscriber a UserQuestion prompt was answered.
type QuestionResolved struct {
	RequestID string `json:"request_id"`
}

func (QuestionResolved) EventType() Type { return TypeQuestionResolved }
func (QuestionResolved) isPayload()      {}

// PlanApprovalResolved tells every subscriber a PlanApproval prompt was
// answered.
type PlanApprovalResolved struct {
	RequestID string `json:"request_id"`
}

func (PlanApprovalResolved) EventType() Type { return TypePlanApprovalResolved }
func (PlanApprovalResolved) isPayload()      {}

// CommitApprovalResolved tells every subscriber a CommitApproval prompt was
// answered.
type CommitApprovalResolved struct {
	RequestID string `json:"request_id"`
}

func (CommitApprovalResolved) EventType() Type { return TypeCommitApprovalResolved }
func (CommitApprovalResolved) isPayload()      {}

// ReplayDone marks the end of a replay snapshot on a reconnecting
// connection. It is sent directly and never enters the replay buffer.
type ReplayDone struct {
	Count int `json:"count"`
}

func (ReplayDone) EventType() Type { return TypeReplayDone }
func (ReplayDone) isPayload()      {}

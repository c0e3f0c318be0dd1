package server

import (
	"fmt"
	"time"

	"github.com/tailored-agentic-units/relay/prompt"
)

// Frame types of the JSON wire protocol. Every frame is a flat object
// with snake_case keys and a "type" discriminator. Outbound event frames
// are event.Envelope encodings, so their discriminator is the event type
// itself; the constants below cover everything else.
const (
	FrameSubscribe             = "subscribe"
	FrameUnsubscribe           = "unsubscribe"
	FrameReconnect             = "reconnect"
	FrameHeartbeat             = "heartbeat"
	FramePermissionRespond     = "permission_respond"
	FrameQuestionRespond       = "question_respond"
	FramePlanApprovalRespond   = "plan_approval_respond"
	FrameCommitApprovalRespond = "commit_approval_respond"
	FrameError                 = "error"
)

// Actions accepted on a permission_respond frame.
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// Heartbeat reply statuses.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
)

// clientFrame is the decoded form of an inbound frame. Type and
// SessionID are always present; the remaining fields are read per frame
// type.
type clientFrame struct {
	Type          string            `json:"type"`
	SessionID     string            `json:"session_id"`
	RequestID     string            `json:"request_id,omitempty"`
	LastTimestamp *time.Time        `json:"last_timestamp,omitempty"`
	Action        string            `json:"action,omitempty"`
	Pattern       string            `json:"pattern,omitempty"`
	Answers       map[string]string `json:"answers,omitempty"`
	Approved      bool              `json:"approved,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// response builds the variant-typed prompt response a *_respond frame
// carries.
func (f clientFrame) response() (prompt.Response, error) {
	switch f.Type {
	case FramePermissionRespond:
		switch f.Action {
		case ActionAllow:
			return prompt.PermissionResponse{Approved: true, Pattern: f.Pattern}, nil
		case ActionDeny:
			return prompt.PermissionResponse{Approved: false}, nil
		default:
			return nil, fmt.Errorf("unknown permission action %q", f.Action)
		}
	case FrameQuestionRespond:
		answers := f.Answers
		if answers == nil {
			answers = map[string]string{}
		}
		return prompt.QuestionResponse{Answers: answers}, nil
	case FramePlanApprovalRespond:
		return prompt.PlanApprovalResponse{Approved: f.Approved, Reason: f.Reason}, nil
	case FrameCommitApprovalRespond:
		return prompt.CommitApprovalResponse{Approved: f.Approved, Reason: f.Reason}, nil
	}
	return nil, fmt.Errorf("frame type %q carries no response", f.Type)
}

// heartbeatFrame replies to an inbound heartbeat. The session fields are
// pointers so that zero values still serialize when the status is "ok";
// on "not_found" they are omitted entirely.
type heartbeatFrame struct {
	Type       string  `json:"type"`
	SessionID  string  `json:"session_id"`
	Status     string  `json:"status"`
	Buffered   *int    `json:"buffered,omitempty"`
	MaxSeq     *uint64 `json:"max_seq,omitempty"`
	Prompting  *bool   `json:"prompting,omitempty"`
	PromptKind string  `json:"prompt_kind,omitempty"`
}

// errorFrame reports a failed inbound frame back to its sender.
type errorFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

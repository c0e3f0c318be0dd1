// Package prompt defines the prompt record and variant model for requests
// that need synchronous human input: tool permissions, free-form questions,
// plan approvals, and commit approvals.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the four prompt variants.
type Kind string

const (
	KindPermission     Kind = "permission"
	KindQuestion       Kind = "question"
	KindPlanApproval   Kind = "plan_approval"
	KindCommitApproval Kind = "commit_approval"
)

// Priority returns the arbitration rank of the kind. Lower ranks are shown
// to the human first; ties are broken by insertion order.
func (k Kind) Priority() int {
	switch k {
	case KindPermission:
		return 0
	case KindQuestion:
		return 1
	case KindPlanApproval:
		return 2
	case KindCommitApproval:
		return 3
	default:
		return 4
	}
}

// Detail carries the variant-specific fields of a prompt. The interface is
// sealed; the four variant types in this package are the only implementations.
type Detail interface {
	Kind() Kind
	validate() error
	deny(reason string) Response
}

// Permission asks the human to allow or deny a single tool invocation.
type Permission struct {
	ToolName         string         `json:"tool_name"`
	ToolInput        map[string]any `json:"tool_input,omitempty"`
	Description      string         `json:"description,omitempty"`
	SuggestedPattern string         `json:"suggested_pattern,omitempty"`
}

func (Permission) Kind() Kind { return KindPermission }

func (p Permission) validate() error {
	if p.ToolName == "" {
		return errors.New("tool name is required")
	}
	return nil
}

func (Permission) deny(string) Response {
	return PermissionResponse{Approved: false}
}

// Question is one entry of a UserQuestion prompt. Options, when present,
// enumerate the selectable answers in display order.
type Question struct {
	Question    string   `json:"question"`
	Header      string   `json:"header,omitempty"`
	Options     []string `json:"options,omitempty"`
	MultiSelect bool     `json:"multi_select,omitempty"`
}

// UserQuestion asks the human an ordered list of questions.
type UserQuestion struct {
	Questions []Question `json:"questions"`
}

func (UserQuestion) Kind() Kind { return KindQuestion }

func (q UserQuestion) validate() error {
	if len(q.Questions) == 0 {
		return errors.New("at least one question is required")
	}
	for i, entry := range q.Questions {
		if entry.Question == "" {
			return fmt.Errorf("question %d has no text", i)
		}
	}
	return nil
}

func (UserQuestion) deny(string) Response {
	return QuestionResponse{Answers: map[string]string{}}
}

// PlanApproval asks the human to accept or reject a proposed plan, given
// inline or as a path to the plan file. At least one of the two must be set.
type PlanApproval struct {
	PlanContent string `json:"plan_content,omitempty"`
	PlanPath    string `json:"plan_path,omitempty"`
}

func (PlanApproval) Kind() Kind { return KindPlanApproval }

func (p PlanApproval) validate() error {
	if p.PlanContent == "" && p.PlanPath == "" {
		return errors.New("plan content or plan path is required")
	}
	return nil
}

func (PlanApproval) deny(reason string) Response {
	return PlanApprovalResponse{Approved: false, Reason: reason}
}

// CommitApproval asks the human to approve a git commit before it is created.
type CommitApproval struct {
	CommitMessage string `json:"commit_message"`
	GitStatus     string `json:"git_status,omitempty"`
}

func (CommitApproval) Kind() Kind { return KindCommitApproval }

func (c CommitApproval) validate() error {
	if c.CommitMessage == "" {
		return errors.New("commit message is required")
	}
	return nil
}

func (CommitApproval) deny(reason string) Response {
	return CommitApprovalResponse{Approved: false, Reason: reason}
}

// Prompt is one pending request for human input. ID is unique for the
// process lifetime, never reused, and is the sole correlation key for the
// response. CreatedAt is audit metadata and never participates in ordering.
type Prompt struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Detail    Detail    `json:"detail"`
}

// New builds a prompt for sessionID around the given detail, assigning a
// fresh UUIDv7 id and creation timestamp.
func New(sessionID string, d Detail) (*Prompt, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if d == nil {
		return nil, errors.New("prompt detail is required")
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &Prompt{
		ID:        generateID(),
		SessionID: sessionID,
		CreatedAt: time.Now(),
		Detail:    d,
	}, nil
}

// Kind returns the variant of the prompt's detail.
func (p *Prompt) Kind() Kind {
	return p.Detail.Kind()
}

// Deny synthesizes the variant-appropriate denial response: permissions and
// approvals are refused, questions receive an empty answer set.
func (p *Prompt) Deny(reason string) Response {
	return p.Detail.deny(reason)
}

func (p *Prompt) String() string {
	return fmt.Sprintf("Prompt{ID: %s, SessionID: %s, Kind: %s}", p.ID, p.SessionID, p.Kind())
}

// MarshalJSON serializes the prompt with an explicit kind tag so the
// variant-typed detail survives a round trip.
func (p Prompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id"`
		CreatedAt time.Time `json:"created_at"`
		Kind      Kind      `json:"kind"`
		Detail    Detail    `json:"detail"`
	}{
		ID:        p.ID,
		SessionID: p.SessionID,
		CreatedAt: p.CreatedAt,
		Kind:      p.Detail.Kind(),
		Detail:    p.Detail,
	})
}

// UnmarshalJSON decodes the detail into the concrete variant named by the
// kind tag.
func (p *Prompt) UnmarshalJSON(data []byte) error {
	var head struct {
		ID        string          `json:"id"`
		SessionID string          `json:"session_id"`
		CreatedAt time.Time       `json:"created_at"`
		Kind      Kind            `json:"kind"`
		Detail    json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	var detail Detail
	switch head.Kind {
	case KindPermission:
		var v Permission
		if err := json.Unmarshal(head.Detail, &v); err != nil {
			return err
		}
		detail = v
	case KindQuestion:
		var v UserQuestion
		if err := json.Unmarshal(head.Detail, &v); err != nil {
			return err
		}
		detail = v
	case KindPlanApproval:
		var v PlanApproval
		if err := json.Unmarshal(head.Detail, &v); err != nil {
			return err
		}
		detail = v
	case KindCommitApproval:
		var v CommitApproval
		if err := json.Unmarshal(head.Detail, &v); err != nil {
			return err
		}
		detail = v
	default:
		return fmt.Errorf("unknown prompt kind %q", head.Kind)
	}

	p.ID = head.ID
	p.SessionID = head.SessionID
	p.CreatedAt = head.CreatedAt
	p.Detail = detail
	return nil
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}

package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope wraps a payload with its delivery metadata. Seq is a per-session
// monotonic counter assigned by the multiplexer; Timestamp is the publish
// time and is what replay filtering compares against.
type Envelope struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// NewEnvelope wraps p for sessionID, stamping the type tag and the current
// time.
func NewEnvelope(sessionID string, seq uint64, p Payload) *Envelope {
	return &Envelope{
		SessionID: sessionID,
		Seq:       seq,
		Type:      p.EventType(),
		Timestamp: time.Now(),
		Payload:   p,
	}
}

func (e *Envelope) String() string {
	return fmt.Sprintf("Envelope{SessionID: %s, Seq: %d, Type: %s}", e.SessionID, e.Seq, e.Type)
}

// MarshalJSON writes the type tag next to the payload so the concrete
// payload type survives a round trip.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SessionID string    `json:"session_id"`
		Seq       uint64    `json:"seq"`
		Type      Type      `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		Payload   Payload   `json:"payload"`
	}{
		SessionID: e.SessionID,
		Seq:       e.Seq,
		Type:      e.Payload.EventType(),
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	})
}

// UnmarshalJSON dispatches on the type tag back to the concrete payload
// type.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var head struct {
		SessionID string          `json:"session_id"`
		Seq       uint64          `json:"seq"`
		Type      Type            `json:"type"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	payload, err := decodePayload(head.Type, head.Payload)
	if err != nil {
		return err
	}

	e.SessionID = head.SessionID
	e.Seq = head.Seq
	e.Type = head.Type
	e.Timestamp = head.Timestamp
	e.Payload = payload
	return nil
}

func decodePayload(t Type, raw json.RawMessage) (Payload, error) {
	switch t {
	case TypeOutput:
		return decodeInto[Output](raw)
	case TypeMessage:
		return decodeInto[Message](raw)
	case TypeThinking:
		return decodeInto[Thinking](raw)
	case TypeToolUse:
		return decodeInto[ToolUse](raw)
	case TypeUsage:
		return decodeInto[Usage](raw)
	case TypeTodos:
		return decodeInto[Todos](raw)
	case TypeAgent:
		return decodeInto[Agent](raw)
	case TypeStatus:
		return decodeInto[Status](raw)
	case TypeCommandOutput:
		return decodeInto[CommandOutput](raw)
	case TypeCompacting:
		return decodeInto[Compacting](raw)
	case TypePermissionRequest:
		return decodeInto[PermissionRequest](raw)
	case TypeQuestionRequest:
		return decodeInto[QuestionRequest](raw)
	case TypePlanApprovalRequest:
		return decodeInto[PlanApprovalRequest](raw)
	case TypeCommitApprovalRequest:
		return decodeInto[CommitApprovalRequest](raw)
	case TypePermissionResolved:
		return decodeInto[PermissionResolved](raw)
	case TypeQuestionResolved:
		return decodeInto[QuestionResolved](raw)
	case TypePlanApprovalResolved:
		return decodeInto[PlanApprovalResolved](raw)
	case TypeCommitApprovalResolved:
		return decodeInto[CommitApprovalResolved](raw)
	case TypeReplayDone:
		return decodeInto[ReplayDone](raw)
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

func decodeInto[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

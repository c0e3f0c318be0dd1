package event

import (
	"github.com/tailored-agentic-units/relay/prompt"
)

// PromptRequest builds the request payload announcing p as its session's
// active prompt.
func PromptRequest(p *prompt.Prompt) Payload {
	switch d := p.Detail.(type) {
	case prompt.Permission:
		return PermissionRequest{
			RequestID:        p.ID,
			ToolName:         d.ToolName,
			ToolInput:        d.ToolInput,
			Description:      d.Description,
			SuggestedPattern: d.SuggestedPattern,
		}
	case prompt.UserQuestion:
		return QuestionRequest{
			RequestID: p.ID,
			Questions: d.Questions,
		}
	case prompt.PlanApproval:
		return PlanApprovalRequest{
			RequestID:   p.ID,
			PlanContent: d.PlanContent,
			PlanPath:    d.PlanPath,
		}
	case prompt.CommitApproval:
		return CommitApprovalRequest{
			RequestID:     p.ID,
			CommitMessage: d.CommitMessage,
			GitStatus:     d.GitStatus,
		}
	default:
		// prompt.Detail is sealed; no other variants exist.
		return nil
	}
}

// PromptResolved builds the resolved payload for the given prompt kind and
// request id.
func PromptResolved(kind prompt.Kind, requestID string) Payload {
	switch kind {
	case prompt.KindPermission:
		return PermissionResolved{RequestID: requestID}
	case prompt.KindQuestion:
		return QuestionResolved{RequestID: requestID}
	case prompt.KindPlanApproval:
		return PlanApprovalResolved{RequestID: requestID}
	case prompt.KindCommitApproval:
		return CommitApprovalResolved{RequestID: requestID}
	default:
		// prompt.Kind is closed; no other kinds exist.
		return nil
	}
}

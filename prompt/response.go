package prompt

// Response carries the human's answer to a prompt and is produced exactly
// once per prompt id. The interface is sealed; the four response types in
// this package are the only implementations, each mirroring one variant.
type Response interface {
	Kind() Kind
	isResponse()
}

// PermissionResponse answers a Permission prompt. Pattern optionally carries
// an always-allow rule the client chose alongside an approval.
type PermissionResponse struct {
	Approved bool   `json:"approved"`
	Pattern  string `json:"pattern,omitempty"`
}

func (PermissionResponse) Kind() Kind  { return KindPermission }
func (PermissionResponse) isResponse() {}

// QuestionResponse answers a UserQuestion prompt. Answers maps each question
// text to the chosen or typed answer; a denial carries an empty map.
type QuestionResponse struct {
	Answers map[string]string `json:"answers"`
}

func (QuestionResponse) Kind() Kind  { return KindQuestion }
func (QuestionResponse) isResponse() {}

// PlanApprovalResponse answers a PlanApproval prompt.
type PlanApprovalResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

func (PlanApprovalResponse) Kind() Kind  { return KindPlanApproval }
func (PlanApprovalResponse) isResponse() {}

// CommitApprovalResponse answers a CommitApproval prompt.
type CommitApprovalResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

func (CommitApprovalResponse) Kind() Kind  { return KindCommitApproval }
func (CommitApprovalResponse) isResponse() {}

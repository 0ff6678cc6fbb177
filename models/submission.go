package models

import "time"

// SubmissionStatus tracks the verification lifecycle of a submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING_VERIFICATION"
	SubmissionVerified SubmissionStatus = "VERIFIED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// MintResult records the economic outcome of a verified submission.
type MintResult struct {
	CCAmount int64       `json:"cc_amount"`
	Tokens   []TokenMint `json:"tokens,omitempty"`
	MintedAt time.Time   `json:"minted_at"`
}

// Submission is a mutable record referencing stored artifacts plus claims
// and verification state. Created once, mutated by verification outcomes,
// never deleted. UpdatedAt is stamped on every write.
type Submission struct {
	ID               string           `json:"id"`
	QuestID          string           `json:"quest_id"`
	BotID            string           `json:"bot_id"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Status           SubmissionStatus `json:"status"`
	ArtifactIDs      []string         `json:"artifact_ids"`
	Claims           []string         `json:"claims,omitempty"`
	RequestedTokens  []TokenMint      `json:"requested_tokens,omitempty"`
	VerificationJobs []string         `json:"verification_jobs,omitempty"`
	VerifiedAt       *time.Time       `json:"verified_at,omitempty"`
	MintResult       *MintResult      `json:"mint_result,omitempty"`
}

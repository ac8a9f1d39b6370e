package models

// RefreshResult aggregates one full token refresh run.
type RefreshResult struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}

// PoolUpdateResult aggregates one pool re-sync run.
type PoolUpdateResult struct {
	AddedCount   int `json:"addedCount"`
	SkippedCount int `json:"skippedCount"`
	TotalCount   int `json:"totalCount"`
}

// PoolCleanResult aggregates one pool health-check sweep.
type PoolCleanResult struct {
	ValidCount   int `json:"validCount"`
	InvalidCount int `json:"invalidCount"`
}

// PoolAccount is a remote pool entry. The pool is the source of truth; these
// records are never cached beyond a single operation.
type PoolAccount struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Email  string `json:"email,omitempty"`
}

// BatchCreateResult aggregates one batch mailbox creation call.
type BatchCreateResult struct {
	Created []MailAccount `json:"created"`
	Failed  int           `json:"failed"`
}

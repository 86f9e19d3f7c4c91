package audit

import (
	"encoding/json"
	"time"
)

// Result is the outcome of a decision
type Result string

const (
	ResultAllowed Result = "allowed"
	ResultDenied  Result = "denied"
)

// RoleCheck is one role looked at while deciding
type RoleCheck struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Matched bool   `json:"matched"`
	Details string `json:"details,omitempty"`
}

// Decision is a recorded authorization decision
type Decision struct {
	ID            int64             `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	RequestID     string            `json:"requestId,omitempty"`
	UserID        string            `json:"userId"`
	Email         string            `json:"email,omitempty"`
	Resource      string            `json:"resource"`
	Action        string            `json:"action"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Result        Result            `json:"result"`
	Reason        string            `json:"reason"`
	Grant         string            `json:"grant,omitempty"`
	Cached        bool              `json:"cached"`
	RoleChecks    []RoleCheck       `json:"roleChecks,omitempty"`
	ExecutionTime time.Duration     `json:"-"`
}

// MarshalJSON renders ExecutionTime in milliseconds
func (d *Decision) MarshalJSON() ([]byte, error) {
	type alias Decision
	return json.Marshal(&struct {
		*alias
		ExecutionTimeMs float64 `json:"executionTimeMs"`
	}{
		alias:           (*alias)(d),
		ExecutionTimeMs: float64(d.ExecutionTime) / float64(time.Millisecond),
	})
}

// Filter narrows a search. Zero fields match everything.
type Filter struct {
	UserID   string
	Resource string
	Result   Result
	Limit    int // most recent N after filtering; 0 means all
}

func (f Filter) matches(d *Decision) bool {
	if f.UserID != "" && d.UserID != f.UserID {
		return false
	}
	if f.Resource != "" && d.Resource != f.Resource {
		return false
	}
	if f.Result != "" && d.Result != f.Result {
		return false
	}
	return true
}

// Stats summarizes the retained decisions
type Stats struct {
	Total      int            `json:"total"`
	Allowed    int            `json:"allowed"`
	Denied     int            `json:"denied"`
	Cached     int            `json:"cached"`
	ByResource map[string]int `json:"byResource"`
}

// ExportFormat is an export encoding
type ExportFormat string

const (
	FormatJSON   ExportFormat = "json"
	FormatNDJSON ExportFormat = "ndjson"
	FormatCSV    ExportFormat = "csv"
)

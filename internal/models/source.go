package models

// SourceMode telemetry input mode
type SourceMode string

const (
	SourceSimulated SourceMode = "simulated"
	SourceLive      SourceMode = "live"
)

// SourceStatus active source as seen by the display layer
type SourceStatus struct {
	Mode      SourceMode `json:"mode"`
	Transport string     `json:"transport,omitempty"` // websocket / mqtt for live mode
	Target    string     `json:"target,omitempty"`
	Connected bool       `json:"connected"`
	LastError string     `json:"last_error,omitempty"`
}

// Summary online/total counters for the list header
type Summary struct {
	Online int `json:"online"`
	Total  int `json:"total"`
}

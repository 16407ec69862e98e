package models

// Status is the read-only composition polled by any front end: auth state,
// listener state, recent signals (most-recent-first) and account summaries.
type Status struct {
	Auth            AuthSnapshot `json:"auth"`
	ActiveChannelID int64        `json:"active_channel_id,omitempty"`
	SavedChannelID  int64        `json:"saved_channel_id,omitempty"`
	Listening       bool         `json:"listening"`
	RecentSignals   []Signal     `json:"recent_signals"`
	Accounts        []Summary    `json:"accounts"`
}

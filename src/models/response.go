package models

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// -----------------------------------------------------------------------------
// MMtmResponse is the body of GET /MTM (field names match the dashboard JS)
// -----------------------------------------------------------------------------

type MMtmResponse struct {
	Status     string  `json:"status"`
	Response   float64 `json:"response"`
	MaxMTM     float64 `json:"max_mtm"`
	MinMTM     float64 `json:"min_mtm"`
	OpeningMTM float64 `json:"opening_mtm"`
	Cached     bool    `json:"cached"`
	Error      string  `json:"error,omitempty"`
}

// -----------------------------------------------------------------------------
// MMtmUpdate is pushed to websocket clients after each fresh fetch
// -----------------------------------------------------------------------------

type MMtmUpdate struct {
	Type      string       `json:"type"` // "UPDATE"
	UserID    string       `json:"user_id"`
	Alias     string       `json:"alias"`
	Data      MMtmResponse `json:"data"`
	Timestamp int64        `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// MAccountSnapshot is the per-account debug view
// -----------------------------------------------------------------------------

type MAccountSnapshot struct {
	UserID        string           `json:"user_id"`
	Opening       MOpeningBaseline `json:"opening"`
	Stats         MAccountStats    `json:"stats"`
	HistoryPoints int              `json:"history_points"`
}

// -----------------------------------------------------------------------------
// MSubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string   `json:"command"`
	UserIDs []string `json:"user_ids"`
}

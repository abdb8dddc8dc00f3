package models

// MAccount is one trading account polled on its terminal machine.
type MAccount struct {
	UserID  string `json:"userId"`
	Address string `json:"ip"` // host:port of the terminal
	Alias   string `json:"alias"`
}

// MAccountsFile mirrors users.json as edited by the operators.
type MAccountsFile struct {
	OpeningTime    string     `json:"opening_mtm"`
	StartTime      string     `json:"start_time"`
	ChartStartTime string     `json:"chart_start_time"`
	Users          []MAccount `json:"users"`
}

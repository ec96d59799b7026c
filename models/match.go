package models

import "time"

// MatchRecord is the persisted summary of one finished match.
type MatchRecord struct {
	ID         int            `json:"id"`
	Mode       string         `json:"mode"`
	Winner     string         `json:"winner,omitempty"`
	Players    []string       `json:"players"`
	Scores     map[string]int `json:"scores"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

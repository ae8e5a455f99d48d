package dto

import "encoding/json"

// HealthStatus mirrors GET /health.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Position mirrors one row of GET /positions.
type Position struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Status       string  `json:"status"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	PnL          float64 `json:"pnl"`
}

// DashboardStats mirrors GET /dashboard/stats.
type DashboardStats struct {
	OpenPositions  int     `json:"open_positions"`
	TotalPositions int     `json:"total_positions"`
	PnL            float64 `json:"pnl"`
}

// Settings is the opaque configuration object behind GET/PUT /config.
type Settings = json.RawMessage

package model

import "time"

// Timestamps is embedded by catalog and user tables
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

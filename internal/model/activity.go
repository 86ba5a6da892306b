package model

import "time"

// Activity is a single audit trail entry. Entries are written best-effort
// and never block the operation they describe.
type Activity struct {
	ID        string
	UserID    string
	Action    string
	Details   string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

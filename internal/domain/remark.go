package domain

import "time"

// Remark is an audit note on a ticket's trail. Routing transitions append
// system remarks so the store can trace why a ticket moved.
type Remark struct {
	ID        string
	TicketID  string
	UserID    string
	Text      string
	CreatedAt time.Time
}

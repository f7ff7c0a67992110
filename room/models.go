package room

import (
	"fmt"
	"time"
)

// Room captures the rentable unit with its housing area resolved.
type Room struct {
	ID        string
	AreaID    string
	AreaName  string
	OwnerID   string
	Name      string
	Number    string
	CreatedAt time.Time
}

// Label renders the human-readable identifier used in notifications.
func (r Room) Label() string {
	if r.Number == "" {
		return fmt.Sprintf("%s, %s", r.Name, r.AreaName)
	}
	return fmt.Sprintf("%s %s, %s", r.Name, r.Number, r.AreaName)
}

// CreateParams contains write parameters for registering a room.
type CreateParams struct {
	AreaID  string
	OwnerID string
	Name    string
	Number  string
}

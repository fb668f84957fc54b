package models

import "time"

// Admin is an entry of the admin registry. Presence grants review rights.
type Admin struct {
	Email     string
	CreatedAt time.Time
}

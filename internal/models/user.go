package models

type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// User mirrors the users table joined with access_control.
// ID is the Telegram user id and never changes; Handle is the
// Telegram username and is resynced opportunistically.
type User struct {
	ID           int64
	Name         string
	Handle       string
	Gender       Gender
	Notification bool
	Hidden       bool
	Tier         int
}

// PrettyHandle returns "@handle", or "privated" when the user has
// no username on file.
func (u User) PrettyHandle() string {
	if u.Handle == "" {
		return "privated"
	}
	return "@" + u.Handle
}

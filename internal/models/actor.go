package models

// Actor identifies who performed an operation. It is passed explicitly to
// every mutating service call and recorded in audit fields.
type Actor struct {
	ID       string
	Username string
}

// SystemActor is used for scheduled sweeps.
var SystemActor = Actor{ID: "system", Username: "system"}

// String returns the username, falling back to the ID.
func (a Actor) String() string {
	if a.Username != "" {
		return a.Username
	}
	return a.ID
}

// IsZero reports whether no actor was supplied.
func (a Actor) IsZero() bool {
	return a.ID == "" && a.Username == ""
}

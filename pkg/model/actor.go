package model

// Actor identifies the caller of a service operation. The zero value is an
// anonymous caller.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) Anonymous() bool {
	return a.UserID == ""
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsVendor() bool {
	return a.Role == RoleVendor
}

func (a Actor) Owns(userID string) bool {
	return a.UserID != "" && a.UserID == userID
}

package model

import "time"

const (
	RoleUser   = "user"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

type User struct {
	ID             string     `json:"id,omitempty" bson:"_id,omitempty"`
	Username       string     `json:"username" bson:"username" validate:"required,min=2,max=50"`
	Email          string     `json:"email" bson:"email" validate:"required,email,max=254"`
	Phone          string     `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	PasswordHash   string     `json:"-" bson:"password_hash"`
	Role           string     `json:"role" bson:"role" validate:"required,oneof=user vendor admin"`
	IsVerified     bool       `json:"is_verified" bson:"is_verified"`
	Address        string     `json:"address,omitempty" bson:"address,omitempty" validate:"omitempty,max=300"`
	ProfilePicture string     `json:"profile_picture,omitempty" bson:"profile_picture,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" bson:"last_login_at,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type UserProfileUpdate struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=2,max=50"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=300"`
}

type UserFilter struct {
	Role       string
	IsVerified *bool
	Search     string
}

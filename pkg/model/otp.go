package model

import "time"

const (
	OTPPurposeVerify = "verify"
	OTPPurposeReset  = "reset"
)

// OTP is a one-time code sent by email. Only its bcrypt hash is stored.
type OTP struct {
	ID        string    `bson:"_id" json:"-"`
	Email     string    `bson:"email" json:"email"`
	Purpose   string    `bson:"purpose" json:"purpose"`
	CodeHash  string    `bson:"code_hash" json:"-"`
	Attempts  int       `bson:"attempts" json:"attempts"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func OTPKey(email, purpose string) string {
	return purpose + ":" + email
}

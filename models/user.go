package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleWorker  Role = "worker"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role works on reports rather than filing them.
func (r Role) IsStaff() bool {
	return r == RoleWorker || r == RoleAdmin
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone" json:"phone"`
	Password     string             `bson:"password,omitempty" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	IsVerified   bool               `bson:"isVerified" json:"isVerified"`
	IsBlocked    bool               `bson:"isBlocked" json:"isBlocked"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	AssignedZone string             `bson:"assignedZone,omitempty" json:"assignedZone,omitempty"`

	ReportsSubmitted int `bson:"reportsSubmitted" json:"reportsSubmitted"`
	ReportsResolved  int `bson:"reportsResolved" json:"reportsResolved"`

	LastLogin            *time.Time `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	PasswordChangedAt    *time.Time `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string     `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time `bson:"passwordResetExpires,omitempty" json:"-"`

	LoginAttempts int        `bson:"loginAttempts" json:"-"`
	LockUntil     *time.Time `bson:"lockUntil,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HashPassword replaces the plain password with its bcrypt hash.
func (u *User) HashPassword(cost int) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}

// IsLocked reports whether a lockout is still in force at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at issuedAt. Both sides are compared at second precision.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

func (u *User) Status() string {
	switch {
	case u.IsBlocked:
		return "blocked"
	case !u.IsActive:
		return "inactive"
	case !u.IsVerified:
		return "unverified"
	}
	return "active"
}

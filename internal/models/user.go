package models

import "time"

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	ProfileImage string     `json:"profileImage,omitempty"`
	PasswordHash string     `json:"password,omitempty"`
	IsAdmin      bool       `json:"isAdmin"`
	IsApproved   bool       `json:"isApproved"`
	IsBlocked    bool       `json:"isBlocked"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// HasPassword is false for users that only ever signed in through a federated provider.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// CanParticipate reports whether the user may use authenticated features.
func (u User) CanParticipate() bool {
	return u.IsApproved && !u.IsBlocked
}

// UserPatch carries the fields of a partial user update. Nil fields are left untouched.
type UserPatch struct {
	Name         *string
	ProfileImage *string
	PasswordHash *string
	IsAdmin      *bool
	IsApproved   *bool
	IsBlocked    *bool
	LastLogin    *time.Time
}

func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.ProfileImage != nil {
		u.ProfileImage = *p.ProfileImage
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
	if p.IsApproved != nil {
		u.IsApproved = *p.IsApproved
	}
	if p.IsBlocked != nil {
		u.IsBlocked = *p.IsBlocked
	}
	if p.LastLogin != nil {
		t := *p.LastLogin
		u.LastLogin = &t
	}
}

package models

import (
	"time"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// ParseGender maps free-form input onto the enum, defaulting to Other.
func ParseGender(s string) (Gender, bool) {
	switch Gender(s) {
	case GenderMale, GenderFemale, GenderOther:
		return Gender(s), true
	case "":
		return GenderOther, true
	}
	return "", false
}

// Client is a journal recipient. Credentials stay out of JSON.
type Client struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	Gender      Gender     `json:"gender"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Background  string     `json:"background"`
	IsActive    bool       `json:"isActive"`

	FileUploads []ClientFile `json:"fileUploads"`
	Notes       []ClientNote `json:"notes,omitempty"`

	// Internal only
	PasswordHash   string     `json:"-"`
	InviteToken    string     `json:"-"`
	InviteIssuedAt *time.Time `json:"-"`
}

// FullName is the name used in prompts.
func (c *Client) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type ClientFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Mimetype string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// ClientNote is an append-only entry on a client record.
type ClientNote struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Body      string    `json:"body"`
}

// ClientUpdate carries a partial profile edit; nil fields are left untouched.
type ClientUpdate struct {
	FirstName   *string
	LastName    *string
	Email       *string
	Gender      *Gender
	DateOfBirth *time.Time
	Background  *string
}

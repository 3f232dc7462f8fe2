package model

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UserType describes how an account was provisioned and therefore how it
// authenticates. Provider-scoped types additionally carry a DomainID.
type UserType string

const (
	// TypeLocal is a self-service account authenticated by a local password.
	TypeLocal UserType = "local"
	// TypeExternal is an account provisioned by a trusted external integration.
	TypeExternal UserType = "external"
	// TypeOAuth is an account linked to an OAuth identity provider.
	TypeOAuth UserType = "oauth"
)

// Right is a named capability held on an account. Absence of a right blocks
// the corresponding action.
type Right string

// RightLogin gates whether the account may authenticate at all. It is
// stripped while an account is pending email confirmation.
const RightLogin Right = "login"

// Address groups the contact fields of a user profile.
type Address struct {
	Email   string `bson:"email"`
	Country string `bson:"country"`
}

// GroupMembership links a user to a group. Memberships have no lifecycle of
// their own beyond the owning user.
type GroupMembership struct {
	GroupID   bson.ObjectID `bson:"group_id"`
	CreatedAt time.Time     `bson:"created_at"`
}

// User represents an account in the identity system.
type User struct {
	ID       bson.ObjectID `bson:"_id,omitempty"`
	Login    string        `bson:"login"`
	Type     UserType      `bson:"type"`
	DomainID int64         `bson:"domain_id,omitempty"`

	// ExternalType names the trusted integration that provisioned the
	// account, empty for self-service registrations.
	ExternalType string `bson:"external_type,omitempty"`

	PasswordHash    string `bson:"password_hash,omitempty"`
	ActivationToken string `bson:"activation_token,omitempty"`

	FirstName                 string  `bson:"first_name,omitempty"`
	LastName                  string  `bson:"last_name,omitempty"`
	Address                   Address `bson:"address"`
	LanguageID                int64   `bson:"language_id"`
	TimeZoneID                string  `bson:"timezone_id"`
	PictureURI                string  `bson:"picture_uri,omitempty"`
	ShowContactDataToContacts bool    `bson:"show_contact_data_to_contacts"`

	Rights           []Right           `bson:"rights"`
	GroupMemberships []GroupMembership `bson:"group_memberships"`

	LastLoginAt time.Time `bson:"last_login_at,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// NewUser returns a local user populated with the system defaults. Callers
// fill in profile fields and pass the finished value to the repository in a
// single save, so collaborators never observe a half-built account.
func NewUser(languageID int64, timeZoneID string) *User {
	return &User{
		Type:       TypeLocal,
		LanguageID: languageID,
		TimeZoneID: timeZoneID,
		Rights:     []Right{RightLogin},
	}
}

// HasRight reports whether the user holds the given capability.
func (u *User) HasRight(r Right) bool {
	return slices.Contains(u.Rights, r)
}

// GrantRight adds the capability if it is not already held.
func (u *User) GrantRight(r Right) {
	if !u.HasRight(r) {
		u.Rights = append(u.Rights, r)
	}
}

// RevokeRight removes the capability if held.
func (u *User) RevokeRight(r Right) {
	u.Rights = slices.DeleteFunc(u.Rights, func(held Right) bool { return held == r })
}

// AddGroup appends a membership in the given group.
func (u *User) AddGroup(groupID bson.ObjectID) {
	u.GroupMemberships = append(u.GroupMemberships, GroupMembership{
		GroupID:   groupID,
		CreatedAt: time.Now(),
	})
}

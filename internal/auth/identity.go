// Package auth resolves who is calling and what they may touch.
package auth

import (
	"context"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
)

type Role int

const (
	RoleAdmin Role = iota + 1
	RoleClient
)

// Identity is the resolved caller. The zero value is unauthenticated.
type Identity struct {
	role     Role
	name     string
	clientID string
}

func Admin(name string) Identity {
	return Identity{role: RoleAdmin, name: name}
}

func Client(id, email string) Identity {
	return Identity{role: RoleClient, name: email, clientID: id}
}

func (i Identity) Role() Role { return i.role }

func (i Identity) IsAdmin() bool { return i.role == RoleAdmin }

func (i Identity) IsClient() bool { return i.role == RoleClient }

func (i Identity) Authenticated() bool { return i.role != 0 }

// Name is the admin username or the client's email.
func (i Identity) Name() string { return i.name }

// ClientID is empty unless the caller is a client.
func (i Identity) ClientID() string { return i.clientID }

// RequireAdmin fails with Forbidden for anything but the administrator.
func RequireAdmin(id Identity) error {
	if !id.Authenticated() {
		return apperr.Newf(apperr.Unauthenticated, "Authentication required.")
	}
	if !id.IsAdmin() {
		return apperr.Newf(apperr.Forbidden, "Forbidden")
	}
	return nil
}

// CanAccessClient lets the administrator through and a client only to itself.
func CanAccessClient(id Identity, clientID string) error {
	switch {
	case id.IsAdmin():
		return nil
	case id.IsClient() && id.clientID == clientID:
		return nil
	case !id.Authenticated():
		return apperr.Newf(apperr.Unauthenticated, "Authentication required.")
	}
	return apperr.Newf(apperr.Forbidden, "Forbidden")
}

// CanAccessJournal applies the ownership rule to a loaded journal.
func CanAccessJournal(id Identity, j *models.Journal) error {
	return CanAccessClient(id, j.ClientID)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the auth middleware, or the zero Identity.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}

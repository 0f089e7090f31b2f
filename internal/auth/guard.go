package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/pkg/utils"
)

// ClientFinder looks a client up by email. It returns an apperr NotFound when
// there is no such client.
type ClientFinder interface {
	FindClientByEmail(ctx context.Context, email string) (*models.Client, error)
}

// Guard turns an Authorization header into an Identity. Nothing is cached
// between calls.
type Guard struct {
	adminUser string
	adminPass string
	clients   ClientFinder
}

func NewGuard(adminUser, adminPass string, clients ClientFinder) *Guard {
	return &Guard{adminUser: adminUser, adminPass: adminPass, clients: clients}
}

// NormalizeHeader rewrites "Bearer x" to "Basic x". Any other scheme is
// returned unchanged and rejected later.
func NormalizeHeader(header string) string {
	header = strings.TrimSpace(header)
	scheme, rest, ok := strings.Cut(header, " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return "Basic " + strings.TrimSpace(rest)
	}
	return header
}

// ParseBasic decodes a "Basic base64(identity:passphrase)" header.
func ParseBasic(header string) (identity, passphrase string, err error) {
	scheme, encoded, ok := strings.Cut(strings.TrimSpace(header), " ")
	if header == "" {
		return "", "", apperr.Newf(apperr.Unauthenticated, "Missing Authorization header.")
	}
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return "", "", apperr.Newf(apperr.Unauthenticated, "Unsupported authorization scheme.")
	}
	raw, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if decErr != nil {
		return "", "", apperr.New(apperr.Unauthorized, "Malformed credentials.", decErr)
	}
	identity, passphrase, ok = strings.Cut(string(raw), ":")
	if !ok {
		return "", "", apperr.Newf(apperr.Unauthorized, "Malformed credentials.")
	}
	return identity, passphrase, nil
}

// Resolve authenticates the raw Authorization header.
func (g *Guard) Resolve(ctx context.Context, header string) (Identity, error) {
	identity, passphrase, err := ParseBasic(NormalizeHeader(header))
	if err != nil {
		return Identity{}, err
	}

	if g.isAdmin(identity, passphrase) {
		return Admin(identity), nil
	}

	if !strings.Contains(identity, "@") {
		return Identity{}, apperr.Newf(apperr.Forbidden, "Invalid credentials")
	}

	client, err := g.clients.FindClientByEmail(ctx, strings.TrimSpace(identity))
	switch {
	case apperr.IsKind(err, apperr.NotFound):
		return Identity{}, apperr.Newf(apperr.Forbidden, "Invalid credentials")
	case err != nil:
		return Identity{}, err
	}
	if !client.IsActive {
		return Identity{}, apperr.Newf(apperr.Forbidden, "Invalid credentials")
	}

	ok, err := utils.VerifyPassword(passphrase, client.PasswordHash)
	if err != nil || !ok {
		return Identity{}, apperr.Newf(apperr.Forbidden, "Invalid credentials")
	}
	return Client(client.ID, client.Email), nil
}

func (g *Guard) isAdmin(identity, passphrase string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(identity), []byte(g.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(passphrase), []byte(g.adminPass)) == 1
	return userOK && passOK
}

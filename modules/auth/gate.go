package auth

import (
	"errors"
	"log/slog"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/store"
)

// RejectReason tags why a connection attempt was refused.
type RejectReason string

const (
	RejectTokenMissing RejectReason = "token_missing"
	RejectTokenInvalid RejectReason = "token_invalid"
	RejectUserNotFound RejectReason = "user_not_found"
)

// Rejection is the tagged refusal of a connection attempt.
type Rejection struct {
	Reason RejectReason
}

// Directory resolves user ids to profiles. Satisfied by the store's
// UserRepository.
type Directory interface {
	FindByID(id string) (*domain.User, error)
}

// AuthorizedConnection is the identity attached to an admitted connection,
// immutable for the connection's lifetime.
type AuthorizedConnection struct {
	User     domain.User
	DeviceID string
}

// Gate authenticates inbound connection attempts before any session state
// is created. Registration with the session registry is the caller's job,
// after admission succeeds.
type Gate struct {
	jwt       *JWTManager
	directory Directory
	logger    *slog.Logger
}

// NewGate creates a connection gate.
func NewGate(jwt *JWTManager, directory Directory) *Gate {
	return &Gate{
		jwt:       jwt,
		directory: directory,
		logger:    slog.Default(),
	}
}

// Admit validates the credential and resolves the user. It never panics
// past this boundary: every failure maps to a tagged rejection, and a nil
// rejection means the connection may proceed.
func (g *Gate) Admit(token, deviceID string) (*AuthorizedConnection, *Rejection) {
	if token == "" {
		return nil, &Rejection{Reason: RejectTokenMissing}
	}

	claims, err := g.jwt.Verify(token)
	if err != nil {
		return nil, &Rejection{Reason: RejectTokenInvalid}
	}

	user, err := g.directory.FindByID(claims.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			g.logger.Error("directory lookup failed", "userID", claims.UserID, "error", err)
		}
		return nil, &Rejection{Reason: RejectUserNotFound}
	}

	return &AuthorizedConnection{
		User:     *user,
		DeviceID: deviceID,
	}, nil
}

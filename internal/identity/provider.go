// Package identity defines the external identity-provider contract the auth
// flow delegates to, and ships a postgres-backed binding so the API runs
// without a hosted provider. Swapping in Cognito, Supabase or similar means
// implementing Provider; nothing above this package changes.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/greenleaf/storefront-api/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserAlreadyExists  = errors.New("an account with this email already exists")
	ErrUserNotFound       = errors.New("no account found for this email")
	ErrNotConfirmed       = errors.New("email not confirmed")
	ErrInvalidCode        = errors.New("invalid or expired code")
)

// Record is what the provider asserts about a principal. RoleAttr is the
// provider-side role attribute; it is input to ResolveRole, never trusted from
// a client.
type Record struct {
	ID       uuid.UUID
	Email    string
	Name     string
	RoleAttr string
	Phone    string
	Address  string
}

type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Record, error)
	// SignUp creates a pending account and dispatches a confirmation code to
	// the supplied email.
	SignUp(ctx context.Context, name, email, password string) error
	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendCode(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
	SignOut(ctx context.Context, id uuid.UUID) error
	GetRecord(ctx context.Context, id uuid.UUID) (*Record, error)
}

// ResolveRole derives the session role from the provider record. Admin iff the
// provider's role attribute says so or the email is on the configured admin
// allowlist. Resolved once per login or session restore and carried in the
// signed token from then on.
func ResolveRole(rec *Record, adminEmails []string) model.Role {
	if rec.RoleAttr == string(model.RoleAdmin) {
		return model.RoleAdmin
	}
	for _, email := range adminEmails {
		if strings.EqualFold(email, rec.Email) {
			return model.RoleAdmin
		}
	}
	return model.RoleCustomer
}

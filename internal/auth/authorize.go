package auth

import (
	"context"
	"errors"
	"strings"
)

// Role names recognised by the asset service.
const (
	RoleAdmin        = "admin"
	RoleAssetManager = "asset_manager"
)

// ManagerRoles gate asset creation, updates, status changes, imports and
// maintenance logging.
var ManagerRoles = []string{RoleAssetManager, RoleAdmin}

var (
	// ErrUnauthenticated means no verified identity was supplied.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the identity lacks every required role.
	ErrForbidden = errors.New("insufficient permissions")
)

// Authorize checks a caller's role set against the roles an operation
// requires. Holding any required role is enough; admin satisfies every
// requirement. No required roles means any authenticated caller passes.
func Authorize(have []string, required ...string) error {
	if len(required) == 0 {
		return nil
	}
	for _, role := range have {
		if role == RoleAdmin {
			return nil
		}
	}
	for _, want := range required {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		for _, role := range have {
			if role == want {
				return nil
			}
		}
	}
	return ErrForbidden
}

// RequireRoles runs Authorize against the identity stored in ctx.
func RequireRoles(ctx context.Context, required ...string) error {
	if ClaimsFromContext(ctx) == nil {
		return ErrUnauthenticated
	}
	return Authorize(RolesFromContext(ctx), required...)
}

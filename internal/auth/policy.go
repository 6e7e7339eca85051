package auth

import (
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Principal is the requester as established by a verified token.
type Principal struct {
	AccountID string
	IsAdmin   bool
}

// CanonicalID is the single representation used when comparing account
// identifiers from tokens, paths and stores.
func CanonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// AuthorizeSelfOrAdmin permits p to act on the resource owned by ownerID
// when p owns it or p is an admin.
func AuthorizeSelfOrAdmin(p *Principal, ownerID string) error {
	if p == nil || CanonicalID(p.AccountID) == "" {
		return ErrUnauthenticated
	}
	if p.IsAdmin {
		return nil
	}
	owner := CanonicalID(ownerID)
	if owner == "" || owner != CanonicalID(p.AccountID) {
		return ErrForbidden
	}
	return nil
}

func AuthorizeAdmin(p *Principal) error {
	if p == nil || CanonicalID(p.AccountID) == "" {
		return ErrUnauthenticated
	}
	if !p.IsAdmin {
		return ErrForbidden
	}
	return nil
}

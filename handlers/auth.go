package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"streampick/models"
)

// AuthChecker resolves the caller identity for write endpoints. A nil
// AuthInfo with a nil error means anonymous.
type AuthChecker interface {
	Check(r *http.Request) (*models.AuthInfo, error)
}

// ErrBadCredentials is returned when a key was presented but does not match.
var ErrBadCredentials = errors.New("invalid api key")

// APIKeyChecker validates a static key from the Authorization bearer header
// or the X-Api-Key header and grants the owner role. The key is read
// per-request so settings changes apply without a restart.
type APIKeyChecker struct {
	getKey func() string
}

func NewAPIKeyChecker(getKey func() string) *APIKeyChecker {
	return &APIKeyChecker{getKey: getKey}
}

func (c *APIKeyChecker) Check(r *http.Request) (*models.AuthInfo, error) {
	presented := strings.TrimSpace(r.Header.Get("X-Api-Key"))
	if presented == "" {
		auth := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			presented = strings.TrimSpace(after)
		}
	}
	if presented == "" {
		return nil, nil
	}

	want := c.getKey()
	if want == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(want)) != 1 {
		return nil, ErrBadCredentials
	}

	return &models.AuthInfo{Username: "owner", Role: models.RoleOwner}, nil
}

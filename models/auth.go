package models

// Role levels recognised by the API surface.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// AuthInfo describes the authenticated caller of a request.
type AuthInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Elevated reports whether the caller may perform privileged writes.
func (a AuthInfo) Elevated() bool {
	return a.Role == RoleOwner || a.Role == RoleAdmin
}

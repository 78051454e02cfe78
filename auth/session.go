package auth

import (
	"os"

	"github.com/dgrijalva/jwt-go"
)

// Role is the client-held role string used for presentation-layer gating.
// It is unauthenticated metadata: rendering decisions may depend on it,
// but the authoritative check always happens server-side
type Role string

// The roles the portal front end distinguishes
const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Session is the explicit authentication context handed to the repository
// client and page controllers at construction time, replacing ad-hoc reads
// of ambient browser storage
type Session struct {
	token string
	role  Role
}

// NewSession creates a session from an already-known token and role
func NewSession(token string, role Role) *Session {
	return &Session{
		token: token,
		role:  role,
	}
}

// Anonymous creates a session without credentials;
// requests carry no Authorization header and no mutation controls render
func Anonymous() *Session {
	return &Session{}
}

// NewSessionFromToken creates a session whose display role is read from the
// token's claims without verifying the signature. Verification is the
// server's job; the extracted role only drives what the UI shows
func NewSessionFromToken(token string) *Session {
	session := &Session{token: token}

	parser := jwt.Parser{}
	claims := Claims{}
	_, _, err := parser.ParseUnverified(token, &claims)
	if err == nil {
		session.role = Role(claims.Role)
	}

	return session
}

// NewSessionFromEnv creates a session from the PORTAL_AUTH_TOKEN environment
// variable, falling back to an anonymous session when it is unset
func NewSessionFromEnv() *Session {
	token, exists := os.LookupEnv("PORTAL_AUTH_TOKEN")
	if !exists || token == "" {
		return Anonymous()
	}
	return NewSessionFromToken(token)
}

// Token gets the raw bearer token, or an empty string for anonymous sessions
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// HasToken determines whether the session carries credentials
func (s *Session) HasToken() bool {
	return s != nil && s.token != ""
}

// Role gets the client-held role string
func (s *Session) Role() Role {
	if s == nil {
		return ""
	}
	return s.role
}

// IsAdmin determines whether mutation controls should render for this
// session. This is a UX affordance, not a security boundary
func (s *Session) IsAdmin() bool {
	return s != nil && s.role == RoleAdmin
}

package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/jwtauth"

	"github.com/dse-portal/noticeboard/env"
	"github.com/dse-portal/noticeboard/util"
)

// JWTManager contains the secret loaded from the environment
type JWTManager struct {
	Auth       *jwtauth.JWTAuth
	secret     []byte
	BypassAuth bool
}

// Claims contains the data used to store a JWT's associated session info
type Claims struct {
	Username     string `json:"sub"`
	Role         string `json:"portal:role"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAfter *int64 `json:"portal:exa,omitempty"`
}

// NewClaims creates the claims for a username/role pair issued now
func NewClaims(username string, role Role, expiresAfter *int64) *Claims {
	return &Claims{
		Username:     username,
		Role:         string(role),
		IssuedAt:     time.Now().Unix(),
		ExpiresAfter: expiresAfter,
	}
}

// Valid determines if the claims struct is valid by ensuring it has a username
// and that the issued at date + expires after is not in the past
func (c *Claims) Valid() error {
	if c.Username == "" {
		return errors.New("claims cannot have empty username")
	}

	// Make sure the claim has not expired
	if c.ExpiresAfter != nil {
		issuedAt := time.Unix(c.IssuedAt, 0)
		expiresAt := issuedAt.Add(time.Duration(*c.ExpiresAfter) * time.Hour)
		if expiresAt.Before(time.Now()) {
			return errors.New("claims are expired")
		}
	}

	return nil
}

// NewJWTManager creates a new JWTManager
// and loads the secret from the environment
func NewJWTManager() (*JWTManager, error) {
	jwtSecretStr, err := env.GetEnv("auth JWT secret key", "AUTH_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	// Try to see if the server should bypass authentication
	bypassAuth := false
	if value, ok := os.LookupEnv("AUTH_BYPASS"); ok {
		if strings.TrimSpace(value) == "1" {
			bypassAuth = true
		}
	}

	// Parse the string into bytes
	encoding := base64.StdEncoding.WithPadding(base64.StdPadding)
	secretBytes, err := encoding.DecodeString(jwtSecretStr)
	if err != nil {
		return nil, err
	}

	return NewJWTManagerWithSecret(secretBytes, bypassAuth), nil
}

// NewJWTManagerWithSecret creates a new JWTManager around a raw secret,
// used directly by test fixtures
func NewJWTManagerWithSecret(secret []byte, bypassAuth bool) *JWTManager {
	// Create the instance of the auth used for middleware
	tokenAuth := jwtauth.New("HS256", secret, nil)

	return &JWTManager{
		Auth:       tokenAuth,
		secret:     secret,
		BypassAuth: bypassAuth,
	}
}

// IssueJWT creates and signs a new JWT for the given username/role
func (m *JWTManager) IssueJWT(username string, role Role, expiresAfter *int64) *jwt.Token {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, NewClaims(username, role, expiresAfter))
}

// SignToken signs a JWT using the internal secret
func (m *JWTManager) SignToken(token *jwt.Token) (string, error) {
	// Sign and get the complete encoded token as a string
	// using the secret
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	return tokenString, err
}

type key int

// BypassAuthContextKey is the key to access the BypassAuth boolean field
// on request contexts that are processed by the Authenticated middleware
const BypassAuthContextKey key = iota

// Authenticated handles seeking, verifying, and validating JWT tokens,
// sending appropriate status codes upon failure.
func (m *JWTManager) Authenticated() func(http.Handler) http.Handler {
	// Seek, verify and validate JWT tokens
	verifier := jwtauth.Verify(m.Auth, jwtauth.TokenFromHeader)
	return func(next http.Handler) http.Handler {
		if m.BypassAuth {
			// Skip authentication
			verified := verifier(next)
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// Attach a value to the context
				ctx := context.WithValue(r.Context(), BypassAuthContextKey, true)

				// Pass it through
				verified.ServeHTTP(w, r.WithContext(ctx))
			})
		}

		// Compose the verifier and authenticator functions
		return verifier(authenticator(next))
	}
}

// AdminAuthenticated handles ensuring that the user has a valid token
// and is authorized (has the admin role) to mutate posts
func AdminAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if value, ok := r.Context().Value(BypassAuthContextKey).(bool); ok && value == true {
			// Skip authentication
			next.ServeHTTP(w, r)
			return
		}

		_, claims, err := FromContext(r.Context())
		if err != nil {
			unauthorized(w)
			return
		}

		// Make sure the user has the admin role
		if claims == nil || Role(claims.Role) != RoleAdmin {
			unauthorized(w)
			return
		}

		// User is authorized, pass it through
		next.ServeHTTP(w, r)
	})
}

// FromContext extracts the token and claims from the context
func FromContext(ctx context.Context) (*jwt.Token, *Claims, error) {
	token, _ := ctx.Value(jwtauth.TokenCtxKey).(*jwt.Token)
	err, _ := ctx.Value(jwtauth.ErrorCtxKey).(error)

	var claims *Claims = nil
	if token != nil {
		switch tokenClaims := token.Claims.(type) {
		case *Claims:
			claims = tokenClaims
		case jwt.MapClaims:
			// The jwtauth verifier decodes into a claims map
			claims = claimsFromMap(tokenClaims)
		default:
			err = errors.New("invalid claim type")
		}
	}

	return token, claims, err
}

// claimsFromMap converts the generic claims map produced by the jwtauth
// verifier into the typed claims struct
func claimsFromMap(m jwt.MapClaims) *Claims {
	claims := &Claims{}
	if username, ok := m["sub"].(string); ok {
		claims.Username = username
	}
	if role, ok := m["portal:role"].(string); ok {
		claims.Role = role
	}
	if issuedAt, ok := m["iat"].(float64); ok {
		claims.IssuedAt = int64(issuedAt)
	}
	if expiresAfter, ok := m["portal:exa"].(float64); ok {
		value := int64(expiresAfter)
		claims.ExpiresAfter = &value
	}
	return claims
}

// authenticator sends an error response if token validation failed
func authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := FromContext(r.Context())

		if err != nil {
			unauthorized(w)
			return
		}

		if token == nil || !token.Valid {
			unauthorized(w)
			return
		}

		// Token is authenticated, pass it through
		next.ServeHTTP(w, r)
	})
}

// unauthorized sends a response message in the case that validation fails
func unauthorized(w http.ResponseWriter) {
	util.ErrorWithCode(w, errors.New("user is not authorized to access resource"),
		http.StatusUnauthorized)
}

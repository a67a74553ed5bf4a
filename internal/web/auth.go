package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vidtube/internal/video"
)

const RoleAdmin = "admin"

var (
	ErrUnauthenticated = errors.New("unauthorized request")
	ErrForbidden       = errors.New("not authorized")
)

// Identity is the authenticated caller.
type Identity struct {
	ID       string
	Username string
	FullName string
	Avatar   string
	Role     string
}

// Owner is the projection stored with the records the caller creates.
func (i *Identity) Owner() video.Owner {
	return video.Owner{ID: i.ID, Username: i.Username, FullName: i.FullName, Avatar: i.Avatar}
}

// CanModify reports whether the caller may change a record owned by ownerID.
func (i *Identity) CanModify(ownerID string) bool {
	return i != nil && (i.ID == ownerID || i.Role == RoleAdmin)
}

type identityKey struct{}

func withIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller set by Authenticator.Require, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

type claims struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 access tokens issued by the account service.
type Authenticator struct {
	secret     []byte
	cookieName string
}

func NewAuthenticator(secret, cookieName string) *Authenticator {
	if cookieName == "" {
		cookieName = "accessToken"
	}
	return &Authenticator{secret: []byte(secret), cookieName: cookieName}
}

// Issue signs a token for id. Used by the token command and in tests.
func (a *Authenticator) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Username: id.Username,
		FullName: id.FullName,
		Avatar:   id.Avatar,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

func (a *Authenticator) Verify(tokenStr string) (*Identity, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return nil, ErrUnauthenticated
	}
	if c.Subject == "" {
		return nil, ErrUnauthenticated
	}
	return &Identity{
		ID:       c.Subject,
		Username: c.Username,
		FullName: c.FullName,
		Avatar:   c.Avatar,
		Role:     c.Role,
	}, nil
}

func (a *Authenticator) token(r *http.Request) string {
	if cookie, err := r.Cookie(a.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	const bearerPrefix = "Bearer "
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, bearerPrefix))
}

// Require rejects requests without a valid access token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := a.token(r)
		if tokenStr == "" {
			sendJSONError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
			return
		}
		id, err := a.Verify(tokenStr)
		if err != nil {
			sendJSONError(w, http.StatusUnauthorized, "invalid access token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

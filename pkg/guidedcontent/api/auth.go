package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// AdminKeyHeader carries the shared admin key.
const AdminKeyHeader = "X-Admin-Key"

// AuthConfig configures the single admin identity. A request is admitted
// when its X-Admin-Key hashes to AdminKeySHA256 or its bearer token
// verifies against JWTSecret.
type AuthConfig struct {
	AdminKeySHA256 string
	JWTSecret      string
}

// Enabled reports whether any credential is configured.
func (c AuthConfig) Enabled() bool {
	return c.AdminKeySHA256 != "" || c.JWTSecret != ""
}

// HashAdminKey returns the hex SHA-256 of key, the form AdminKeySHA256 expects.
func HashAdminKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// AdminAuth returns middleware enforcing cfg. With no credentials
// configured every request passes.
func AdminAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}

	var ja *jwtauth.JWTAuth
	if cfg.JWTSecret != "" {
		ja = jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)
	}
	want := strings.ToLower(strings.TrimSpace(cfg.AdminKeySHA256))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get(AdminKeyHeader); key != "" && want != "" {
				if subtle.ConstantTimeCompare([]byte(HashAdminKey(key)), []byte(want)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			if ja != nil && jwtauth.TokenFromHeader(r) != "" {
				if _, err := jwtauth.VerifyRequest(ja, r, jwtauth.TokenFromHeader); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{Error: "admin credentials required", Kind: guidedcontent.ErrorKind("unauthorized")})
		})
	}
}

// IssueToken signs an admin bearer token with secret.
func IssueToken(secret string, claims map[string]interface{}) (string, error) {
	ja := jwtauth.New("HS256", []byte(secret), nil)
	_, token, err := ja.Encode(claims)
	return token, err
}

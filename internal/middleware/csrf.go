package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"taskhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionName    = "taskhub_session"
	csrfSessionKey = "csrf_token"
	csrfFormField  = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
)

// NewSessionStore builds the cookie-backed session store the CSRF guard
// keeps its token in. The session cookie is signed, so clients cannot mint
// their own tokens.
func NewSessionStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// CSRF implements the synchronizer-token pattern for the cookie-based web
// flow. Safe methods mint (or reuse) the per-session token and expose it via
// the context; mutating methods must echo it in the form field or header.
func CSRF(store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get falls back to a fresh session when the cookie is missing
		// or fails signature checks.
		session, _ := store.Get(c.Request, sessionName)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			token, ok := session.Values[csrfSessionKey].(string)
			if !ok || token == "" {
				minted, err := mintCSRFToken()
				if err != nil {
					response.Error(c, http.StatusInternalServerError, "CSRF_MINT_FAILED", "Failed to issue CSRF token")
					c.Abort()
					return
				}
				session.Values[csrfSessionKey] = minted
				if err := session.Save(c.Request, c.Writer); err != nil {
					response.Error(c, http.StatusInternalServerError, "CSRF_MINT_FAILED", "Failed to issue CSRF token")
					c.Abort()
					return
				}
				token = minted
			}
			c.Set("csrf_token", token)
			c.Next()

		default:
			stored, _ := session.Values[csrfSessionKey].(string)
			submitted := c.PostForm(csrfFormField)
			if submitted == "" {
				submitted = c.GetHeader(csrfHeaderName)
			}

			if !csrfTokenValid(stored, submitted) {
				response.Error(c, http.StatusForbidden, "CSRF_INVALID", "CSRF token missing or invalid")
				c.Abort()
				return
			}
			c.Next()
		}
	}
}

func mintCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// csrfTokenValid compares in constant time. An absent session token fails
// every submission, including an empty one.
func csrfTokenValid(stored, submitted string) bool {
	if stored == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

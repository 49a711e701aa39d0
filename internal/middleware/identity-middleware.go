package middleware

import (
	"context"
	"html"
	"net"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

type contextKey string

const UserKey contextKey = "user"

// UserHeader names the participant a request is made on behalf of.
const UserHeader = "User"

var strict = bluemonday.StrictPolicy()

func getIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

const maxSanitizePasses = 8

// Sanitize strips markup from free text and trims surrounding space. The
// result is plain text, so entities escaped by the policy are decoded, and
// decoding repeats until no markup reappears.
func Sanitize(s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(strict.Sanitize(s))
		if next == s {
			return strings.TrimSpace(next)
		}
		s = next
	}
	return strings.TrimSpace(strict.Sanitize(s))
}

// RequireUser reads the User header into the request context and rejects
// requests without one with 422.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := Sanitize(r.Header.Get(UserHeader))
		if user == "" {
			http.Error(w, "User header is required", http.StatusUnprocessableEntity)
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(UserKey).(string)
	return user, ok && user != ""
}

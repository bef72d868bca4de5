package cookies

import (
	"net/http"
	"net/url"
	"strings"

	"campus-map-server/internal/shared/config"
)

// SessionCookieName carries the viewer session token.
const SessionCookieName = "map_session"

func SetSessionCookie(w http.ResponseWriter, token string) {
	cfg := config.GlobalConfig

	cookie := createSessionCookie()
	cookie.Value = token
	cookie.MaxAge = int(cfg.Auth.TokenExpiration.Seconds())

	http.SetCookie(w, cookie)
}

func ClearSessionCookie(w http.ResponseWriter) {
	cookie := createSessionCookie()
	cookie.Value = ""
	cookie.MaxAge = -1

	http.SetCookie(w, cookie)
}

// SessionToken reads the viewer token from the cookie, falling back to the
// "token" query parameter used by websocket clients that cannot send cookies.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

func createSessionCookie() *http.Cookie {
	cfg := config.GlobalConfig

	return &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		Domain:   extractDomain(cfg.Frontend.URL),
		HttpOnly: true,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: parseSameSite(cfg.Auth.CookieSameSite),
	}
}

func extractDomain(frontendURL string) string {
	parsedURL, err := url.Parse(frontendURL)
	if err != nil || parsedURL.Host == "" {
		return ""
	}

	host := strings.Split(parsedURL.Host, ":")[0]
	if host == "localhost" || host == "127.0.0.1" {
		return ""
	}

	return host
}

func parseSameSite(sameSiteStr string) http.SameSite {
	switch sameSiteStr {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

package auth

import (
	"net/http"
	"time"

	"github.com/hkaraoglu/dealer-auth/internal/config"
)

const (
	accessTokenCookieName  = "access_token"
	refreshTokenCookieName = "refresh_token"
)

// SetAuthCookies sets both tokens as httpOnly cookies
func SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, accessMaxAge, refreshMaxAge int, cfg config.CookieConfig) {
	setTokenCookie(w, accessTokenCookieName, accessToken, accessMaxAge, cfg)
	setTokenCookie(w, refreshTokenCookieName, refreshToken, refreshMaxAge, cfg)
}

// ClearAuthCookies clears both token cookies
func ClearAuthCookies(w http.ResponseWriter, cfg config.CookieConfig) {
	clearTokenCookie(w, accessTokenCookieName, cfg)
	clearTokenCookie(w, refreshTokenCookieName, cfg)
}

// GetAccessTokenCookie retrieves the access token from cookies
func GetAccessTokenCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(accessTokenCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// GetRefreshTokenCookie retrieves the refresh token from cookies
func GetRefreshTokenCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(refreshTokenCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func setTokenCookie(w http.ResponseWriter, name, value string, maxAge int, cfg config.CookieConfig) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  time.Now().Add(time.Duration(maxAge) * time.Second),
		MaxAge:   maxAge,
		HttpOnly: true, // Prevents JavaScript access (XSS protection)
		Secure:   cfg.Secure,
		SameSite: parseSameSite(cfg.SameSite),
	}
	http.SetCookie(w, cookie)
}

func clearTokenCookie(w http.ResponseWriter, name string, cfg config.CookieConfig) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: parseSameSite(cfg.SameSite),
	}
	http.SetCookie(w, cookie)
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

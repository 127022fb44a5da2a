package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/storm-intake/internal/logger"
)

// setCSRFCookie creates and sets a CSRF cookie with the given token value.
func setCSRFCookie(ctx echo.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: true,
		Secure:   IsSecureRequest(ctx.Request()),
		SameSite: http.SameSiteLaxMode,
	})
}

// GenerateCSRFToken creates a cryptographically secure CSRF token.
func GenerateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// EnsureCSRFToken returns the request's CSRF token, creating one when the
// middleware did not.
//
// Echo skips token generation for same-origin requests identified through
// Sec-Fetch-Site, so pages that embed the token call this instead of reading
// the context directly. The lookup order is the context, then the cookie,
// then a fresh token.
func EnsureCSRFToken(ctx echo.Context) (string, error) {
	if token, ok := ctx.Get(CSRFContextKey).(string); ok && token != "" {
		return token, nil
	}

	if cookie, err := ctx.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		ctx.Set(CSRFContextKey, cookie.Value)
		setCSRFCookie(ctx, cookie.Value)
		return cookie.Value, nil
	}

	token, err := GenerateCSRFToken()
	if err != nil {
		return "", err
	}

	setCSRFCookie(ctx, token)
	ctx.Set(CSRFContextKey, token)

	GetLogger().Debug("CSRF token generated",
		logger.Bool("secure_cookie", IsSecureRequest(ctx.Request())))

	return token, nil
}

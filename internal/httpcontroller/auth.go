package httpcontroller

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/logger"
)

const adminRealm = "STORM Defect Reports"

// BasicAuth protects the admin pages with the single admin credential.
// With no password hash configured every attempt is refused.
func (h *Handlers) BasicAuth() echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: adminRealm,
		Validator: func(user, password string, c echo.Context) (bool, error) {
			ok := checkCredentials(h.settings().Security, user, password)

			status := "success"
			if !ok {
				status = "failure"
				GetLogger().Warn("admin authentication failed",
					logger.String("remote_ip", c.RealIP()),
					logger.String("path", c.Request().URL.Path))
			}
			if h.httpMetrics != nil {
				h.httpMetrics.RecordAuthOperation(status)
			}

			return ok, nil
		},
	})
}

// checkCredentials compares user in constant time and the password
// against the bcrypt hash
func checkCredentials(sec conf.SecuritySettings, user, password string) bool {
	if sec.AdminUser == "" || sec.AdminPasswordHash == "" {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(sec.AdminUser)) == 1
	// always run bcrypt so a wrong user name takes as long as a wrong password
	passErr := bcrypt.CompareHashAndPassword([]byte(sec.AdminPasswordHash), []byte(password))

	return userOK && passErr == nil
}

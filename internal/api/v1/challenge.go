package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/storm-intake/internal/api/middleware"
	"github.com/tphakala/storm-intake/internal/captcha"
	"github.com/tphakala/storm-intake/internal/logger"
)

// ChallengeResponse carries fresh captcha operands and the anti-forgery
// token for non-browser clients
type ChallengeResponse struct {
	captcha.Challenge
	CSRFToken string `json:"csrf_token"`
}

// GetChallenge issues new captcha operands
func (c *Controller) GetChallenge(ctx echo.Context) error {
	token, err := mw.EnsureCSRFToken(ctx)
	if err != nil {
		GetLogger().Error("failed to issue CSRF token", logger.Error(err))
		return Fail(ctx, http.StatusInternalServerError, "Could not issue a security token.")
	}

	ctx.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return ctx.JSON(http.StatusOK, ChallengeResponse{
		Challenge: captcha.Issue(),
		CSRFToken: token,
	})
}

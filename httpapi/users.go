package httpapi

import (
	"net/http"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/middleware"
	"github.com/gin-gonic/gin"
)

// Uniform answer of forgot-password, whether or not the email is known.
const resetLinkSentMessage = "Forgot password link sent to your email"

type loginUser struct {
	Name         string                 `json:"name"`
	Email        string                 `json:"email"`
	Subscription phonebook.Subscription `json:"subscription"`
	Verified     bool                   `json:"verified"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	tokenPair
	User loginUser `json:"user"`
}

// POST /api/users/signup
func (h *handler) signup(c *gin.Context) {
	var req signupRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	view, err := h.engine.Signup(c.Request.Context(), phonebook.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": view})
}

// GET /api/users/verify/:verificationToken
func (h *handler) verifyEmail(c *gin.Context) {
	if err := h.engine.VerifyEmail(c.Request.Context(), c.Param("verificationToken")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification successful"})
}

// POST /api/users/verify
func (h *handler) resendVerification(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if err := h.engine.ResendVerification(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification email sent"})
}

// POST /api/users/login
func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	res, err := h.engine.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		tokenPair: tokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken},
		User: loginUser{
			Name:         res.User.Name,
			Email:        res.User.Email,
			Subscription: res.User.Subscription,
			Verified:     res.User.Verified,
		},
	})
}

// POST /api/users/refresh
func (h *handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	res, err := h.engine.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

// GET /api/users/logout
//
// Logout checks the token itself instead of going through the guard, so a
// repeated logout reports the missing session with 404.
func (h *handler) logout(c *gin.Context) {
	token, _ := middleware.BearerToken(c.GetHeader("Authorization"))
	if err := h.engine.LogoutToken(c.Request.Context(), token); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// POST /api/users/forgot-password
func (h *handler) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if err := h.engine.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": resetLinkSentMessage})
}

// PATCH /api/users/forgot-password-reset
func (h *handler) forgotPasswordReset(c *gin.Context) {
	var req resetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	err := h.engine.CompletePasswordReset(c.Request.Context(), req.Token, req.NewPassword, req.RetypeNewPassword)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

// GET /api/users/current
func (h *handler) current(c *gin.Context) {
	view, err := h.engine.Current(c.Request.Context(), principal(c).UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PATCH /api/users/subscription
func (h *handler) updateSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	view, err := h.engine.UpdateSubscription(c.Request.Context(), principal(c).UserID, req.Subscription)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PATCH /api/users/avatar, multipart field "avatar".
func (h *handler) updateAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		writeError(c, h.logger, bindError{"Missing required avatar field"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer f.Close()

	url, err := h.engine.UpdateAvatar(c.Request.Context(), principal(c).UserID, f, fh.Filename)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatarURL": url})
}

// PATCH /api/users/reset-password
func (h *handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	err := h.engine.ChangePassword(c.Request.Context(), principal(c).UserID,
		req.CurrentPassword, req.NewPassword, req.RetypeNewPassword)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed, please log in again"})
}

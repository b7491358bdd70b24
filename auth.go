package main

import (
	"errors"
	"net/http"

	"github.com/gemcertify/certify_backend/config"
	"github.com/gemcertify/certify_backend/middlewares"
	"github.com/gemcertify/certify_backend/models"
	"github.com/gemcertify/certify_backend/utils"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func setSessionCookie(c *gin.Context, token string, maxAge int) {
	if isProduction() {
		c.SetSameSite(http.SameSiteStrictMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(middlewares.AdminCookieName, token, maxAge, "/", "", isProduction(), true)
}

func adminLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			resp := gin.H{"error": "All fields are required!"}
			if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
				resp["fields"] = fields
			}
			c.JSON(http.StatusBadRequest, resp)
			return
		}

		admin, err := models.AdminLogin(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrAdminNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
			case errors.Is(err, models.ErrInvalidPassword):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
			default:
				config.LogError(logger, "auth.go", "adminLoginHandler", "AdminLogin", req.Username, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occured"})
			}
			return
		}

		token, err := utils.JwtGenerate(admin.ID, admin.Username)
		if err != nil {
			// Covers the unset JWT_SECRET_KEY case.
			config.LogError(logger, "auth.go", "adminLoginHandler", "JwtGenerate", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occured"})
			return
		}

		setSessionCookie(c, token, int(utils.TokenLifespan().Seconds()))
		c.JSON(http.StatusOK, gin.H{
			"message": "Login successful",
			"admin":   gin.H{"id": admin.ID, "username": admin.Username},
		})
	}
}

func checkLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "You are already logged in"})
	}
}

// adminLogoutHandler clears the client-held cookie. The token itself stays
// valid until expiry; there is no server-side revocation list.
func adminLogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		setSessionCookie(c, "", -1)
		c.JSON(http.StatusOK, gin.H{"message": "Admin logged out successfully"})
	}
}

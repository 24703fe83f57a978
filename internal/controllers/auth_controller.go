package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
)

type AuthController struct {
	Users  *services.UserService
	Tokens *middleware.TokenIssuer
}

type signupInput struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=6"`
	Role          string `json:"role" binding:"required,oneof=admin driver student"`
	Phone         string `json:"phone"`
	StudentID     string `json:"studentId"`
	LicenseNumber string `json:"licenseNumber"`
}

type loginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *AuthController) issue(c *gin.Context, status int, message string, u *models.User) {
	token, err := a.Tokens.Generate(u.ID, u.Role)
	if err != nil {
		respondError(c, errors.Wrap(err, "sign token"))
		return
	}
	respond(c, status, message, gin.H{"token": token, "user": u})
}

func (a *AuthController) Register(c *gin.Context) {
	var input signupInput
	if !bindJSON(c, &input) {
		return
	}

	u, err := a.Users.Register(c.Request.Context(), services.RegisterInput{
		Name:          input.Name,
		Email:         input.Email,
		Password:      input.Password,
		Role:          models.Role(input.Role),
		Phone:         input.Phone,
		StudentID:     input.StudentID,
		LicenseNumber: input.LicenseNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Registration successful"
	if u.Status == models.StatusPending {
		message = "Registration successful, awaiting admin approval"
	}
	a.issue(c, http.StatusCreated, message, u)
}

func (a *AuthController) Login(c *gin.Context) {
	var input loginInput
	if !bindJSON(c, &input) {
		return
	}

	u, err := a.Users.Authenticate(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		logrus.WithField("email", input.Email).Info("Login rejected")
		respondError(c, err)
		return
	}
	a.issue(c, http.StatusOK, "Login successful", u)
}

// Me returns the caller with their assigned route and bus.
func (a *AuthController) Me(c *gin.Context) {
	profile, err := a.Users.Profile(c.Request.Context(), caller(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", profile)
}

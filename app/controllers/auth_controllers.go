package controllers

import (
	"context"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/ctx"
)

// Authenticator issues tokens. *services.AuthService satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, models.User, error)
}

type AuthController struct {
	service Authenticator
}

func NewAuthController(service Authenticator) *AuthController {
	return &AuthController{service: service}
}

type loginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/login.
func (ac *AuthController) Login(c *ctx.Context) {
	var in loginInput
	if !c.BindJSON(&in) {
		return
	}

	token, _, err := ac.service.Login(c.Context(), in.Email, in.Password)
	if err != nil {
		c.Err(err)
		return
	}
	c.Success(map[string]string{"token": token})
}

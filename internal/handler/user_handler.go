package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
	"github.com/noah-isme/coursecap-api/pkg/response"
)

type userService interface {
	Profile(ctx context.Context, uid string) (*models.UserProfile, error)
	ListAdmins(ctx context.Context) ([]models.AdminUser, error)
}

// UserHandler exposes user profile endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(service userService) *UserHandler {
	return &UserHandler{service: service}
}

// MyProfile godoc
// @Summary Current user profile
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user/my_profile [get]
func (h *UserHandler) MyProfile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	profile, err := h.service.Profile(c.Request.Context(), claims.UID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Profile godoc
// @Summary User profile by uid
// @Tags Users
// @Produce json
// @Param uid path string true "Campus UID"
// @Success 200 {object} response.Envelope
// @Router /user/{uid} [get]
func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), c.Param("uid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Admins godoc
// @Summary List admin users
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/admins [get]
func (h *UserHandler) Admins(c *gin.Context) {
	admins, err := h.service.ListAdmins(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admins, nil)
}

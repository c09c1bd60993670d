package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
	"github.com/noah-isme/coursecap-api/pkg/response"
)

type authService interface {
	CASLoginURL(targetURL string) string
	CASLogin(ctx context.Context, ticket, targetURL string) (*models.LoginResponse, error)
	DevLogin(ctx context.Context, req models.DevLoginRequest) (*models.LoginResponse, error)
	LogoutURL() string
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// CASLoginURL godoc
// @Summary CAS login URL
// @Description Returns the CAS login URL. The referring page becomes the post-login target.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/cas_login_url [get]
func (h *AuthHandler) CASLoginURL(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		target = c.GetHeader("Referer")
	}
	response.JSON(c, http.StatusOK, gin.H{"casLoginUrl": h.service.CASLoginURL(target)}, nil)
}

// CASCallback godoc
// @Summary CAS callback
// @Description Validates the CAS ticket and redirects to the target page with an access token fragment
// @Tags Authentication
// @Param ticket query string true "CAS service ticket"
// @Param url query string false "Post-login target"
// @Success 302
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /cas/callback [get]
func (h *AuthHandler) CASCallback(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ticket required"))
		return
	}
	target := c.Query("url")

	res, err := h.service.CASLogin(c.Request.Context(), ticket, target)
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrInactiveAccount.Code {
			c.Redirect(http.StatusFound, withQuery("/", "error", appErr.Message))
			return
		}
		response.Error(c, err)
		return
	}

	if target == "" {
		target = "/"
	}
	if !isSafeRedirect(c.Request, target) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsafe redirect target"))
		return
	}
	redirect, _ := url.Parse(withQuery(target, "casLogin", "true"))
	redirect.Fragment = "access_token=" + res.AccessToken
	c.Redirect(http.StatusFound, redirect.String())
}

// DevLogin godoc
// @Summary Developer login
// @Description Sign in with a uid and the shared developer password. Only available when dev auth is enabled.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.DevLoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/dev_auth_login [post]
func (h *AuthHandler) DevLogin(c *gin.Context) {
	var req models.DevLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.DevLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout
// @Description Returns the CAS logout URL. Access tokens are stateless and simply discarded by the client.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"casLogoutUrl": h.service.LogoutURL(), "uid": claims.UID}, nil)
}

func withQuery(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func isSafeRedirect(r *http.Request, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return u.Scheme == ""
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host == r.Host
}

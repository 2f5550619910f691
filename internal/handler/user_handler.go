package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/log"
)

// UserHandler 负责处理所有与普通用户相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	BarangayName string `json:"barangayName"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	user, err := h.userService.Register(req.Username, req.Password, req.BarangayName)
	if err != nil {
		fail(c, "Register", err)
		return
	}

	log.Infof("User '%s' registered successfully", user.Username)
	respond(c, http.StatusOK, "User registered successfully", user)
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	accessToken, refreshToken, err := h.userService.Login(req.Username, req.Password)
	if err != nil {
		fail(c, "Login", err)
		return
	}

	log.Infof("User '%s' logged in successfully", req.Username)
	respond(c, http.StatusOK, "Login successful", gin.H{
		"token":        accessToken,
		"refreshToken": refreshToken,
	})
}

// GetProfile returns the user AuthMiddleware loaded.
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "success", user)
}

// Logout revokes the bearer token of the request.
func (h *UserHandler) Logout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

	if err := h.userService.Logout(c.Request.Context(), tokenString); err != nil {
		log.Error("Logout: Failed to logout", err)
		respond(c, http.StatusInternalServerError, "logout failed", nil)
		return
	}

	log.Infof("User '%s' logged out successfully", user.Username)
	respond(c, http.StatusOK, "Logged out", nil)
}

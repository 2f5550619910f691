package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/log"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// CreateGovernanceArea registers a new governance area.
func (h *AdminHandler) CreateGovernanceArea(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.GovernanceAreaInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateGovernanceArea: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "code and name are required", nil)
		return
	}

	area, err := h.adminService.CreateGovernanceArea(req, user)
	if err != nil {
		fail(c, "CreateGovernanceArea", err)
		return
	}
	log.Infof("Admin user '%s' created governance area '%s'", user.Username, area.Code)
	success(c, area)
}

func (h *AdminHandler) ListGovernanceAreas(c *gin.Context) {
	areas, err := h.adminService.ListGovernanceAreas()
	if err != nil {
		fail(c, "ListGovernanceAreas", err)
		return
	}
	success(c, areas)
}

func (h *AdminHandler) UpdateGovernanceArea(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	var req service.GovernanceAreaInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "code and name are required", nil)
		return
	}
	area, err := h.adminService.UpdateGovernanceArea(id, req)
	if err != nil {
		fail(c, "UpdateGovernanceArea", err)
		return
	}
	success(c, area)
}

func (h *AdminHandler) DeleteGovernanceArea(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.adminService.DeleteGovernanceArea(id); err != nil {
		fail(c, "DeleteGovernanceArea", err)
		return
	}
	success(c, nil)
}

// AssignRoleRequest is the body of PUT /admin/users/:userId/role.
type AssignRoleRequest struct {
	Role             string `json:"role" binding:"required"`
	GovernanceAreaID *uint  `json:"governanceAreaId"`
}

func (h *AdminHandler) AssignRole(c *gin.Context) {
	userID, valid := uintParam(c, "userId")
	if !valid {
		return
	}
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "role is required", nil)
		return
	}
	if err := h.adminService.AssignRole(userID, req.Role, req.GovernanceAreaID); err != nil {
		fail(c, "AssignRole", err)
		return
	}
	log.Infof("Assigned role %s to user %d", req.Role, userID)
	success(c, nil)
}

// ListUsers pages through all users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	users, err := h.adminService.ListUsers(page, size)
	if err != nil {
		fail(c, "ListUsers", err)
		return
	}
	success(c, users)
}

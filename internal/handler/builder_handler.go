package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"blgu-assess-go/internal/indicator"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/log"
)

// BuilderHandler exposes indicator builder sessions. Every route except
// ListDrafts, CreateDraft and ImportDraft acts on a draft the caller has opened.
type BuilderHandler struct {
	builder service.BuilderService
}

func NewBuilderHandler(builder service.BuilderService) *BuilderHandler {
	return &BuilderHandler{builder: builder}
}

type CreateDraftRequest struct {
	Title            string `json:"title" binding:"required"`
	GovernanceAreaID int    `json:"governanceAreaId"`
}

type ImportDraftRequest struct {
	Title    string             `json:"title" binding:"required"`
	Snapshot indicator.Snapshot `json:"snapshot"`
}

// AddIndicatorRequest carries the new node's fields next to its parent.
// An empty ParentID adds a root.
type AddIndicatorRequest struct {
	ParentID string `json:"parentId"`
	indicator.NodePatch
}

type DuplicateRequest struct {
	IncludeChildren bool `json:"includeChildren"`
}

type MoveRequest struct {
	NewParentID string `json:"newParentId"`
	NewIndex    int    `json:"newIndex"`
}

type ReorderRequest struct {
	ParentID   string   `json:"parentId"`
	OrderedIDs []string `json:"orderedIds" binding:"required"`
}

type SetAreaRequest struct {
	GovernanceAreaID int `json:"governanceAreaId"`
}

type SelectRequest struct {
	Editing bool `json:"editing"`
}

func (h *BuilderHandler) ListDrafts(c *gin.Context) {
	area, _ := strconv.Atoi(c.DefaultQuery("governanceAreaId", "0"))
	drafts, err := h.builder.ListDrafts(c.Request.Context(), area)
	if err != nil {
		fail(c, "ListDrafts", err)
		return
	}
	success(c, drafts)
}

func (h *BuilderHandler) CreateDraft(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "title is required", nil)
		return
	}
	draft, err := h.builder.CreateDraft(c.Request.Context(), req.Title, req.GovernanceAreaID, user)
	if err != nil {
		fail(c, "CreateDraft", err)
		return
	}
	success(c, draft.Summary())
}

func (h *BuilderHandler) ImportDraft(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req ImportDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("ImportDraft: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "title and snapshot are required", nil)
		return
	}
	draft, err := h.builder.ImportDraft(c.Request.Context(), req.Title, req.Snapshot, user)
	if err != nil {
		fail(c, "ImportDraft", err)
		return
	}
	success(c, draft.Summary())
}

func (h *BuilderHandler) OpenDraft(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	view, err := h.builder.OpenDraft(c.Request.Context(), draftID, user)
	if err != nil {
		fail(c, "OpenDraft", err)
		return
	}
	success(c, view)
}

func (h *BuilderHandler) CloseDraft(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.builder.CloseDraft(c.Request.Context(), draftID, user); err != nil {
		fail(c, "CloseDraft", err)
		return
	}
	success(c, nil)
}

// SaveDraft persists the open session. On a version conflict the session has
// already been reloaded and the client should refetch the tree.
func (h *BuilderHandler) SaveDraft(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	version, err := h.builder.SaveDraft(c.Request.Context(), draftID, user)
	if err != nil {
		fail(c, "SaveDraft", err)
		return
	}
	success(c, gin.H{"version": version})
}

func (h *BuilderHandler) PublishDraft(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	res, err := h.builder.PublishDraft(c.Request.Context(), draftID, user)
	if err != nil {
		fail(c, "PublishDraft", err)
		return
	}
	log.Infof("User '%s' published draft %d at version %d", user.Username, draftID, res.Version)
	success(c, res)
}

func (h *BuilderHandler) Tree(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	view, err := h.builder.Tree(draftID, user)
	if err != nil {
		fail(c, "Tree", err)
		return
	}
	success(c, view)
}

func (h *BuilderHandler) Snapshot(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	snap, err := h.builder.Snapshot(draftID, user)
	if err != nil {
		fail(c, "Snapshot", err)
		return
	}
	success(c, snap)
}

func (h *BuilderHandler) SetGovernanceArea(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	var req SetAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload", nil)
		return
	}
	if err := h.builder.SetGovernanceArea(draftID, user, req.GovernanceAreaID); err != nil {
		fail(c, "SetGovernanceArea", err)
		return
	}
	success(c, nil)
}

func (h *BuilderHandler) AddIndicator(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	var req AddIndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload", nil)
		return
	}
	detail, err := h.builder.AddIndicator(draftID, user, req.ParentID, req.NodePatch)
	if err != nil {
		fail(c, "AddIndicator", err)
		return
	}
	success(c, detail)
}

func (h *BuilderHandler) GetIndicator(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	detail, err := h.builder.Indicator(draftID, user, c.Param("id"))
	if err != nil {
		fail(c, "GetIndicator", err)
		return
	}
	success(c, detail)
}

func (h *BuilderHandler) UpdateIndicator(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	var patch indicator.NodePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload", nil)
		return
	}
	detail, err := h.builder.UpdateIndicator(draftID, user, c.Param("id"), patch)
	if err != nil {
		fail(c, "UpdateIndicator", err)
		return
	}
	success(c, detail)
}

// DeleteIndicator removes the node and its subtree and returns the removed ids.
func (h *BuilderHandler) DeleteIndicator(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	removed, err := h.builder.DeleteIndicator(draftID, user, c.Param("id"))
	if err != nil {
		fail(c, "DeleteIndicator", err)
		return
	}
	success(c, gin.H{"removedIds": removed})
}

func (h *BuilderHandler) DuplicateIndicator(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	var req DuplicateRequest
	_ = c.ShouldBindJSON(&req)
	detail, err := h.builder.DuplicateIndicator(draftID, user, c.Param("id"), req.IncludeChildren)
	if err != nil {
		fail(c, "DuplicateIndicator", err)
		return
	}
	success(c, detail)
}

func (h *BuilderHandler) MoveIndicator(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload", nil)
		return
	}
	if err := h.builder.MoveIndicator(draftID, user, c.Param("id"), req.NewParentID, req.NewIndex); err != nil {
		fail(c, "MoveIndicator", err)
		return
	}
	success(c, nil)
}

func (h *BuilderHandler) ReorderIndicators(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "orderedIds is required", nil)
		return
	}
	if err := h.builder.ReorderIndicators(draftID, user, req.ParentID, req.OrderedIDs); err != nil {
		fail(c, "ReorderIndicators", err)
		return
	}
	success(c, nil)
}

// Children lists the children of ?parentId=, or the roots when it is empty.
func (h *BuilderHandler) Children(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	nodes, err := h.builder.Children(draftID, user, c.Query("parentId"))
	if err != nil {
		fail(c, "Children", err)
		return
	}
	success(c, nodes)
}

func (h *BuilderHandler) Siblings(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	nodes, err := h.builder.Siblings(draftID, user, c.Param("id"))
	if err != nil {
		fail(c, "Siblings", err)
		return
	}
	success(c, nodes)
}

func (h *BuilderHandler) ArchiveSchemas(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.builder.ArchiveSchemas(draftID, user, c.Param("id")); err != nil {
		fail(c, "ArchiveSchemas", err)
		return
	}
	success(c, nil)
}

func (h *BuilderHandler) RestoreSchemas(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	restored, err := h.builder.RestoreSchemas(draftID, user, c.Param("id"))
	if err != nil {
		fail(c, "RestoreSchemas", err)
		return
	}
	success(c, gin.H{"restored": restored})
}

func (h *BuilderHandler) SelectIndicator(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	var req SelectRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.builder.SelectIndicator(draftID, user, c.Param("id"), req.Editing); err != nil {
		fail(c, "SelectIndicator", err)
		return
	}
	success(c, nil)
}

// target resolves the caller and the :draftId path parameter.
func (h *BuilderHandler) target(c *gin.Context) (*model.User, uint, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, 0, false
	}
	draftID, ok := uintParam(c, "draftId")
	if !ok {
		return nil, 0, false
	}
	return user, draftID, true
}

// ClearSelection drops both the selected and the editing indicator.
func (h *BuilderHandler) ClearSelection(c *gin.Context) {
	user, draftID, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.builder.SelectIndicator(draftID, user, "", false); err != nil {
		fail(c, "ClearSelection", err)
		return
	}
	if err := h.builder.SelectIndicator(draftID, user, "", true); err != nil {
		fail(c, "ClearSelection", err)
		return
	}
	success(c, nil)
}

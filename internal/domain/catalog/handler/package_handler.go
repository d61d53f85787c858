package handler

import (
	"errors"
	"net/http"

	"nanobanana_backend/internal/domain/catalog/model"
	"nanobanana_backend/internal/domain/catalog/repository"
	"nanobanana_backend/internal/domain/catalog/service"
	"nanobanana_backend/pkg/logger"
	"nanobanana_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PackageHandler 套餐目录接口
type PackageHandler struct {
	service service.PackageService
}

func NewPackageHandler(s service.PackageService) *PackageHandler {
	return &PackageHandler{service: s}
}

// ListActive 在售套餐列表
// GET /api/v1/packages
func (h *PackageHandler) ListActive(c *gin.Context) {
	pkgs, err := h.service.GetActivePackages(c.Request.Context())
	if err != nil {
		logger.Log.Error("list packages failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
		return
	}
	response.Success(c, gin.H{"packages": pkgs})
}

// Get 套餐详情
// GET /api/v1/packages/:id
func (h *PackageHandler) Get(c *gin.Context) {
	pkg, err := h.service.GetPackage(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, pkg)
}

// CreatePackageRequest 创建套餐请求
type CreatePackageRequest struct {
	Name         string  `json:"name" binding:"required,max=64"`
	Description  string  `json:"description"`
	UsageCount   int     `json:"usage_count" binding:"required,gt=0"`
	ValidityDays int     `json:"validity_days" binding:"required,gt=0"`
	Price        float64 `json:"price" binding:"required,gt=0"`
	IsActive     *bool   `json:"is_active"`
	SortOrder    int     `json:"sort_order"`
}

// Create 创建套餐
// POST /api/v1/admin/packages
func (h *PackageHandler) Create(c *gin.Context) {
	var req CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	pkg := &model.Package{
		Name:         req.Name,
		Description:  req.Description,
		UsageCount:   req.UsageCount,
		ValidityDays: req.ValidityDays,
		Price:        req.Price,
		IsActive:     true,
		SortOrder:    req.SortOrder,
	}
	if req.IsActive != nil {
		pkg.IsActive = *req.IsActive
	}

	if err := h.service.CreatePackage(c.Request.Context(), pkg); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, pkg)
}

// UpdatePackageRequest 更新套餐请求，零值与缺省通过指针区分
type UpdatePackageRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	UsageCount   *int     `json:"usage_count"`
	ValidityDays *int     `json:"validity_days"`
	Price        *float64 `json:"price"`
	IsActive     *bool    `json:"is_active"`
	SortOrder    *int     `json:"sort_order"`
}

// Update 更新套餐
// PUT /api/v1/admin/packages/:id
func (h *PackageHandler) Update(c *gin.Context) {
	var req UpdatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	pkg, err := h.service.UpdatePackage(c.Request.Context(), c.Param("id"), service.PackagePatch{
		Name:         req.Name,
		Description:  req.Description,
		UsageCount:   req.UsageCount,
		ValidityDays: req.ValidityDays,
		Price:        req.Price,
		IsActive:     req.IsActive,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, pkg)
}

// Delete 删除套餐（既有用户权益保留，仅解除目录引用）
// DELETE /api/v1/admin/packages/:id
func (h *PackageHandler) Delete(c *gin.Context) {
	if err := h.service.DeletePackage(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (h *PackageHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPackageNotFound):
		response.Error(c, http.StatusNotFound, response.ErrPackageNotFound, "套餐不存在")
	case errors.Is(err, service.ErrPackageNameExists):
		response.Error(c, http.StatusConflict, response.ErrPackageExists, "套餐名称已存在")
	default:
		logger.Log.Error("package request failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
	}
}

package public

import (
	"strings"

	"github.com/mirrorchyan/storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetStorefront 获取商品页套餐、价格与公告
func (h *Handler) GetStorefront(c *gin.Context) {
	storefront, err := h.CatalogService.Storefront(c.Request.Context(), strings.TrimSpace(c.Query("type_id")), requestLocale(c))
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	response.Success(c, storefront)
}

// GetPlan 获取单个套餐详情
func (h *Handler) GetPlan(c *gin.Context) {
	card, err := h.CatalogService.PlanDetail(c.Request.Context(), strings.TrimSpace(c.Param("id")), requestLocale(c))
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	response.Success(c, card)
}

// GetAnnouncement 获取公告
func (h *Handler) GetAnnouncement(c *gin.Context) {
	announcement, err := h.CatalogService.Announcement(c.Request.Context(), requestLocale(c))
	if err != nil {
		respondError(c, response.CodeBadGateway, "catalog.fetch_failed", err)
		return
	}
	response.Success(c, announcement)
}

// GetProjects 获取项目列表
func (h *Handler) GetProjects(c *gin.Context) {
	projects, err := h.CatalogService.Projects(c.Request.Context(), strings.TrimSpace(c.Query("type_id")))
	if err != nil {
		respondError(c, response.CodeBadGateway, "catalog.fetch_failed", err)
		return
	}
	response.Success(c, projects)
}

// GetContact 获取用户群链接
func (h *Handler) GetContact(c *gin.Context) {
	response.Success(c, gin.H{
		"group_url": h.CatalogService.ContactGroupURL(c.Request.Context()),
	})
}

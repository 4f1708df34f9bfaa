package public

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"github.com/mirrorchyan/storefront/internal/billing"
	"github.com/mirrorchyan/storefront/internal/http/response"
	"github.com/mirrorchyan/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// GetRevenue 月度收入报表，Authorization 原样透传给后端
func (h *Handler) GetRevenue(c *gin.Context) {
	query := revenueQuery(c)
	report, err := h.RevenueService.Report(c.Request.Context(), query)
	if err != nil {
		respondDashboardError(c, err)
		return
	}
	response.Success(c, report)
}

// ExportRevenueCSV 导出收入明细 CSV
func (h *Handler) ExportRevenueCSV(c *gin.Context) {
	query := revenueQuery(c)
	records, err := h.RevenueService.Fetch(c.Request.Context(), query)
	if err != nil {
		respondDashboardError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := service.ExportCSV(&buf, records); err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": service.CSVFilename(query.RID, query.Month),
	})
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func revenueQuery(c *gin.Context) billing.RevenueQuery {
	isUA := strings.TrimSpace(c.Query("is_ua"))
	return billing.RevenueQuery{
		RID:   c.Query("rid"),
		Month: c.Query("month"),
		IsUA:  isUA == "1" || strings.EqualFold(isUA, "true"),
		Token: c.GetHeader("Authorization"),
	}
}

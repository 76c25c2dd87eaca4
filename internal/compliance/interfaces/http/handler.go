// Package http 合规流水线的 HTTP 接口层
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/application"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/pkg/logger"
)

// ComplianceHandler HTTP 处理器
type ComplianceHandler struct {
	app *application.ComplianceService // 合规应用服务
}

// NewComplianceHandler 创建 HTTP 处理器实例
func NewComplianceHandler(app *application.ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{app: app}
}

// RegisterRoutes 将处理器方法绑定到 Gin 路由引擎
func (h *ComplianceHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/compliance")
	{
		api.POST("/assessments", h.Assess)
		api.POST("/assessments/batch", h.AssessBatch)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/transaction/:id", h.GetReportsByTransaction)
	}
}

// AssessRequest 单笔评估请求
type AssessRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// Assess 对单笔交易执行合规评估
func (h *ComplianceHandler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.app.AssessDetailed(c.Request.Context(), req.TransactionID)
	if err != nil {
		if domain.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Error(c.Request.Context(), "assessment failed",
			"transaction_id", req.TransactionID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":     result.Report,
		"assessment": result.Assessment,
		"dispatches": result.Dispatches,
	})
}

// AssessBatchRequest 批量评估请求
type AssessBatchRequest struct {
	TransactionIDs []string `json:"transaction_ids" binding:"required,min=1,max=100"`
	Concurrency    int      `json:"concurrency"`
}

// AssessBatch 批量评估，单笔失败不影响其他交易
func (h *ComplianceHandler) AssessBatch(c *gin.Context) {
	var req AssessBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := h.app.AssessBatch(c.Request.Context(), req.TransactionIDs, req.Concurrency)

	succeeded := 0
	for _, item := range items {
		if item.Error == "" {
			succeeded++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     len(items),
		"succeeded": succeeded,
	})
}

// ListReports 分页列出审计报告
func (h *ComplianceHandler) ListReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	reports, total, err := h.app.ListReports(c.Request.Context(), limit, offset)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list reports", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"total":   total,
	})
}

// GetReportsByTransaction 查询某笔交易的全部审计报告
func (h *ComplianceHandler) GetReportsByTransaction(c *gin.Context) {
	transactionID := c.Param("id")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction id is required"})
		return
	}

	reports, err := h.app.GetReportsByTransaction(c.Request.Context(), transactionID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get reports",
			"transaction_id", transactionID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

package httpapi

import (
	"encoding/base64"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/claim"
	"github.com/clearpath/claims/internal/leave"
	"github.com/clearpath/claims/internal/models"
	"github.com/clearpath/claims/internal/policy"
	"github.com/clearpath/claims/internal/report"
	"github.com/clearpath/claims/internal/storage"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims    *claim.Service
	leaves    *leave.Service
	policies  *policy.Store
	reporter  *report.SettlementReporter
	reportDir string
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	claims *claim.Service,
	leaves *leave.Service,
	policies *policy.Store,
	reporter *report.SettlementReporter,
	reportDir string,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		claims:    claims,
		leaves:    leaves,
		policies:  policies,
		reporter:  reporter,
		reportDir: reportDir,
		logger:    logger,
	}
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	respondOK(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// CreateClaim handles POST /api/v1/claims
func (h *Handlers) CreateClaim(c *gin.Context) {
	var draft claim.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	created, err := h.claims.Create(c.Request.Context(), actorFrom(c), draft)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, created)
}

// ListClaims handles GET /api/v1/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	claims, err := h.claims.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, claims)
}

// GetClaim handles GET /api/v1/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	found, err := h.claims.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, found)
}

// UpdateClaim handles PUT /api/v1/claims/:id
func (h *Handlers) UpdateClaim(c *gin.Context) {
	var draft claim.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	updated, err := h.claims.Update(c.Request.Context(), actorFrom(c), c.Param("id"), draft)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, updated)
}

// DeleteClaim handles DELETE /api/v1/claims/:id
func (h *Handlers) DeleteClaim(c *gin.Context) {
	if err := h.claims.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, gin.H{"deleted": c.Param("id")})
}

// DecisionRequest is the body for approval and rejection endpoints
type DecisionRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
	Notes   string `json:"notes"`
}

// SupervisorDecision handles POST /api/v1/claims/:id/supervisor-decision
func (h *Handlers) SupervisorDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	updated, err := h.claims.SupervisorDecision(c.Request.Context(), actorFrom(c), c.Param("id"), req.Approve, req.Reason, req.Notes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, updated)
}

// FinanceDecision handles POST /api/v1/claims/:id/finance-decision
func (h *Handlers) FinanceDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	updated, err := h.claims.FinanceDecision(c.Request.Context(), actorFrom(c), c.Param("id"), req.Approve, req.Reason, req.Notes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, updated)
}

// PayRequest is the body for the mark-paid endpoint
type PayRequest struct {
	Channel   string `json:"channel"`
	Reference string `json:"reference"`
}

// MarkPaid handles POST /api/v1/claims/:id/pay
func (h *Handlers) MarkPaid(c *gin.Context) {
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	updated, err := h.claims.MarkPaid(c.Request.Context(), actorFrom(c), c.Param("id"), req.Channel, req.Reference)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, updated)
}

// AttachmentRequest carries base64-encoded attachment content
type AttachmentRequest struct {
	Name    string `json:"name" binding:"required"`
	Mime    string `json:"mime"`
	Label   string `json:"label"`
	Content string `json:"content" binding:"required"` // base64
}

// UploadAttachment handles POST /api/v1/attachments
func (h *Handlers) UploadAttachment(c *gin.Context) {
	var req AttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		respondBadRequest(c, "content is not valid base64")
		return
	}

	attachment, err := h.claims.UploadAttachment(c.Request.Context(), actorFrom(c), content, storage.FileMeta{
		Name:  req.Name,
		Mime:  req.Mime,
		Label: req.Label,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, attachment)
}

// CreateLeave handles POST /api/v1/leaves
func (h *Handlers) CreateLeave(c *gin.Context) {
	var draft leave.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	created, err := h.leaves.Create(c.Request.Context(), actorFrom(c), draft)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, created)
}

// ListLeaves handles GET /api/v1/leaves
func (h *Handlers) ListLeaves(c *gin.Context) {
	leaves, err := h.leaves.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, leaves)
}

// GetLeave handles GET /api/v1/leaves/:id
func (h *Handlers) GetLeave(c *gin.Context) {
	found, err := h.leaves.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, found)
}

// LeaveDecision handles POST /api/v1/leaves/:id/decision
func (h *Handlers) LeaveDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	updated, err := h.leaves.Decide(c.Request.Context(), actorFrom(c), c.Param("id"), req.Approve, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, updated)
}

// GetActivePolicy handles GET /api/v1/policy
func (h *Handlers) GetActivePolicy(c *gin.Context) {
	active, err := h.policies.Active(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, active)
}

// GetPolicyVersion handles GET /api/v1/policy/:version
func (h *Handlers) GetPolicyVersion(c *gin.Context) {
	found, err := h.policies.ByVersion(c.Request.Context(), c.Param("version"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, found)
}

// PublishPolicy handles POST /api/v1/policy
func (h *Handlers) PublishPolicy(c *gin.Context) {
	actor := actorFrom(c)
	if actor.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "access denied"})
		return
	}

	var draft models.Policy
	if err := c.ShouldBindJSON(&draft); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	version, err := h.policies.Publish(c.Request.Context(), &draft)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, gin.H{"version": version})
}

// GenerateSettlementReport handles POST /api/v1/reports/settlement
func (h *Handlers) GenerateSettlementReport(c *gin.Context) {
	actor := actorFrom(c)
	if actor.Role != models.RoleFinanceManager && actor.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "access denied"})
		return
	}

	filename := "settlement_" + time.Now().UTC().Format("20060102_150405") + ".xlsx"
	outputPath := filepath.Join(h.reportDir, filename)

	if err := h.reporter.Generate(c.Request.Context(), outputPath); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, gin.H{"path": outputPath})
}

package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/service"
	"facilityops/lottery/pkg/response"
)

type RecordHandler struct {
	recordService service.RecordService
	logger        *zap.Logger
}

func NewRecordHandler(recordService service.RecordService, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{recordService: recordService, logger: logger.Named("http")}
}

type CreateRecordsRequest struct {
	Date       string                `json:"date" binding:"required"`
	FacilityID string                `json:"facility_id" binding:"required"`
	Records    []service.RecordInput `json:"records" binding:"required,min=1,dive"`
}

type UpdateStatusRequest struct {
	Status model.RecordStatus `json:"status" binding:"required"`
}

// CreateRecords enters a batch of invitations for one scope.
func (h *RecordHandler) CreateRecords(c *gin.Context) {
	var req CreateRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	scope := model.Scope{Date: req.Date, FacilityID: req.FacilityID}
	if !validScope(c, scope) {
		return
	}

	records, err := h.recordService.CreateRecords(c.Request.Context(), scope, req.Records)
	if err != nil {
		writeError(c, h.logger, nil, err)
		return
	}
	response.Created(c, records)
}

// UpdateStatus marks one invitation reserved, expired or available again.
func (h *RecordHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	record, err := h.recordService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, h.logger, nil, err)
		return
	}
	response.Success(c, record)
}

package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/service"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RosterHandler exposes per-event registration and selection endpoints.
type RosterHandler struct {
	roster         *service.RosterService
	maxUploadBytes int64
}

// NewRosterHandler constructs RosterHandler.
func NewRosterHandler(roster *service.RosterService, maxUploadBytes int64) *RosterHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 << 20
	}
	return &RosterHandler{roster: roster, maxUploadBytes: maxUploadBytes}
}

// Register godoc
// @Summary Register a student on an event
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calendar/{id}/register [post]
func (h *RosterHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	reg, err := h.roster.Register(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// RegisteredStudents godoc
// @Summary List registered students (deduplicated)
// @Tags Roster
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/{id}/registered-students [get]
func (h *RosterHandler) RegisteredStudents(c *gin.Context) {
	regs, err := h.roster.RegisteredStudents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// SelectedStudents godoc
// @Summary List selected students
// @Tags Roster
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/{id}/selected-students [get]
func (h *RosterHandler) SelectedStudents(c *gin.Context) {
	selections, err := h.roster.SelectedStudents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, selections, nil)
}

type selectStudentRequest struct {
	Email string `json:"email" binding:"required"`
}

// SelectStudent godoc
// @Summary Mark a student selected on a completed event
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body selectStudentRequest true "Selection payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calendar/{id}/select-student [put]
func (h *RosterHandler) SelectStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req selectStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "email is required"))
		return
	}
	sel, err := h.roster.SelectStudent(c.Request.Context(), c.Param("id"), req.Email, claims.UserID, models.Today())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sel, nil)
}

// RemoveSelectedStudent godoc
// @Summary Remove a selected student by email
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body selectStudentRequest true "Removal payload"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /calendar/{id}/remove-selected-student [put]
func (h *RosterHandler) RemoveSelectedStudent(c *gin.Context) {
	var req selectStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "email is required"))
		return
	}
	if err := h.roster.RemoveSelectedStudent(c.Request.Context(), c.Param("id"), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadSelected godoc
// @Summary Bulk-upload the selected student list
// @Tags Roster
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Event ID"
// @Param file formData file true "Selection spreadsheet (.xlsx)"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calendar/{id}/upload-selected [put]
func (h *RosterHandler) UploadSelected(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds upload size limit"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck
	payload, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}

	result, err := h.roster.UploadSelectedList(c.Request.Context(), c.Param("id"),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), payload, claims.UserID, models.Today())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportRegistered godoc
// @Summary Export the registered list as xlsx
// @Tags Roster
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Event ID"
// @Success 200 {file} binary
// @Router /calendar/{id}/registered-students/export [get]
func (h *RosterHandler) ExportRegistered(c *gin.Context) {
	filename, payload, err := h.roster.ExportRegistered(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, payload)
}

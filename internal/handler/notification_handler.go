package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/service"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/response"
)

// NotificationHandler exposes the polling endpoint for notifications.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List godoc
// @Summary List notifications
// @Description Students see their own notifications; staff may filter by recipient or event.
// @Tags Notifications
// @Produce json
// @Param recipient query string false "Recipient email (staff only)"
// @Param eventId query string false "Filter by event"
// @Param status query string false "Filter by delivery status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.NotificationFilter
	if claims.Role == models.RoleStudent {
		filter.RecipientEmail = claims.Email
	} else {
		filter.RecipientEmail = c.Query("recipient")
	}
	filter.EventID = c.Query("eventId")
	if status := c.Query("status"); status != "" {
		filter.Status = models.NotificationStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	notifications, pagination, err := h.notifications.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, pagination)
}

package audit

import (
	"strconv"
	"time"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RemoteAddr makes the caller address available to WriteLog.
func RemoteAddr() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(ContextWithRemoteAddr(c.UserContext(), c.IP()))
		return c.Next()
	}
}

// GET /audit-events?action=auth.password_reset&actor_id=1&limit=50
func ListAuditEventsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.WithContext(c.UserContext()).Model(&models.AuditEvent{})

		if action := c.Query("action"); action != "" {
			dbq = dbq.Where("action = ?", action)
		}
		if actorStr := c.Query("actor_id"); actorStr != "" {
			actorID, err := strconv.ParseUint(actorStr, 10, 64)
			if err != nil {
				return apperr.Validation("Invalid actor_id")
			}
			dbq = dbq.Where("actor_id = ?", actorID)
		}
		if since := c.Query("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return apperr.Validation("since must be an RFC3339 timestamp")
			}
			dbq = dbq.Where("created_at >= ?", t)
		}

		limit := c.QueryInt("limit", 100)
		if limit < 1 || limit > 500 {
			limit = 100
		}

		var events []models.AuditEvent
		if err := dbq.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
			return apperr.Internal("Failed to fetch audit events", err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    events,
		})
	}
}

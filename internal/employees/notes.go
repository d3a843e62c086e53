package employees

import (
	"strings"
	"time"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/auth"
	"hrportal-backend/internal/httpx"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateNoteRequest struct {
	Content  string  `json:"content"`
	NoteDate *string `json:"noteDate"`
}

type NoteResponse struct {
	models.Note
	Author *models.NoteAuthor `json:"author"`
}

func toNoteResponse(n models.Note, withRole bool) NoteResponse {
	resp := NoteResponse{Note: n}
	if n.Author != nil {
		resp.Author = &models.NoteAuthor{ID: n.Author.ID, Email: n.Author.Email}
		if withRole {
			resp.Author.Role = n.Author.Role
		}
	}
	return resp
}

// GET /employees/:id/notes
func ListNotesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "employee")
		if err != nil {
			return err
		}
		ctx := c.UserContext()

		var n int64
		if err := db.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return apperr.Internal("Failed to fetch notes", err)
		}
		if n == 0 {
			return apperr.NotFound("Employee not found")
		}

		var notes []models.Note
		err = db.WithContext(ctx).
			Preload("Author", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "email") }).
			Where("employee_id = ?", id).
			Order("note_date DESC NULLS LAST").
			Order("created_at DESC").
			Find(&notes).Error
		if err != nil {
			return apperr.Internal("Failed to fetch notes", err)
		}

		resp := make([]NoteResponse, 0, len(notes))
		for _, note := range notes {
			resp = append(resp, toNoteResponse(note, false))
		}
		return c.JSON(resp)
	}
}

// POST /employees/:id/notes
// The author is always the caller.
func AddNoteHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "employee")
		if err != nil {
			return err
		}
		identity, ok := auth.CurrentIdentity(c)
		if !ok {
			return apperr.New(apperr.KindUnauthenticated, "No token provided")
		}

		var body CreateNoteRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		content := strings.TrimSpace(body.Content)
		if content == "" {
			return apperr.Validation("Note content is required")
		}
		var noteDate *time.Time
		if v := httpx.TrimToNil(body.NoteDate); v != nil {
			t, err := httpx.ParseDate(*v)
			if err != nil {
				return apperr.Validation("Invalid note date")
			}
			noteDate = &t
		}

		ctx := c.UserContext()
		var n int64
		if err := db.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return apperr.Internal("Failed to add note", err)
		}
		if n == 0 {
			return apperr.NotFound("Employee not found")
		}

		note := models.Note{
			Content:    content,
			NoteDate:   noteDate,
			EmployeeID: id,
			AuthorID:   identity.UserID,
		}
		if err := db.WithContext(ctx).Create(&note).Error; err != nil {
			return apperr.Internal("Failed to add note", err)
		}

		httpx.Record(c, w, models.AuditActionCreate, "note", note.ID, "note added to employee %d", id)

		resp := toNoteResponse(note, false)
		resp.Author = &models.NoteAuthor{ID: identity.UserID, Email: identity.Email}
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

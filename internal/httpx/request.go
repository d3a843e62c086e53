// Package httpx holds request parsing helpers shared by the CRUD handlers.
package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/auth"
	"hrportal-backend/internal/logging"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-+()]+$`)
)

func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func IsValidPhone(s string) bool {
	return len(s) >= 10 && phonePattern.MatchString(s)
}

// ParseID reads the ":id" route parameter. what names the resource in the
// error message, e.g. "client".
func ParseID(c *fiber.Ctx, what string) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid " + what + " ID")
	}
	return uint(id), nil
}

// ParseBody decodes the JSON request body into out.
func ParseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
	}
	return nil
}

// TrimToNil trims s and turns an empty result into nil.
func TrimToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Optional tracks whether a JSON field was present at all, so that a
// missing field can be told apart from an explicit null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Ptr returns the value, or nil when the field was absent or null.
func (o Optional[T]) Ptr() *T {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Value
	return &v
}

// ----------------------------------------
// PAGINATION
// ----------------------------------------

type Page struct {
	Page     int
	PageSize int
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ParsePage reads page and pageSize, clamping pageSize to [1, maxSize].
func ParsePage(c *fiber.Ctx, defaultSize, maxSize int) Page {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	size := c.QueryInt("pageSize", defaultSize)
	if size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return Page{Page: page, PageSize: size}
}

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

func NewPagination(p Page, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(p.PageSize)))
	return Pagination{
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
		HasMore:    p.Page < totalPages,
	}
}

// SortOrder maps the sortOrder query value to a SQL direction.
func SortOrder(value, fallback string) string {
	switch strings.ToLower(value) {
	case "asc":
		return "ASC"
	case "desc":
		return "DESC"
	}
	return fallback
}

// ----------------------------------------
// AUDIT
// ----------------------------------------

// Record writes an audit event attributed to the current caller. A failed
// write is logged and otherwise ignored; the request has already succeeded.
func Record(c *fiber.Ctx, w audit.Writer, action models.AuditAction, targetType string, targetID uint, format string, args ...any) {
	opts := audit.LogOptions{
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Description: fmt.Sprintf(format, args...),
	}
	if identity, ok := auth.CurrentIdentity(c); ok {
		id := identity.UserID
		opts.ActorID, opts.ActorEmail = &id, identity.Email
	}
	if err := w.WriteLog(c.UserContext(), opts); err != nil {
		logging.FromFiber(c, nil).Warn("audit write failed", "action", action, "target_type", targetType, "error", err)
	}
}

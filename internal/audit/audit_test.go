package audit

import (
	"context"
	"strings"
	"sync"
	"testing"

	"hrportal-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func TestRecorder_WriteLogCarriesRemoteAddr(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	actor := uint(1)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "audit_events"`).
		WithArgs(sqlmock.AnyArg(), &actor, "admin@x.com", models.AuditActionPasswordChanged, "user", 1, "password changed", "10.0.0.1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	ctx := ContextWithRemoteAddr(context.Background(), "10.0.0.1")
	err = NewRecorder(db, nil).WriteLog(ctx, LogOptions{
		ActorID:     &actor,
		ActorEmail:  "admin@x.com",
		Action:      models.AuditActionPasswordChanged,
		TargetType:  "user",
		TargetID:    1,
		Description: "password changed",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditEvent_DescriptionIsUnbounded(t *testing.T) {
	s, err := schema.Parse(&models.AuditEvent{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	field := s.LookUpField("Description")
	require.NotNil(t, field)
	assert.Equal(t, "text", field.TagSettings["TYPE"])
	assert.Zero(t, field.Size)
}

func TestRecorder_WriteLogKeepsLongDescription(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	// a 255 character email pushes the description past 255
	description := "user " + strings.Repeat("a", 245) + "@x.com deleted"

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "audit_events"`).
		WithArgs(sqlmock.AnyArg(), nil, "", models.AuditActionUserDeleted, "user", 7, description, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err = NewRecorder(db, nil).WriteLog(context.Background(), LogOptions{
		Action:      models.AuditActionUserDeleted,
		TargetType:  "user",
		TargetID:    7,
		Description: description,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

package store

// Driver-level failure paths, exercised with sqlmock so errors surface
// deterministically without corrupting a real database.

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/haasonsaas/retrochat/pkg/models"
)

func mockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { raw.Close() })
	return &DB{db: raw}, mock
}

func TestAnalyticsSaveWrapsDriverError(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec("INSERT INTO analytics").WillReturnError(errors.New("disk I/O error"))

	analytics := models.NewAnalytics("req-1", "sess-1",
		models.AIQualitativeOutput{}, models.AIQuantitativeOutput{}, models.Metrics{})

	err := NewAnalyticsRepo(db).Save(context.Background(), analytics)
	if err == nil {
		t.Fatal("expected driver error to propagate")
	}
	if got := err.Error(); !strings.Contains(got, "failed to insert analytics") {
		t.Errorf("error = %q, want operation context", got)
	}
}

func TestBulkCreateRollsBackOnFailure(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO tool_operations")
	mock.ExpectExec("INSERT INTO tool_operations").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	op := models.NewToolOperation("m1", "tu-1", "s1", "Read", time.Now().UTC())
	err := (&ToolOperationRepo{db: db.Handle()}).BulkCreate(context.Background(), []*models.ToolOperation{op})
	if err == nil {
		t.Fatal("expected bulk create failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRequestScanRejectsInvalidStatus(t *testing.T) {
	db, mock := mockDB(t)
	rows := sqlmock.NewRows([]string{
		"id", "session_id", "status", "started_at", "completed_at",
		"created_by", "error_message", "custom_prompt",
	}).AddRow("r1", "s1", "exploded", "2025-06-01T10:00:00Z", nil, nil, nil, nil)
	mock.ExpectQuery("FROM analytics_requests").WillReturnRows(rows)

	_, err := (&AnalyticsRequestRepo{db: db.Handle()}).FindByID(context.Background(), "r1")
	if err == nil {
		t.Fatal("expected invalid status error")
	}
	if !strings.Contains(err.Error(), "invalid operation status") {
		t.Errorf("error = %q", err)
	}
}

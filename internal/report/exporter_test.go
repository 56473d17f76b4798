package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mobilehr/bpm-bridge/internal/models"
	"github.com/mobilehr/bpm-bridge/internal/repository"
	"github.com/mobilehr/bpm-bridge/pkg/database"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate("../../migrations"))
	return repository.NewStore(db, zap.NewNop())
}

func seedLeave(t *testing.T, store *repository.Store, formID string) {
	t.Helper()
	apply := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	form := &models.Form{
		FormID:      formID,
		FormCode:    models.ProcessCodeLeave,
		FormType:    models.FormTypeLeave,
		ApplicantID: "E1001",
		CompanyID:   "C01",
		Status:      models.StatusRunning,
		ApplyDate:   apply,
	}
	sub := &models.LeaveDetail{
		FormID:    formID,
		LeaveType: "ANNUAL",
		StartTime: apply,
		EndTime:   apply.Add(24 * time.Hour),
	}
	require.NoError(t, store.UpsertForm(context.Background(), form, sub, nil, models.SyncTypeInitialPull, "seed"))
}

func TestExportForms(t *testing.T) {
	store := newTestStore(t)
	seedLeave(t, store, "PS-100")
	seedLeave(t, store, "PS-101")

	exporter := NewExporter(store, zap.NewNop())
	data, err := exporter.ExportForms(repository.ListFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Forms")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + two forms
	assert.Equal(t, "Form ID", rows[0][0])
	assert.Equal(t, "LEAVE", rows[1][2])

	logRows, err := f.GetRows("Sync Logs")
	require.NoError(t, err)
	require.Len(t, logRows, 3) // header + one log per form
	assert.Equal(t, models.SyncTypeInitialPull, logRows[1][1])
}

func TestExportForms_Filtered(t *testing.T) {
	store := newTestStore(t)
	seedLeave(t, store, "PS-100")

	exporter := NewExporter(store, zap.NewNop())
	data, err := exporter.ExportForms(repository.ListFilter{ApplicantID: "NOBODY"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Forms")
	require.NoError(t, err)
	assert.Len(t, rows, 1) // header only
}

func TestExportDriftReport(t *testing.T) {
	store := newTestStore(t)
	seedLeave(t, store, "PS-100")
	seedLeave(t, store, "PS-200")

	// PS-200's latest attempt failed; only it should appear.
	require.NoError(t, store.AppendSyncLog("PS-200", models.SyncTypeStatusUpdate,
		models.SyncStatusFailed, "remote fetch failed"))

	exporter := NewExporter(store, zap.NewNop())
	data, err := exporter.ExportDriftReport()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Drifted Forms")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "PS-200", rows[1][0])
}

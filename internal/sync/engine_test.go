package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mobilehr/bpm-bridge/internal/bpm"
	"github.com/mobilehr/bpm-bridge/internal/models"
	"github.com/mobilehr/bpm-bridge/internal/repository"
	"github.com/mobilehr/bpm-bridge/pkg/database"
)

type mockClient struct {
	queryProcessInfoFunc func(ctx context.Context, serialNo, code string) (*bpm.ProcessInfo, error)
	queryWorkItemsFunc   func(ctx context.Context, uid string) ([]bpm.WorkItem, error)
}

func (m *mockClient) QueryProcessInfo(ctx context.Context, serialNo, code string) (*bpm.ProcessInfo, error) {
	if m.queryProcessInfoFunc != nil {
		return m.queryProcessInfoFunc(ctx, serialNo, code)
	}
	return nil, bpm.ErrProcessNotFound
}

func (m *mockClient) QueryWorkItems(ctx context.Context, uid string) ([]bpm.WorkItem, error) {
	if m.queryWorkItemsFunc != nil {
		return m.queryWorkItemsFunc(ctx, uid)
	}
	return nil, nil
}

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

func leaveProcessInfo(serialNo string) *bpm.ProcessInfo {
	return &bpm.ProcessInfo{
		ProcessSerialNo: serialNo,
		ProcessCode:     models.ProcessCodeLeave,
		Status:          "RUNNING",
		ApplicantID:     "E1001",
		CompanyID:       "C01",
		ApplyDate:       "2025-03-01 09:30:00",
		FormData: map[string]string{
			"leaveType": "ANNUAL",
			"startTime": "2025-03-03 09:00:00",
			"endTime":   "2025-03-05 18:00:00",
		},
		SignRecords: []bpm.SignRecord{
			{ApproverID: "E2002", Action: "APPROVED", ActionTime: "2025-03-01 10:00:00"},
		},
	}
}

// Pulling a leave process lands exactly one header row and one leave detail
// row keyed by the remote serial number.
func TestPullForm_InitialLeavePull(t *testing.T) {
	store := newTestStore(t)
	client := &mockClient{
		queryProcessInfoFunc: func(ctx context.Context, serialNo, code string) (*bpm.ProcessInfo, error) {
			return leaveProcessInfo(serialNo), nil
		},
	}
	engine := NewEngine(client, store, zap.NewNop())

	outcome, err := engine.PullForm(context.Background(), "PS-100", models.ProcessCodeLeave)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)

	form, err := store.GetForm("PS-100")
	require.NoError(t, err)
	require.NotNil(t, form)
	assert.Equal(t, models.FormTypeLeave, form.FormType)

	sub, err := store.Forms.GetSubForm(form)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "ANNUAL", sub.(*models.LeaveDetail).LeaveType)

	logs, err := store.SyncLogs.ListByFormID("PS-100")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncTypeInitialPull, logs[0].SyncType)
	assert.Equal(t, models.SyncStatusSuccess, logs[0].SyncStatus)
}

// A second pull with the same payload changes nothing and logs as a status
// refresh instead of an initial pull.
func TestPullForm_RepullIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	client := &mockClient{
		queryProcessInfoFunc: func(ctx context.Context, serialNo, code string) (*bpm.ProcessInfo, error) {
			return leaveProcessInfo(serialNo), nil
		},
	}
	engine := NewEngine(client, store, zap.NewNop())
	ctx := context.Background()

	_, err := engine.PullForm(ctx, "PS-100", models.ProcessCodeLeave)
	require.NoError(t, err)
	outcome, err := engine.PullForm(ctx, "PS-100", models.ProcessCodeLeave)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)

	history, err := store.History.GetByFormID("PS-100")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	logs, err := store.SyncLogs.ListByFormID("PS-100")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	// Newest first.
	assert.Equal(t, models.SyncTypeStatusUpdate, logs[0].SyncType)
	assert.Equal(t, models.SyncTypeInitialPull, logs[1].SyncType)
}

func TestPullForm_NotFoundIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	client := &mockClient{}
	engine := NewEngine(client, store, zap.NewNop())

	outcome, err := engine.PullForm(context.Background(), "PS-404", models.ProcessCodeLeave)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)

	// Nothing mirrored, nothing logged as failed.
	form, err := store.GetForm("PS-404")
	require.NoError(t, err)
	assert.Nil(t, form)
	logs, err := store.SyncLogs.ListByFormID("PS-404")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestPullForm_TransportFailureLogged(t *testing.T) {
	store := newTestStore(t)
	client := &mockClient{
		queryProcessInfoFunc: func(ctx context.Context, serialNo, code string) (*bpm.ProcessInfo, error) {
			return nil, &bpm.TransportError{Op: "query process info", Cause: context.DeadlineExceeded}
		},
	}
	engine := NewEngine(client, store, zap.NewNop())

	_, err := engine.PullForm(context.Background(), "PS-100", models.ProcessCodeLeave)
	require.Error(t, err)
	assert.True(t, bpm.IsTransport(err))

	logs, logErr := store.SyncLogs.ListByFormID("PS-100")
	require.NoError(t, logErr)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncStatusFailed, logs[0].SyncStatus)
}

func TestPullForm_MappingFailureLogged(t *testing.T) {
	store := newTestStore(t)
	client := &mockClient{
		queryProcessInfoFunc: func(ctx context.Context, serialNo, code string) (*bpm.ProcessInfo, error) {
			info := leaveProcessInfo(serialNo)
			delete(info.FormData, "leaveType")
			return info, nil
		},
	}
	engine := NewEngine(client, store, zap.NewNop())

	_, err := engine.PullForm(context.Background(), "PS-100", models.ProcessCodeLeave)
	require.Error(t, err)

	var me *MappingError
	assert.ErrorAs(t, err, &me)

	// The mirror was not touched; the failure is in the audit trail.
	form, getErr := store.GetForm("PS-100")
	require.NoError(t, getErr)
	assert.Nil(t, form)
	logs, logErr := store.SyncLogs.ListByFormID("PS-100")
	require.NoError(t, logErr)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncStatusFailed, logs[0].SyncStatus)
	assert.Contains(t, logs[0].Detail, "leaveType")
}

type failingReadMirror struct {
	getFormErr error
	syncLogs   []string
}

func (m *failingReadMirror) GetForm(formID string) (*models.Form, error) {
	return nil, m.getFormErr
}

func (m *failingReadMirror) UpsertForm(ctx context.Context, form *models.Form, sub models.SubForm,
	history []*models.ApprovalEntry, syncType, detail string) error {
	return nil
}

func (m *failingReadMirror) AppendSyncLog(formID, syncType, syncStatus, detail string) error {
	m.syncLogs = append(m.syncLogs, syncStatus+":"+detail)
	return nil
}

func TestPullForm_MirrorReadFailureLogged(t *testing.T) {
	mirror := &failingReadMirror{getFormErr: errors.New("database is locked")}
	client := &mockClient{
		queryProcessInfoFunc: func(ctx context.Context, serialNo, code string) (*bpm.ProcessInfo, error) {
			return leaveProcessInfo(serialNo), nil
		},
	}
	engine := NewEngine(client, mirror, zap.NewNop())

	_, err := engine.PullForm(context.Background(), "PS-100", models.ProcessCodeLeave)
	require.Error(t, err)

	require.Len(t, mirror.syncLogs, 1)
	assert.Contains(t, mirror.syncLogs[0], models.SyncStatusFailed)
	assert.Contains(t, mirror.syncLogs[0], "local mirror read failed")
}

func TestPullForm_UnknownFormCode(t *testing.T) {
	engine := NewEngine(&mockClient{}, newTestStore(t), zap.NewNop())

	_, err := engine.PullForm(context.Background(), "PS-100", "UNKNOWN_CODE")
	require.Error(t, err)

	var me *MappingError
	assert.ErrorAs(t, err, &me)
}

func TestPullWorkItems(t *testing.T) {
	store := newTestStore(t)
	client := &mockClient{
		queryWorkItemsFunc: func(ctx context.Context, uid string) ([]bpm.WorkItem, error) {
			return []bpm.WorkItem{
				{ProcessSerialNumber: "PS-100", ProcessCode: models.ProcessCodeLeave},
				{ProcessSerialNumber: "PS-200", ProcessCode: "LEGACY_CODE"},
				{ProcessSerialNumber: "PS-300", ProcessCode: models.ProcessCodeLeave},
			}, nil
		},
		queryProcessInfoFunc: func(ctx context.Context, serialNo, code string) (*bpm.ProcessInfo, error) {
			if serialNo == "PS-300" {
				return nil, bpm.ErrProcessNotFound
			}
			return leaveProcessInfo(serialNo), nil
		},
	}
	engine := NewEngine(client, store, zap.NewNop())

	results, err := engine.PullWorkItems(context.Background(), "E1001")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, OutcomeSynced, results[0].Outcome)
	assert.Contains(t, results[1].Error, "unknown form code")
	assert.Equal(t, OutcomeNotFound, results[2].Outcome)

	form, err := store.GetForm("PS-100")
	require.NoError(t, err)
	assert.NotNil(t, form)
}

package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilehr/bpm-bridge/internal/bpm"
	"github.com/mobilehr/bpm-bridge/internal/models"
)

func baseInfo(code string, data map[string]string) *bpm.ProcessInfo {
	return &bpm.ProcessInfo{
		ProcessSerialNo: "PS-100",
		ProcessCode:     code,
		Status:          "RUNNING",
		ApplicantID:     "E1001",
		CompanyID:       "C01",
		ApplyDate:       "2025-03-01 09:30:00",
		FormData:        data,
	}
}

func TestMapProcess_Leave(t *testing.T) {
	info := baseInfo(models.ProcessCodeLeave, map[string]string{
		"leaveType": "ANNUAL",
		"startTime": "2025-03-03 09:00:00",
		"endTime":   "2025-03-05 18:00:00",
		"agentId":   "E1002",
		"reason":    "family trip",
	})
	info.SignRecords = []bpm.SignRecord{
		{ApproverID: "E2002", Action: "APPROVED", ActionTime: "2025-03-01 10:00:00"},
	}

	form, sub, history, err := mapProcess(info, models.FormTypeLeave)
	require.NoError(t, err)

	assert.Equal(t, "PS-100", form.FormID)
	assert.Equal(t, models.FormTypeLeave, form.FormType)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), form.ApplyDate)

	leave, ok := sub.(*models.LeaveDetail)
	require.True(t, ok)
	assert.Equal(t, "ANNUAL", leave.LeaveType)
	assert.Equal(t, "E1002", leave.AgentID)

	require.Len(t, history, 1)
	assert.Equal(t, "E2002", history[0].ApproverID)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), history[0].ActionTime)
}

func TestMapProcess_Overtime(t *testing.T) {
	info := baseInfo(models.ProcessCodeOvertime, map[string]string{
		"startTime": "2025-03-03 19:00:00",
		"endTime":   "2025-03-03 22:00:00",
		"reason":    "release support",
	})

	_, sub, _, err := mapProcess(info, models.FormTypeOvertime)
	require.NoError(t, err)

	ot, ok := sub.(*models.OvertimeDetail)
	require.True(t, ok)
	assert.Equal(t, "release support", ot.Reason)
}

func TestMapProcess_BusinessTrip(t *testing.T) {
	info := baseInfo(models.ProcessCodeBusinessTrip, map[string]string{
		"location":  "Kaohsiung",
		"startTime": "2025-04-01 08:00:00",
		"endTime":   "2025-04-03 20:00:00",
	})

	_, sub, _, err := mapProcess(info, models.FormTypeBusinessTrip)
	require.NoError(t, err)

	trip, ok := sub.(*models.BusinessTripDetail)
	require.True(t, ok)
	assert.Equal(t, "Kaohsiung", trip.Location)
}

func TestMapProcess_CancelLeave(t *testing.T) {
	info := baseInfo(models.ProcessCodeCancelLeave, map[string]string{
		"originalFormId": "PS-050",
		"reason":         "plans changed",
	})

	_, sub, _, err := mapProcess(info, models.FormTypeCancelLeave)
	require.NoError(t, err)

	cancel, ok := sub.(*models.CancelLeaveDetail)
	require.True(t, ok)
	assert.Equal(t, "PS-050", cancel.OriginalFormID)
}

func TestMapProcess_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		formType models.FormType
		mutate   func(info *bpm.ProcessInfo)
		want     string
	}{
		{
			name:     "missing serial number",
			formType: models.FormTypeLeave,
			mutate:   func(info *bpm.ProcessInfo) { info.ProcessSerialNo = "" },
			want:     "processSerialNo",
		},
		{
			name:     "missing applicant",
			formType: models.FormTypeLeave,
			mutate:   func(info *bpm.ProcessInfo) { info.ApplicantID = "" },
			want:     "applicantId",
		},
		{
			name:     "missing leave type",
			formType: models.FormTypeLeave,
			mutate:   func(info *bpm.ProcessInfo) { delete(info.FormData, "leaveType") },
			want:     "leaveType",
		},
		{
			name:     "missing start time",
			formType: models.FormTypeLeave,
			mutate:   func(info *bpm.ProcessInfo) { delete(info.FormData, "startTime") },
			want:     "startTime",
		},
		{
			name:     "unparseable apply date",
			formType: models.FormTypeLeave,
			mutate:   func(info *bpm.ProcessInfo) { info.ApplyDate = "03/01/2025" },
			want:     "applyDate",
		},
		{
			name:     "sign record missing approver",
			formType: models.FormTypeLeave,
			mutate: func(info *bpm.ProcessInfo) {
				info.SignRecords = []bpm.SignRecord{{ActionTime: "2025-03-01 10:00:00"}}
			},
			want: "approverId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := baseInfo(models.ProcessCodeLeave, map[string]string{
				"leaveType": "ANNUAL",
				"startTime": "2025-03-03 09:00:00",
				"endTime":   "2025-03-05 18:00:00",
			})
			tt.mutate(info)

			_, _, _, err := mapProcess(info, tt.formType)
			require.Error(t, err)

			var me *MappingError
			require.ErrorAs(t, err, &me)
			assert.Contains(t, me.Reason, tt.want)
		})
	}
}

func TestMapProcess_CancelLeaveMissingOriginal(t *testing.T) {
	info := baseInfo(models.ProcessCodeCancelLeave, map[string]string{"reason": "plans changed"})

	_, _, _, err := mapProcess(info, models.FormTypeCancelLeave)
	require.Error(t, err)

	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Contains(t, me.Reason, "originalFormId")
}

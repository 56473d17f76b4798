package sync

import (
	"fmt"
	"time"

	"github.com/mobilehr/bpm-bridge/internal/bpm"
	"github.com/mobilehr/bpm-bridge/internal/models"
)

// timeLayout is the timestamp format the middleware emits.
const timeLayout = "2006-01-02 15:04:05"

// MappingError means a remote payload does not match the schema its form code
// declares. Payloads are never silently defaulted; the raw field is named so
// the sync log can point at it.
type MappingError struct {
	FormID string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("sync: map form %s: %s", e.FormID, e.Reason)
}

func mappingErr(formID, format string, args ...interface{}) error {
	return &MappingError{FormID: formID, Reason: fmt.Sprintf(format, args...)}
}

// mapProcess turns the remote process representation into the local form
// aggregate. The sub-form shape is driven by the form code's type.
func mapProcess(info *bpm.ProcessInfo, formType models.FormType) (*models.Form, models.SubForm, []*models.ApprovalEntry, error) {
	formID := info.ProcessSerialNo
	if formID == "" {
		return nil, nil, nil, mappingErr("?", "payload missing processSerialNo")
	}
	if info.ApplicantID == "" {
		return nil, nil, nil, mappingErr(formID, "payload missing applicantId")
	}
	if info.Status == "" {
		return nil, nil, nil, mappingErr(formID, "payload missing status")
	}

	applyDate, err := parseTime(formID, "applyDate", info.ApplyDate)
	if err != nil {
		return nil, nil, nil, err
	}

	form := &models.Form{
		FormID:      formID,
		FormCode:    info.ProcessCode,
		FormType:    formType,
		ApplicantID: info.ApplicantID,
		CompanyID:   info.CompanyID,
		Status:      info.Status,
		ApplyDate:   applyDate,
	}

	sub, err := mapSubForm(formID, formType, info.FormData)
	if err != nil {
		return nil, nil, nil, err
	}

	history, err := mapSignRecords(formID, info.SignRecords)
	if err != nil {
		return nil, nil, nil, err
	}

	return form, sub, history, nil
}

func mapSubForm(formID string, formType models.FormType, data map[string]string) (models.SubForm, error) {
	switch formType {
	case models.FormTypeLeave:
		start, end, err := parseRange(formID, data)
		if err != nil {
			return nil, err
		}
		leaveType, ok := data["leaveType"]
		if !ok || leaveType == "" {
			return nil, mappingErr(formID, "leave payload missing leaveType")
		}
		return &models.LeaveDetail{
			FormID:    formID,
			LeaveType: leaveType,
			StartTime: start,
			EndTime:   end,
			AgentID:   data["agentId"],
			Reason:    data["reason"],
		}, nil

	case models.FormTypeOvertime:
		start, end, err := parseRange(formID, data)
		if err != nil {
			return nil, err
		}
		return &models.OvertimeDetail{
			FormID:    formID,
			StartTime: start,
			EndTime:   end,
			Reason:    data["reason"],
		}, nil

	case models.FormTypeBusinessTrip:
		start, end, err := parseRange(formID, data)
		if err != nil {
			return nil, err
		}
		location, ok := data["location"]
		if !ok || location == "" {
			return nil, mappingErr(formID, "business trip payload missing location")
		}
		return &models.BusinessTripDetail{
			FormID:    formID,
			Location:  location,
			StartTime: start,
			EndTime:   end,
			Purpose:   data["purpose"],
		}, nil

	case models.FormTypeCancelLeave:
		original, ok := data["originalFormId"]
		if !ok || original == "" {
			return nil, mappingErr(formID, "cancel leave payload missing originalFormId")
		}
		return &models.CancelLeaveDetail{
			FormID:         formID,
			OriginalFormID: original,
			Reason:         data["reason"],
		}, nil
	}

	return nil, mappingErr(formID, "unsupported form type %s", formType)
}

func mapSignRecords(formID string, records []bpm.SignRecord) ([]*models.ApprovalEntry, error) {
	var entries []*models.ApprovalEntry
	for i, rec := range records {
		if rec.ApproverID == "" {
			return nil, mappingErr(formID, "sign record %d missing approverId", i)
		}
		actionTime, err := parseTime(formID, fmt.Sprintf("signRecords[%d].actionTime", i), rec.ActionTime)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &models.ApprovalEntry{
			FormID:     formID,
			ApproverID: rec.ApproverID,
			Action:     rec.Action,
			Comment:    rec.Comment,
			ActionTime: actionTime,
		})
	}
	return entries, nil
}

func parseRange(formID string, data map[string]string) (time.Time, time.Time, error) {
	start, err := parseTime(formID, "startTime", data["startTime"])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTime(formID, "endTime", data["endTime"])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseTime(formID, field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, mappingErr(formID, "payload missing %s", field)
	}
	t, err := time.ParseInLocation(timeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, mappingErr(formID, "unparseable %s %q", field, value)
	}
	return t, nil
}

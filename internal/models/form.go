package models

import "time"

// FormType identifies which sub-form detail record a form owns.
type FormType string

const (
	FormTypeLeave        FormType = "LEAVE"
	FormTypeOvertime     FormType = "OVERTIME"
	FormTypeBusinessTrip FormType = "BUSINESS_TRIP"
	FormTypeCancelLeave  FormType = "CANCEL_LEAVE"
)

// Process template codes on the BPM side, mapped one-to-one to form types.
const (
	ProcessCodeLeave        = "HR_LEAVE"
	ProcessCodeOvertime     = "HR_OVERTIME"
	ProcessCodeBusinessTrip = "HR_BUSINESS_TRIP"
	ProcessCodeCancelLeave  = "HR_CANCEL_LEAVE"
)

// FormTypeFromCode maps a BPM process template code to its form type.
func FormTypeFromCode(processCode string) (FormType, bool) {
	switch processCode {
	case ProcessCodeLeave:
		return FormTypeLeave, true
	case ProcessCodeOvertime:
		return FormTypeOvertime, true
	case ProcessCodeBusinessTrip:
		return FormTypeBusinessTrip, true
	case ProcessCodeCancelLeave:
		return FormTypeCancelLeave, true
	}
	return "", false
}

// ProcessCode returns the BPM process template code for a form type.
func (t FormType) ProcessCode() string {
	switch t {
	case FormTypeLeave:
		return ProcessCodeLeave
	case FormTypeOvertime:
		return ProcessCodeOvertime
	case FormTypeBusinessTrip:
		return ProcessCodeBusinessTrip
	case FormTypeCancelLeave:
		return ProcessCodeCancelLeave
	}
	return ""
}

// Process status values mirrored from BPM. The remote system owns the state
// machine; these are observed values, not an exhaustive set.
const (
	StatusSubmitted = "SUBMITTED"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusAborted   = "ABORTED"
	StatusWithdrawn = "WITHDRAWN"
)

// Form is the local mirror of one BPM process instance. FormID is the remote
// process serial number and is globally unique.
type Form struct {
	FormID      string    `json:"form_id"`
	FormCode    string    `json:"form_code"`
	FormType    FormType  `json:"form_type"`
	ApplicantID string    `json:"applicant_id"`
	CompanyID   string    `json:"company_id"`
	Status      string    `json:"status"`
	ApplyDate   time.Time `json:"apply_date"`
	IsCancelled bool      `json:"is_cancelled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubForm is the type-specific detail record owned by a Form. Exactly one
// implementation exists per FormType; the concrete type must match the parent
// form's FormType.
type SubForm interface {
	FormType() FormType
	ParentID() string
}

// LeaveDetail holds leave-specific fields.
type LeaveDetail struct {
	FormID    string    `json:"form_id"`
	LeaveType string    `json:"leave_type"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	AgentID   string    `json:"agent_id"`
	Reason    string    `json:"reason"`
}

func (d *LeaveDetail) FormType() FormType { return FormTypeLeave }
func (d *LeaveDetail) ParentID() string   { return d.FormID }

// OvertimeDetail holds overtime-specific fields.
type OvertimeDetail struct {
	FormID    string    `json:"form_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
}

func (d *OvertimeDetail) FormType() FormType { return FormTypeOvertime }
func (d *OvertimeDetail) ParentID() string   { return d.FormID }

// BusinessTripDetail holds business-trip-specific fields.
type BusinessTripDetail struct {
	FormID    string    `json:"form_id"`
	Location  string    `json:"location"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Purpose   string    `json:"purpose"`
}

func (d *BusinessTripDetail) FormType() FormType { return FormTypeBusinessTrip }
func (d *BusinessTripDetail) ParentID() string   { return d.FormID }

// CancelLeaveDetail references the original leave form being cancelled.
type CancelLeaveDetail struct {
	FormID         string `json:"form_id"`
	OriginalFormID string `json:"original_form_id"`
	Reason         string `json:"reason"`
}

func (d *CancelLeaveDetail) FormType() FormType { return FormTypeCancelLeave }
func (d *CancelLeaveDetail) ParentID() string   { return d.FormID }

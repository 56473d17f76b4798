package repository

import (
	"database/sql"
	"fmt"

	"github.com/mobilehr/bpm-bridge/internal/models"
	"go.uber.org/zap"
)

// FormRepository handles the bpm_forms header table and the four sub-form
// detail tables.
type FormRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFormRepository creates a form repository.
func NewFormRepository(db *sql.DB, logger *zap.Logger) *FormRepository {
	return &FormRepository{db: db, logger: logger}
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (r *FormRepository) execer(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.db
}

// Upsert writes or overwrites the form header and its matching sub-form row.
// The sub-form's concrete type must match form.FormType; a mismatch fails
// before any write. is_cancelled is never touched by an upsert: the flag is
// owned by the cancel/withdraw path and a status refresh must not reset it.
func (r *FormRepository) Upsert(tx *sql.Tx, form *models.Form, sub models.SubForm) error {
	if sub == nil {
		return persistErr("upsert form", fmt.Errorf("missing sub-form for %s", form.FormID))
	}
	if sub.FormType() != form.FormType {
		return persistErr("upsert form",
			fmt.Errorf("sub-form type %s does not match form type %s for %s",
				sub.FormType(), form.FormType, form.FormID))
	}
	if sub.ParentID() != form.FormID {
		return persistErr("upsert form",
			fmt.Errorf("sub-form parent %s does not match form %s", sub.ParentID(), form.FormID))
	}

	ex := r.execer(tx)

	_, err := ex.Exec(`
		INSERT INTO bpm_forms (
			form_id, form_code, form_type, applicant_id, company_id, status, apply_date
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(form_id) DO UPDATE SET
			form_code    = excluded.form_code,
			form_type    = excluded.form_type,
			applicant_id = excluded.applicant_id,
			company_id   = excluded.company_id,
			status       = excluded.status,
			apply_date   = excluded.apply_date,
			updated_at   = CURRENT_TIMESTAMP`,
		form.FormID, form.FormCode, form.FormType, form.ApplicantID,
		form.CompanyID, form.Status, form.ApplyDate,
	)
	if err != nil {
		r.logger.Error("Failed to upsert form header",
			zap.String("form_id", form.FormID), zap.Error(err))
		return persistErr("upsert form header", err)
	}

	if err := r.upsertSubForm(ex, sub); err != nil {
		r.logger.Error("Failed to upsert sub-form",
			zap.String("form_id", form.FormID),
			zap.String("form_type", string(form.FormType)),
			zap.Error(err))
		return err
	}
	return nil
}

func (r *FormRepository) upsertSubForm(ex execer, sub models.SubForm) error {
	var err error
	switch d := sub.(type) {
	case *models.LeaveDetail:
		_, err = ex.Exec(`
			INSERT INTO bpm_leave_forms (form_id, leave_type, start_time, end_time, agent_id, reason)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(form_id) DO UPDATE SET
				leave_type = excluded.leave_type,
				start_time = excluded.start_time,
				end_time   = excluded.end_time,
				agent_id   = excluded.agent_id,
				reason     = excluded.reason`,
			d.FormID, d.LeaveType, d.StartTime, d.EndTime, d.AgentID, d.Reason)
	case *models.OvertimeDetail:
		_, err = ex.Exec(`
			INSERT INTO bpm_overtime_forms (form_id, start_time, end_time, reason)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(form_id) DO UPDATE SET
				start_time = excluded.start_time,
				end_time   = excluded.end_time,
				reason     = excluded.reason`,
			d.FormID, d.StartTime, d.EndTime, d.Reason)
	case *models.BusinessTripDetail:
		_, err = ex.Exec(`
			INSERT INTO bpm_business_trip_forms (form_id, location, start_time, end_time, purpose)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(form_id) DO UPDATE SET
				location   = excluded.location,
				start_time = excluded.start_time,
				end_time   = excluded.end_time,
				purpose    = excluded.purpose`,
			d.FormID, d.Location, d.StartTime, d.EndTime, d.Purpose)
	case *models.CancelLeaveDetail:
		_, err = ex.Exec(`
			INSERT INTO bpm_cancel_leave_forms (form_id, original_form_id, reason)
			VALUES (?, ?, ?)
			ON CONFLICT(form_id) DO UPDATE SET
				original_form_id = excluded.original_form_id,
				reason           = excluded.reason`,
			d.FormID, d.OriginalFormID, d.Reason)
	default:
		return persistErr("upsert sub-form", fmt.Errorf("unknown sub-form type %T", sub))
	}
	if err != nil {
		return persistErr("upsert sub-form", err)
	}
	return nil
}

// GetByID retrieves a form header. Returns nil, nil when absent.
func (r *FormRepository) GetByID(formID string) (*models.Form, error) {
	var form models.Form
	err := r.db.QueryRow(`
		SELECT form_id, form_code, form_type, applicant_id, company_id,
			status, apply_date, is_cancelled, created_at, updated_at
		FROM bpm_forms WHERE form_id = ?`, formID).Scan(
		&form.FormID, &form.FormCode, &form.FormType, &form.ApplicantID,
		&form.CompanyID, &form.Status, &form.ApplyDate, &form.IsCancelled,
		&form.CreatedAt, &form.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get form", zap.String("form_id", formID), zap.Error(err))
		return nil, persistErr("get form", err)
	}
	return &form, nil
}

// GetSubForm loads the detail record matching the form's type.
func (r *FormRepository) GetSubForm(form *models.Form) (models.SubForm, error) {
	var (
		sub models.SubForm
		err error
	)
	switch form.FormType {
	case models.FormTypeLeave:
		d := &models.LeaveDetail{}
		err = r.db.QueryRow(`
			SELECT form_id, leave_type, start_time, end_time, agent_id, reason
			FROM bpm_leave_forms WHERE form_id = ?`, form.FormID).Scan(
			&d.FormID, &d.LeaveType, &d.StartTime, &d.EndTime, &d.AgentID, &d.Reason)
		sub = d
	case models.FormTypeOvertime:
		d := &models.OvertimeDetail{}
		err = r.db.QueryRow(`
			SELECT form_id, start_time, end_time, reason
			FROM bpm_overtime_forms WHERE form_id = ?`, form.FormID).Scan(
			&d.FormID, &d.StartTime, &d.EndTime, &d.Reason)
		sub = d
	case models.FormTypeBusinessTrip:
		d := &models.BusinessTripDetail{}
		err = r.db.QueryRow(`
			SELECT form_id, location, start_time, end_time, purpose
			FROM bpm_business_trip_forms WHERE form_id = ?`, form.FormID).Scan(
			&d.FormID, &d.Location, &d.StartTime, &d.EndTime, &d.Purpose)
		sub = d
	case models.FormTypeCancelLeave:
		d := &models.CancelLeaveDetail{}
		err = r.db.QueryRow(`
			SELECT form_id, original_form_id, reason
			FROM bpm_cancel_leave_forms WHERE form_id = ?`, form.FormID).Scan(
			&d.FormID, &d.OriginalFormID, &d.Reason)
		sub = d
	default:
		return nil, persistErr("get sub-form", fmt.Errorf("unknown form type %s", form.FormType))
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get sub-form", err)
	}
	return sub, nil
}

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	ApplicantID string
	CompanyID   string
	FormType    models.FormType
	Status      string
	Cancelled   *bool
	Limit       int
	Offset      int
}

// List retrieves form headers matching the filter, newest first.
func (r *FormRepository) List(filter ListFilter) ([]*models.Form, error) {
	query := `
		SELECT form_id, form_code, form_type, applicant_id, company_id,
			status, apply_date, is_cancelled, created_at, updated_at
		FROM bpm_forms WHERE 1=1`
	var args []interface{}

	if filter.ApplicantID != "" {
		query += " AND applicant_id = ?"
		args = append(args, filter.ApplicantID)
	}
	if filter.CompanyID != "" {
		query += " AND company_id = ?"
		args = append(args, filter.CompanyID)
	}
	if filter.FormType != "" {
		query += " AND form_type = ?"
		args = append(args, filter.FormType)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Cancelled != nil {
		query += " AND is_cancelled = ?"
		args = append(args, *filter.Cancelled)
	}

	query += " ORDER BY apply_date DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list forms", zap.Error(err))
		return nil, persistErr("list forms", err)
	}
	defer rows.Close()

	var forms []*models.Form
	for rows.Next() {
		var form models.Form
		if err := rows.Scan(
			&form.FormID, &form.FormCode, &form.FormType, &form.ApplicantID,
			&form.CompanyID, &form.Status, &form.ApplyDate, &form.IsCancelled,
			&form.CreatedAt, &form.UpdatedAt,
		); err != nil {
			return nil, persistErr("scan form", err)
		}
		forms = append(forms, &form)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list forms", err)
	}
	return forms, nil
}

// UpdateStatus overwrites the mirrored status of one form.
func (r *FormRepository) UpdateStatus(tx *sql.Tx, formID, status string) error {
	res, err := r.execer(tx).Exec(
		"UPDATE bpm_forms SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE form_id = ?",
		status, formID)
	if err != nil {
		r.logger.Error("Failed to update form status",
			zap.String("form_id", formID), zap.String("status", status), zap.Error(err))
		return persistErr("update status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return persistErr("update status", fmt.Errorf("form %s not present in mirror", formID))
	}
	return nil
}

// MarkCancelled sets is_cancelled. One-way: the flag is only ever set to true
// and a repeated call is a no-op.
func (r *FormRepository) MarkCancelled(tx *sql.Tx, formID string) error {
	_, err := r.execer(tx).Exec(
		"UPDATE bpm_forms SET is_cancelled = 1, updated_at = CURRENT_TIMESTAMP WHERE form_id = ?",
		formID)
	if err != nil {
		r.logger.Error("Failed to mark form cancelled",
			zap.String("form_id", formID), zap.Error(err))
		return persistErr("mark cancelled", err)
	}
	return nil
}

// Delete removes the whole aggregate: header, active sub-form and history.
// The sub-form and history deletes are explicit rather than left to the FK
// cascade, so the aggregate boundary holds even against a mirror created
// without foreign keys enabled.
func (r *FormRepository) Delete(tx *sql.Tx, form *models.Form) error {
	ex := r.execer(tx)

	var subTable string
	switch form.FormType {
	case models.FormTypeLeave:
		subTable = "bpm_leave_forms"
	case models.FormTypeOvertime:
		subTable = "bpm_overtime_forms"
	case models.FormTypeBusinessTrip:
		subTable = "bpm_business_trip_forms"
	case models.FormTypeCancelLeave:
		subTable = "bpm_cancel_leave_forms"
	default:
		return persistErr("delete form", fmt.Errorf("unknown form type %s", form.FormType))
	}

	if _, err := ex.Exec("DELETE FROM "+subTable+" WHERE form_id = ?", form.FormID); err != nil {
		return persistErr("delete sub-form", err)
	}
	if _, err := ex.Exec("DELETE FROM bpm_form_approval_history WHERE form_id = ?", form.FormID); err != nil {
		return persistErr("delete approval history", err)
	}
	if _, err := ex.Exec("DELETE FROM bpm_forms WHERE form_id = ?", form.FormID); err != nil {
		return persistErr("delete form header", err)
	}
	return nil
}

// Package report renders the local mirror into Excel workbooks for HR
// operations: mirrored forms on one sheet, their sync trail on another, so
// reconciliation gaps can be reviewed offline.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mobilehr/bpm-bridge/internal/models"
	"github.com/mobilehr/bpm-bridge/internal/repository"
)

const timeLayout = "2006-01-02 15:04:05"

// Exporter builds form/sync-log workbooks from the mirror.
type Exporter struct {
	store  *repository.Store
	logger *zap.Logger
}

// NewExporter creates a report exporter.
func NewExporter(store *repository.Store, logger *zap.Logger) *Exporter {
	return &Exporter{store: store, logger: logger}
}

var formHeader = []string{
	"Form ID", "Form Code", "Form Type", "Applicant", "Company",
	"Status", "Apply Date", "Cancelled",
}

var syncLogHeader = []string{"Form ID", "Sync Type", "Sync Status", "Detail", "Sync Time"}

// ExportForms renders the forms matching filter, with the sync trail of each
// exported form on a second sheet.
func (e *Exporter) ExportForms(filter repository.ListFilter) ([]byte, error) {
	forms, err := e.store.Forms.List(filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const formsSheet = "Forms"
	const logsSheet = "Sync Logs"

	f.SetSheetName(f.GetSheetName(0), formsSheet)
	if _, err := f.NewSheet(logsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	if err := writeRow(f, formsSheet, 1, toCells(formHeader)); err != nil {
		return nil, err
	}
	if err := writeRow(f, logsSheet, 1, toCells(syncLogHeader)); err != nil {
		return nil, err
	}

	logRow := 2
	for i, form := range forms {
		cancelled := "NO"
		if form.IsCancelled {
			cancelled = "YES"
		}
		row := []interface{}{
			form.FormID, form.FormCode, string(form.FormType), form.ApplicantID,
			form.CompanyID, form.Status, form.ApplyDate.Format(timeLayout), cancelled,
		}
		if err := writeRow(f, formsSheet, i+2, row); err != nil {
			return nil, err
		}

		logs, err := e.store.SyncLogs.ListByFormID(form.FormID)
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			if err := writeRow(f, logsSheet, logRow, []interface{}{
				l.FormID, l.SyncType, l.SyncStatus, l.Detail, l.SyncTime.Format(timeLayout),
			}); err != nil {
				return nil, err
			}
			logRow++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Info("Forms exported",
		zap.Int("forms", len(forms)),
		zap.Int("sync_logs", logRow-2))
	return buf.Bytes(), nil
}

// ExportDriftReport renders only forms whose latest sync attempt failed, the
// shortlist an operator works through after an outage.
func (e *Exporter) ExportDriftReport() ([]byte, error) {
	forms, err := e.store.Forms.List(repository.ListFilter{})
	if err != nil {
		return nil, err
	}

	var drifted []*models.Form
	for _, form := range forms {
		logs, err := e.store.SyncLogs.ListByFormID(form.FormID)
		if err != nil {
			return nil, err
		}
		if len(logs) > 0 && logs[0].SyncStatus == models.SyncStatusFailed {
			drifted = append(drifted, form)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Drifted Forms"
	f.SetSheetName(f.GetSheetName(0), sheet)
	if err := writeRow(f, sheet, 1, toCells(formHeader)); err != nil {
		return nil, err
	}
	for i, form := range drifted {
		cancelled := "NO"
		if form.IsCancelled {
			cancelled = "YES"
		}
		if err := writeRow(f, sheet, i+2, []interface{}{
			form.FormID, form.FormCode, string(form.FormType), form.ApplicantID,
			form.CompanyID, form.Status, form.ApplyDate.Format(timeLayout), cancelled,
		}); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toCells(header []string) []interface{} {
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	return cells
}

package portal

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"

	"github.com/weighright/portal/internal/dashboard"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// DirectorySheet is the worksheet the directory export writes
	DirectorySheet = "Directory"
)

var directoryColumns = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}

var directoryHeader = []string{
	"Patient ID", "Name", "Email", "Stage", "Medication", "Dose", "Payment", "Dispatch", "Next Action",
}

// WriteDirectory writes the patient directory as an xlsx workbook
func WriteDirectory(w io.Writer, rows []dashboard.PatientRow) error {
	file := excelize.NewFile()
	file.NewSheet(DirectorySheet)
	file.DeleteSheet("Sheet1")

	for i, title := range directoryHeader {
		file.SetCellValue(DirectorySheet, directoryColumns[i]+"1", title)
	}
	for i, row := range rows {
		appendDirectoryRow(file, i+2, row)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write directory workbook: %w", err)
	}
	return nil
}

func appendDirectoryRow(file *excelize.File, line int, row dashboard.PatientRow) {
	values := []interface{}{
		row.ID,
		row.Name,
		row.Email,
		string(row.Stage),
		string(row.Plan.Med),
		row.Plan.Dose,
		string(row.PaymentStatus),
		string(row.DispatchStatus),
		row.PaymentAction,
	}
	for i, v := range values {
		file.SetCellValue(DirectorySheet, fmt.Sprintf("%s%d", directoryColumns[i], line), v)
	}
}

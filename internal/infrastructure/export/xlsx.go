package export

import (
	"fmt"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// XLSXContentType is the media type of rendered workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "2006-01-02 15:04"

var headers = []string{
	"Document No", "Title", "Form", "Requester", "Status",
	"Level", "Priority", "Urgent", "Amount", "Created", "Processed",
}

// XLSXExporter renders document lists as single-sheet workbooks
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new XLSX exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// ContentType implements port.DocumentExporter
func (e *XLSXExporter) ContentType() string {
	return XLSXContentType
}

// Export implements port.DocumentExporter
func (e *XLSXExporter) Export(sheet string, rows []port.DocumentRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, title := range headers {
		if err := e.setCell(f, sheet, col+1, 1, title); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		r := i + 2
		var amount interface{}
		if row.Amount != nil {
			amount = *row.Amount
		}
		processed := ""
		if row.ProcessedAt != nil {
			processed = row.ProcessedAt.In(row.CreatedAt.Location()).Format(dateLayout)
		}

		values := []interface{}{
			row.DocumentNo,
			row.Title,
			row.FormName,
			row.RequesterName,
			row.Status,
			fmt.Sprintf("%d/%d", row.CurrentLevel, row.TotalLevel),
			row.Priority,
			row.Urgent,
			amount,
			row.CreatedAt.Format(dateLayout),
			processed,
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := e.setCell(f, sheet, col+1, r, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Workbook rendered", zap.String("sheet", sheet), zap.Int("rows", len(rows)))
	return buf.Bytes(), nil
}

func (e *XLSXExporter) setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell %d,%d: %w", col, row, err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
	}
	return nil
}

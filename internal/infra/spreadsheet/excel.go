// Package spreadsheet writes .xlsx workbooks with excelize.
package spreadsheet

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("spreadsheet")

const (
	defaultSheet = "Sheet1"
	minColWidth  = 12
	maxColWidth  = 60
)

// Exporter implements port.SpreadsheetExporter. The whole workbook is built
// in memory and returned only once it was fully written.
type Exporter struct {
	fileName string
	logger   *zap.Logger
}

// NewExporter creates an exporter producing files named fileName.
func NewExporter(fileName string, logger *zap.Logger) *Exporter {
	if fileName == "" {
		fileName = domain.ExportFileName
	}
	return &Exporter{fileName: fileName, logger: logger}
}

// Export writes one sheet with a bold header row followed by rows, each
// row's cells taken by column header.
func (e *Exporter) Export(ctx context.Context, sheet string, columns []string, rows []map[string]string) (*domain.Artifact, error) {
	_, span := tracer.Start(ctx, "Spreadsheet.Export")
	defer span.End()
	span.SetAttributes(
		attribute.String("sheet", sheet),
		attribute.Int("rows", len(rows)),
	)

	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, fmt.Errorf("write header %q: %w", col, err)
		}
		widths[i] = utf8.RuneCountInString(col)
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, first, last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for rowIdx, record := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for colIdx, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := record[col]
			if err := f.SetCellStr(sheet, cell, val); err != nil {
				return nil, fmt.Errorf("write row %d: %w", rowIdx+1, err)
			}
			widths[colIdx] = max(widths[colIdx], utf8.RuneCountInString(val))
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(min(max(w+2, minColWidth), maxColWidth))
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	artifact := &domain.Artifact{
		ID:          uuid.New().String(),
		FileName:    e.fileName,
		ContentType: domain.XLSXContentType,
		Data:        buffer.Bytes(),
		CreatedAt:   time.Now().UTC(),
	}
	e.logger.Debug("spreadsheet written",
		zap.String("artifact_id", artifact.ID),
		zap.Int("rows", len(rows)),
		zap.Int("bytes", len(artifact.Data)),
	)
	return artifact, nil
}

package spreadsheet_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/spreadsheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExporter_WritesHeaderAndRows(t *testing.T) {
	e := spreadsheet.NewExporter("", zap.NewNop())
	rows := []map[string]string{
		{
			domain.ColumnNumber:      "F-001",
			domain.ColumnDate:        "05/10/2026",
			domain.ColumnDescription: "Carrelage",
			domain.ColumnQuantity:    "2.5",
			domain.ColumnAmount:      "150.50 €",
			domain.ColumnStatus:      domain.StatusNotImportedLabel,
		},
		{
			domain.ColumnNumber: "F-002",
			domain.ColumnStatus: domain.StatusImportedLabel,
		},
	}

	artifact, err := e.Export(context.Background(), domain.ExportSheetName, domain.ExportColumns, rows)
	require.NoError(t, err)

	assert.Equal(t, domain.ExportFileName, artifact.FileName)
	assert.Equal(t, domain.XLSXContentType, artifact.ContentType)
	assert.NotEmpty(t, artifact.ID)

	f, err := excelize.OpenReader(bytes.NewReader(artifact.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{domain.ExportSheetName}, f.GetSheetList())

	got, err := f.GetRows(domain.ExportSheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.ExportColumns, got[0])
	assert.Equal(t, []string{"F-001", "05/10/2026", "Carrelage", "2.5", "150.50 €", "Non importée"}, got[1])
	assert.Equal(t, "F-002", got[2][0])
	assert.Equal(t, "Importée", got[2][5])
}

func TestExporter_EmptyRowsStillHasHeader(t *testing.T) {
	e := spreadsheet.NewExporter("out.xlsx", zap.NewNop())

	artifact, err := e.Export(context.Background(), "Factures", []string{"A", "B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "out.xlsx", artifact.FileName)

	f, err := excelize.OpenReader(bytes.NewReader(artifact.Data))
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows("Factures")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B"}}, got)
}

func TestExporter_Failures(t *testing.T) {
	e := spreadsheet.NewExporter("", zap.NewNop())

	_, err := e.Export(context.Background(), "Factures", nil, nil)
	assert.Error(t, err)

	// sheet names longer than 31 characters are rejected by Excel
	_, err = e.Export(context.Background(), "a sheet name that is far too long for excel", []string{"A"}, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Export(ctx, "Factures", []string{"A"}, []map[string]string{{"A": "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}

package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/ledger"
)

var at = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func sampleState() domain.RegisterState {
	return ledger.Reconstruct([]domain.CashEvent{
		{ID: "c1", EntryType: domain.EntryOpen, AmountCents: 10000, CreatedAt: at},
		{ID: "c2", EntryType: domain.EntryIn, AmountCents: 4990, SaleID: "s1", Description: "Venda PDV - Cliente: Ana", CreatedAt: at.Add(time.Minute)},
		{ID: "c3", EntryType: domain.EntryOut, AmountCents: 1500, Description: "Troco", CreatedAt: at.Add(2 * time.Minute)},
	})
}

func TestWriteLedgerWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLedgerWorkbook(&buf, sampleState()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "Tipo", rows[0][1])
	assert.Equal(t, "Abertura", rows[1][1])
	assert.Equal(t, "Venda PDV - Cliente: Ana", rows[2][2])
	assert.Equal(t, "s1", rows[2][4])
	assert.Equal(t, "Saída", rows[3][1])
	assert.Equal(t, "Saldo atual", rows[5][0])
	assert.Equal(t, "Aberto", rows[5][1])

	raw, err := f.GetCellValue(ledgerSheet, "D6", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "134.9", raw)
}

func TestWriteCloseReceipt(t *testing.T) {
	summary, err := ledger.Summarize(sampleState())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCloseReceipt(&buf, "Loja Exemplo", summary, at.Add(time.Hour)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

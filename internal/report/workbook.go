package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/money"
)

const ledgerSheet = "Caixa"

var ledgerHeader = []any{"Data", "Tipo", "Descrição", "Valor", "Venda", "Cancelado", "Aplicado", "Observação"}

var typeLabels = map[domain.EntryType]string{
	domain.EntryOpen:  "Abertura",
	domain.EntryIn:    "Entrada",
	domain.EntryOut:   "Saída",
	domain.EntryClose: "Fechamento",
}

// WriteLedgerWorkbook exports the register history as an XLSX sheet, one row
// per event in ledger order, followed by the resulting balance.
func WriteLedgerWorkbook(w io.Writer, state domain.RegisterState) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &ledgerHeader); err != nil {
		return fmt.Errorf("xlsx: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}
	if err := f.SetRowStyle(ledgerSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}

	for i, entry := range state.History {
		row := []any{
			entry.CreatedAt.Format("02/01/2006 15:04"),
			typeLabel(entry.Type),
			entry.Description,
			money.Decimal(entry.AmountCents).InexactFloat64(),
			entry.SaleID,
			yesNo(entry.IsCancelled),
			yesNo(entry.Applied),
			entry.Note,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", i+2, err)
		}
	}

	footer := len(state.History) + 3
	status := "Fechado"
	if state.IsOpen {
		status = "Aberto"
	}
	summary := []any{"Saldo atual", status, "", money.Decimal(state.BalanceCents).InexactFloat64()}
	cell, err := excelize.CoordinatesToCellName(1, footer)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(ledgerSheet, cell, &summary); err != nil {
		return fmt.Errorf("xlsx: footer: %w", err)
	}
	if err := f.SetRowStyle(ledgerSheet, footer, footer, bold); err != nil {
		return fmt.Errorf("xlsx: footer style: %w", err)
	}

	currency, err := f.NewStyle(&excelize.Style{CustomNumFmt: stringPtr(`"R$" #,##0.00`)})
	if err != nil {
		return fmt.Errorf("xlsx: currency style: %w", err)
	}
	if err := f.SetCellStyle(ledgerSheet, "D2", fmt.Sprintf("D%d", footer), currency); err != nil {
		return fmt.Errorf("xlsx: currency column: %w", err)
	}
	_ = f.SetColWidth(ledgerSheet, "A", "A", 18)
	_ = f.SetColWidth(ledgerSheet, "C", "C", 40)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}

func typeLabel(entryType domain.EntryType) string {
	if label, ok := typeLabels[entryType]; ok {
		return label
	}
	return string(entryType)
}

func yesNo(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}

func stringPtr(s string) *string {
	return &s
}

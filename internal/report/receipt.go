package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/money"
)

// WriteCloseReceipt renders the register close summary as a receipt-sized
// PDF: initial float, sales, other entries, exits and the final balance.
func WriteCloseReceipt(w io.Writer, storeName string, summary domain.SessionSummary, closedAt time.Time) error {
	// Roughly 80mm thermal paper.
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: 120},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8
	labelW := contentW * 0.6
	valueW := contentW - labelW

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, tr(storeName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, tr("Fechamento de Caixa"), "", 1, "C", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, tr("Abertura: "+summary.OpenedAt.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, tr("Fechamento: "+closedAt.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	rows := []struct {
		label string
		cents int64
	}{
		{"Saldo inicial", summary.InitialCents},
		{"Vendas", summary.SalesCents},
		{"Outras entradas", summary.OtherEntriesCents},
		{"Total de entradas", summary.TotalEntriesCents},
		{"Saídas", summary.ExitsCents},
	}
	pdf.SetFont("Helvetica", "", 8)
	for _, row := range rows {
		pdf.CellFormat(labelW, 5, tr(row.label), "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 5, tr(money.Format(row.cents)), "", 1, "R", false, 0, "")
	}
	if summary.CancelledSalesCount > 0 {
		pdf.CellFormat(labelW, 5, tr("Vendas canceladas"), "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 5, fmt.Sprintf("%d", summary.CancelledSalesCount), "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelW, 6, tr("Saldo final"), "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 6, tr(money.Format(summary.FinalBalanceCents)), "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: write: %w", err)
	}
	return nil
}

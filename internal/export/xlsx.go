// Package export renders invoice listings as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/alerts"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the invoices.
const SheetName = "Faturas"

// ContentType is the media type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
	"Emissor",
	"Categoria",
	"Valor",
	"Vencimento",
	"Emissão",
	"Status",
	"Paga",
	"Arquivo",
	"Criada em",
}

// WriteInvoices writes one row per invoice plus a total row.
func WriteInvoices(w io.Writer, invoices []domain.Invoice) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	brl := `"R$" #,##0.00`
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &brl})
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "I1", bold); err != nil {
		return err
	}

	total := decimal.Zero
	row := 2
	for i := range invoices {
		inv := &invoices[i]
		write := func(col int, v any) error {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			return f.SetCellValue(SheetName, cell, v)
		}

		values := []any{
			inv.IssuerOr(""),
			inv.Category.Label(),
			nil,
			dateCell(inv.DueDate),
			dateCell(inv.IssueDate),
			string(inv.Status),
			yesNo(inv.Paid),
			inv.Filename,
			inv.CreatedAt.UTC().Format("02/01/2006 15:04"),
		}
		if inv.Amount.Valid {
			values[2] = inv.Amount.Decimal.InexactFloat64()
			total = total.Add(inv.Amount.Decimal)
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := write(col+1, v); err != nil {
				return err
			}
		}
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(2, row)
	totalCell, _ := excelize.CoordinatesToCellName(3, row)
	if err := f.SetCellValue(SheetName, totalLabel, "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, totalCell, total.InexactFloat64()); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, totalLabel, totalLabel, bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "C2", totalCell, money); err != nil {
		return err
	}

	_ = f.SetColWidth(SheetName, "A", "A", 32)
	_ = f.SetColWidth(SheetName, "B", "B", 18)
	_ = f.SetColWidth(SheetName, "C", "C", 14)
	_ = f.SetColWidth(SheetName, "D", "E", 12)
	_ = f.SetColWidth(SheetName, "H", "H", 40)
	_ = f.SetColWidth(SheetName, "I", "I", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func dateCell(d *time.Time) string {
	if d == nil {
		return ""
	}
	return alerts.FormatDate(*d)
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}

// FormatTotal is the BRL text of the sum of valid amounts, used in logs.
func FormatTotal(invoices []domain.Invoice) string {
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.Amount.Valid {
			total = total.Add(inv.Amount.Decimal)
		}
	}
	return alerts.FormatBRL(total)
}

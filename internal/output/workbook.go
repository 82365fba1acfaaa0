package output

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/iap-orcat/internal/types"
)

// =============================================================================
// XLSX WORKBOOK
// =============================================================================

// Sheet names of the summary workbook.
const (
	SheetSummary      = "Summary"
	SheetRates        = "Rates"
	SheetTransactions = "Transactions"
)

// WriteWorkbook writes the summary, rate table and enriched transactions as
// sheets of one workbook. Amounts are numeric cells; undefined amounts are
// left blank.
func (w *Writer) WriteWorkbook(summary []types.ProjectSummary, rates []types.CurrencyRate, headers []string, txs []types.EnrichedTransaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	for _, name := range []string{SheetRates, SheetTransactions} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	summaryRows := [][]interface{}{{"Project", "Transactions", "Undefined Rows", ColUSDGross, ColCostAllocation, ColNetUSD}}
	for _, s := range summary {
		summaryRows = append(summaryRows, []interface{}{
			s.Project, s.Transactions, s.UndefinedRows,
			w.cell(s.USDGross), w.cell(s.CostAllocation), w.cell(s.NetUSD),
		})
	}

	rateRows := [][]interface{}{{"Currency", "Rate (USD per unit)", "Source", "Report Rows", "AdjTax USD"}}
	for _, r := range rates {
		rateRows = append(rateRows, []interface{}{
			r.Currency, r.Rate.InexactFloat64(), string(r.Source), r.Rows, w.cell(r.AdjTaxUSD),
		})
	}

	txHeader := make([]interface{}, 0, len(headers)+4)
	for _, h := range headers {
		txHeader = append(txHeader, h)
	}
	txHeader = append(txHeader, ColUSDGross, ColCostAllocation, ColNetUSD, ColProject)
	txRows := [][]interface{}{txHeader}
	for _, tx := range txs {
		row := make([]interface{}, 0, len(txHeader))
		for _, v := range tx.Fields {
			row = append(row, v)
		}
		project := tx.Project
		if !tx.Mapped {
			project = w.cfg.UnmappedLabel
		}
		row = append(row, w.nullCell(tx.USDGross), w.nullCell(tx.CostAllocation), w.nullCell(tx.NetUSD), project)
		txRows = append(txRows, row)
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetSummary, summaryRows},
		{SheetRates, rateRows},
		{SheetTransactions, txRows},
	}
	for _, sheet := range sheets {
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return err
		}
	}

	name := w.cfg.WorkbookFile
	if err := f.SaveAs(w.fm.StagingPath(name)); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}

	w.staged = append(w.staged, name)
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func (w *Writer) cell(d decimal.Decimal) interface{} {
	return d.Round(w.cfg.Precision).InexactFloat64()
}

func (w *Writer) nullCell(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return w.cell(d.Decimal)
}

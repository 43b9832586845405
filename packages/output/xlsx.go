package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
	"github.com/abdul-hamid-achik/apicase/packages/stats"
)

const (
	xlsxResultsSheet = "Results"
	xlsxSummarySheet = "Summary"
	xlsxColumnWidth  = 24

	failureFill = "#FFC7CE"
	slowFill    = "#FFEB9C"
	headerFill  = "#DDEBF7"
)

var xlsxHeaders = []string{
	"File", "Block", "Name", "Method", "URL",
	"Expected", "Received", "Passed", "Remarks", "Duration (ms)",
}

type xlsxRow struct {
	file   string
	result runner.Result
}

// XLSXFormatter writes an Excel workbook with one row per test case and a
// summary sheet. Failed rows are highlighted, passing rows slower than the
// threshold are marked as slow.
type XLSXFormatter struct {
	writer        io.Writer
	slowThreshold time.Duration
	rows          []xlsxRow
	errors        []string
	collector     *stats.Collector
	shared        bool
}

type XLSXOption func(*XLSXFormatter)

func NewXLSXFormatter(opts ...XLSXOption) *XLSXFormatter {
	f := &XLSXFormatter{
		writer:        os.Stdout,
		slowThreshold: time.Second,
		collector:     stats.NewCollector(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func XLSXWithWriter(w io.Writer) XLSXOption {
	return func(f *XLSXFormatter) {
		f.writer = w
	}
}

func XLSXWithSlowThreshold(d time.Duration) XLSXOption {
	return func(f *XLSXFormatter) {
		f.slowThreshold = d
	}
}

// XLSXWithCollector makes the summary sheet read from c, which the caller fills.
func XLSXWithCollector(c *stats.Collector) XLSXOption {
	return func(f *XLSXFormatter) {
		f.collector = c
		f.shared = true
	}
}

func (f *XLSXFormatter) FormatResult(result *runner.RunResult) {
	if !f.shared {
		f.collector.RecordRun(result)
	}
	for _, r := range result.Results {
		f.rows = append(f.rows, xlsxRow{file: result.File, result: r})
	}
}

func (f *XLSXFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *XLSXFormatter) FormatHeader(version string) {
	// No header needed for a workbook
}

// Flush builds the workbook and writes it out.
func (f *XLSXFormatter) Flush(totalDuration time.Duration) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", xlsxResultsSheet); err != nil {
		return fmt.Errorf("creating results sheet: %w", err)
	}
	if err := f.writeResults(book); err != nil {
		return err
	}

	if _, err := book.NewSheet(xlsxSummarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	if err := f.writeSummary(book, totalDuration); err != nil {
		return err
	}
	book.SetActiveSheet(0)

	if err := book.Write(f.writer); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func fillStyle(book *excelize.File, color string, bold bool) (int, error) {
	return book.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: bold},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}

func (f *XLSXFormatter) writeResults(book *excelize.File) error {
	sheet := xlsxResultsSheet

	lastCol, _ := excelize.ColumnNumberToName(len(xlsxHeaders))
	if err := book.SetColWidth(sheet, "A", lastCol, xlsxColumnWidth); err != nil {
		return err
	}

	headerStyle, err := fillStyle(book, headerFill, true)
	if err != nil {
		return err
	}
	failStyle, err := fillStyle(book, failureFill, false)
	if err != nil {
		return err
	}
	slowStyle, err := fillStyle(book, slowFill, false)
	if err != nil {
		return err
	}

	header := make([]any, len(xlsxHeaders))
	for i, h := range xlsxHeaders {
		header[i] = h
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := book.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, row := range f.rows {
		r := row.result
		line := i + 2

		var received any
		if r.Received > 0 {
			received = r.Received
		}
		cells := []any{
			row.file,
			r.Block,
			r.Name,
			r.Method,
			r.URL,
			int(r.Expected),
			received,
			r.Passed,
			remarks(r),
			milliseconds(r.Duration),
		}

		start, _ := excelize.CoordinatesToCellName(1, line)
		if err := book.SetSheetRow(sheet, start, &cells); err != nil {
			return err
		}

		end, _ := excelize.CoordinatesToCellName(len(cells), line)
		switch {
		case !r.Passed:
			err = book.SetCellStyle(sheet, start, end, failStyle)
		case f.slowThreshold > 0 && r.Duration > f.slowThreshold:
			err = book.SetCellStyle(sheet, start, end, slowStyle)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *XLSXFormatter) writeSummary(book *excelize.File, totalDuration time.Duration) error {
	s := f.collector.Summary()
	sheet := xlsxSummarySheet

	rows := [][]any{
		{"Total", s.Total},
		{"Passed", s.Passed},
		{"Failed", s.Failed},
		{"Status mismatches", s.StatusMismatches},
		{"Request errors", s.RequestErrors},
		{"Skipped", s.Skipped},
		{"Pass rate", s.PassRate},
		{"Min (ms)", milliseconds(s.Min)},
		{"Mean (ms)", milliseconds(s.Mean)},
		{"P50 (ms)", milliseconds(s.P50)},
		{"P95 (ms)", milliseconds(s.P95)},
		{"P99 (ms)", milliseconds(s.P99)},
		{"Max (ms)", milliseconds(s.Max)},
		{"Total time (ms)", milliseconds(totalDuration)},
	}
	for _, e := range f.errors {
		rows = append(rows, []any{"Error", e})
	}

	if err := book.SetColWidth(sheet, "A", "B", xlsxColumnWidth); err != nil {
		return err
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := book.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

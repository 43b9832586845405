// Package output provides formatters for displaying test results.
//
// Supported output formats:
//   - Console: colored status lines plus a latency summary
//   - JSON: machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//   - XLSX: Excel workbook with a results and a summary sheet
//
// Every formatter accumulates state across files; call Flush once after the
// last file to write the report.
package output

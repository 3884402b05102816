package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/vulnverified/orbit/internal/engine"
)

// Sheet names of the workbook written by WriteXLSX.
const (
	SheetHosts      = "hosts"
	SheetCandidates = "candidates"
)

// WriteXLSX saves the result as a workbook at path.
func WriteXLSX(path string, result *engine.Result) error {
	f, err := buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// WriteXLSXTo streams the workbook to w.
func WriteXLSXTo(w io.Writer, result *engine.Result) error {
	f, err := buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.Write(w)
}

// buildWorkbook lays out two sheets: the accepted hosts in ranked order and
// every candidate with an accepted flag.
func buildWorkbook(result *engine.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetHosts); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SheetCandidates); err != nil {
		f.Close()
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	accepted := make(map[string]bool, len(result.Hosts))
	hostRows := make([][]interface{}, 0, len(result.Hosts))
	for _, h := range result.Hosts {
		accepted[h.Host] = true
		hostRows = append(hostRows, []interface{}{h.Host, h.Score, joinReasons(h.Reasons)})
	}
	candRows := make([][]interface{}, 0, len(result.Candidates))
	for _, h := range result.Candidates {
		candRows = append(candRows, []interface{}{h.Host, h.Score, joinReasons(h.Reasons), accepted[h.Host]})
	}

	sheets := []struct {
		name    string
		headers []interface{}
		rows    [][]interface{}
	}{
		{SheetHosts, []interface{}{"host", "score", "reasons"}, hostRows},
		{SheetCandidates, []interface{}{"host", "score", "reasons", "accepted"}, candRows},
	}

	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.headers, s.rows, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, headers []interface{}, rows [][]interface{}, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "C", "C", 60); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

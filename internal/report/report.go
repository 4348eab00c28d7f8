// Package report exports derby standings as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/DoyleJ11/derby-console/internal/derby"
)

const defaultSheet = "Sheet1"

var header = []any{"Place", "Car", "Driver", "Heats", "Total Time"}

// WriteStandings writes one sheet per racing class, in the order the
// classes first appear in rows.
func WriteStandings(w io.Writer, rows []derby.StandingRow) error {
	f := excelize.NewFile()
	defer f.Close()

	timeFmt := "0.0000"
	timeStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &timeFmt})
	if err != nil {
		return err
	}
	headStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	var order []string
	byClass := map[string][]derby.StandingRow{}
	for _, r := range rows {
		if _, ok := byClass[r.Class]; !ok {
			order = append(order, r.Class)
		}
		byClass[r.Class] = append(byClass[r.Class], r)
	}
	if len(order) == 0 {
		order = []string{"Standings"}
	}

	used := map[string]bool{}
	for i, class := range order {
		name := sheetName(class, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}

		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, "A1", "E1", headStyle); err != nil {
			return err
		}
		for j, r := range byClass[class] {
			cell := fmt.Sprintf("A%d", j+2)
			row := []any{r.Place, r.CarNumber, r.Name, r.Heats, r.Total.InexactFloat64()}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return err
			}
		}
		if n := len(byClass[class]); n > 0 {
			if err := f.SetCellStyle(name, "E2", fmt.Sprintf("E%d", n+1), timeStyle); err != nil {
				return err
			}
		}
		if err := f.SetColWidth(name, "C", "C", 28); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	return f.Write(w)
}

// sheetName makes a class name usable as a unique sheet name.
func sheetName(class string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(class))
	if name == "" {
		name = "Class"
	}
	if len([]rune(name)) > 28 {
		name = string([]rune(name)[:28])
	}
	base := name
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s %d", base, n)
	}
	used[name] = true
	return name
}

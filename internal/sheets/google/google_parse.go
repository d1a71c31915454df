package google

import (
	"fmt"
	"strconv"
	"strings"

	"rtadmin/internal/core"
	ports "rtadmin/internal/sheets"
)

// indexIDColumn maps ids found in column A to their 1-based row numbers.
// Header and blank rows are skipped; the first occurrence of an id wins.
func indexIDColumn(values [][]any) map[int64]int {
	index := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, ok := parseID(fmt.Sprint(row[0]))
		if !ok {
			continue
		}
		if _, seen := index[id]; !seen {
			index[id] = i + 1
		}
	}
	return index
}

// parseLedgerRows converts a values matrix into rows padded to the header
// width. Numeric cells written by hand (e.g. "Rp 150.000") are normalized.
func parseLedgerRows(kind string, values [][]any) []ports.LedgerRow {
	width := len(ports.Header(kind))
	amountCol := amountColumn(kind)
	out := make([]ports.LedgerRow, 0, len(values))
	for _, row := range values {
		cells := toStrings(row)
		if len(cells) == 0 {
			continue
		}
		id, ok := parseID(cells[0])
		if !ok {
			continue
		}
		for len(cells) < width {
			cells = append(cells, "")
		}
		if amountCol > 0 && amountCol < len(cells) {
			if amt, err := core.ParseRupiah(cells[amountCol]); err == nil {
				cells[amountCol] = strconv.FormatInt(amt.Int64(), 10)
			}
		}
		out = append(out, ports.LedgerRow{Kind: kind, ID: id, Cells: cells[:width]})
	}
	return out
}

func amountColumn(kind string) int {
	switch kind {
	case ports.KindPayment:
		return 5
	case ports.KindExpense:
		return 3
	default:
		return -1
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

package core

import (
	"strconv"
	"strings"
)

// MonthNames are the Indonesian month names, January first.
var MonthNames = [12]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthlyRow is one month of the financial report.
type MonthlyRow struct {
	Month    string `json:"month"`
	Income   Rupiah `json:"total_pemasukan"`
	Spending Rupiah `json:"total_pengeluaran"`
	Balance  Rupiah `json:"saldo"`
}

// SummaryTotal aggregates all months.
type SummaryTotal struct {
	Income   Rupiah `json:"total_pemasukan"`
	Spending Rupiah `json:"total_pengeluaran"`
	Balance  Rupiah `json:"saldo"`
}

// MonthlySummary is the /report/monthly-summary payload. It is computed by
// the backend; the console only displays it.
type MonthlySummary struct {
	Monthly        []MonthlyRow `json:"monthly"`
	Total          SummaryTotal `json:"total"`
	TotalResidents int          `json:"total_penghuni"`
}

// MonthOption is an entry of the expense month filter.
type MonthOption struct {
	Value string
	Label string
}

// MonthOptions returns "01".."12" with Indonesian labels.
func MonthOptions() []MonthOption {
	out := make([]MonthOption, 0, len(MonthNames))
	for i, name := range MonthNames {
		v := strconv.Itoa(i + 1)
		if len(v) == 1 {
			v = "0" + v
		}
		out = append(out, MonthOption{Value: v, Label: name})
	}
	return out
}

// MonthLabel renders "2024-01" as "Januari 2024" and "01" as "Januari".
// Values it does not recognise are returned unchanged.
func MonthLabel(month string) string {
	month = strings.TrimSpace(month)
	year := ""
	mm := month
	if len(month) >= 7 && month[4] == '-' {
		year, mm = month[:4], month[5:7]
	}
	n, err := strconv.Atoi(mm)
	if err != nil || n < 1 || n > 12 {
		return month
	}
	if year == "" {
		return MonthNames[n-1]
	}
	return MonthNames[n-1] + " " + year
}

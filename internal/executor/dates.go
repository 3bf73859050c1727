package executor

import (
	"strconv"
	"strings"
	"time"

	"infomap/internal/logging"
	"infomap/internal/table"
)

// Column-name suffixes that trigger reformatting.
const (
	dateSuffix  = "日期"
	monthSuffix = "月份"
)

// Non-padded numeric fields in a layout also accept padded values, so one
// layout per separator covers both.
var dateLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2006年1月2日",
	"20060102",
}

var monthLayouts = []string{
	"2006-1",
	"2006/1",
	"2006.1",
	"2006年1月",
	"200601",
}

// normalizeDateColumns reformats 日期-suffixed columns to YYYY-MM-DD and
// 月份-suffixed columns to YYYY-MM, best effort. Values that fail to parse
// pass through unchanged.
func normalizeDateColumns(t *table.Table) {
	for col, name := range t.Columns {
		isDate := strings.HasSuffix(name, dateSuffix)
		isMonth := strings.HasSuffix(name, monthSuffix)
		if !isDate && !isMonth {
			continue
		}

		failed := 0
		for _, row := range t.Rows {
			if col >= len(row) || row[col] == "" {
				continue
			}
			var parsed time.Time
			var ok bool
			if isDate {
				parsed, ok = parseDate(row[col])
				if ok {
					row[col] = parsed.Format("2006-01-02")
				}
			} else {
				parsed, ok = parseMonth(row[col])
				if ok {
					row[col] = parsed.Format("2006-01")
				}
			}
			if !ok {
				failed++
			}
		}
		if failed > 0 {
			logging.Executor("column %q: %d values left unparsed", name, failed)
		}
	}
}

// parseDate tries the known layouts plus Excel serial numbers.
func parseDate(value string) (time.Time, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	if t, ok := parseExcelSerial(v); ok {
		return t, true
	}
	return time.Time{}, false
}

func parseMonth(value string) (time.Time, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	// A full date also carries a month.
	return parseDate(v)
}

// parseExcelSerial interprets a 5-digit integer as days since the Excel
// epoch. The accepted range covers 1954 through 2064, which keeps ID-like
// numbers out.
func parseExcelSerial(v string) (time.Time, bool) {
	if len(v) != 5 {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 20000 || n > 60000 {
		return time.Time{}, false
	}
	epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	return epoch.AddDate(0, 0, n), true
}

package stats

import (
	"sort"
	"time"
)

const (
	WeekWindow      = 7 * 24 * time.Hour
	SixMonthsWindow = 180 * 24 * time.Hour
)

// Windows concentra os limites das janelas de tempo usadas nas estatísticas.
type Windows struct {
	Now       time.Time
	Today     time.Time
	Week      time.Time
	SixMonths time.Time
}

// NewWindows calcula os limites a partir de now no fuso loc.
func NewWindows(now time.Time, loc *time.Location) Windows {
	return Windows{
		Now:       now,
		Today:     StartOfDay(now, loc),
		Week:      now.Add(-WeekWindow),
		SixMonths: now.Add(-SixMonthsWindow),
	}
}

// StartOfDay devolve meia-noite da data corrente de now em loc.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// IsToday indica se t cai na data corrente (em loc).
func (w Windows) IsToday(t time.Time) bool {
	return !t.Before(w.Today)
}

// InWeek indica se t está nos últimos 7 dias.
func (w Windows) InWeek(t time.Time) bool {
	return !t.Before(w.Week)
}

// MonthCount é o total de registros de um mês (YYYY-MM).
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// MonthKey formata t como YYYY-MM em loc.
func MonthKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01")
}

// GroupByMonth agrupa por mês os instantes a partir de since, em ordem crescente.
func GroupByMonth(times []time.Time, since time.Time, loc *time.Location) []MonthCount {
	totals := make(map[string]int64)
	for _, t := range times {
		if t.Before(since) {
			continue
		}
		totals[MonthKey(t, loc)]++
	}
	out := make([]MonthCount, 0, len(totals))
	for month, total := range totals {
		out = append(out, MonthCount{Month: month, Count: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

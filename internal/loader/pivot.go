package loader

import "time"

// MonthlyPivot is the dense (month, tool) visit table. The month axis has no
// gaps between the minimum and maximum observed month; tools with no visits
// in a month carry an explicit zero.
type MonthlyPivot struct {
	Months []time.Time
	Tools  []string
	counts map[string][]int64
}

// BuildMonthlyPivot densifies sparse monthly visit counts. Returns an empty
// pivot when there is no input.
func BuildMonthlyPivot(visits []MonthlyVisit) *MonthlyPivot {
	pivot := &MonthlyPivot{Tools: AllTools, counts: make(map[string][]int64)}
	if len(visits) == 0 {
		return pivot
	}

	first, last := visits[0].Month, visits[0].Month
	for _, v := range visits {
		if v.Month.Before(first) {
			first = v.Month
		}
		if v.Month.After(last) {
			last = v.Month
		}
	}
	first = monthStart(first)
	last = monthStart(last)

	index := make(map[time.Time]int)
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		index[m] = len(pivot.Months)
		pivot.Months = append(pivot.Months, m)
	}

	for _, tool := range pivot.Tools {
		pivot.counts[tool] = make([]int64, len(pivot.Months))
	}
	for _, v := range visits {
		if _, ok := pivot.counts[v.Tool]; !ok {
			continue
		}
		pivot.counts[v.Tool][index[monthStart(v.Month)]] = v.Visits
	}
	return pivot
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Empty reports whether the pivot holds no months.
func (p *MonthlyPivot) Empty() bool {
	return len(p.Months) == 0
}

// Series returns a tool's visit counts as floats, aligned with Months.
func (p *MonthlyPivot) Series(tool string) []float64 {
	counts := p.counts[tool]
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = float64(c)
	}
	return out
}

// MonthLabel formats a month axis entry as YYYY-MM.
func MonthLabel(t time.Time) string {
	return t.Format("2006-01")
}

// FutureMonths returns the horizon months following the pivot's last month.
func (p *MonthlyPivot) FutureMonths(horizon int) []time.Time {
	if p.Empty() || horizon <= 0 {
		return nil
	}
	last := p.Months[len(p.Months)-1]
	out := make([]time.Time, 0, horizon)
	for i := 1; i <= horizon; i++ {
		out = append(out, last.AddDate(0, i, 0))
	}
	return out
}

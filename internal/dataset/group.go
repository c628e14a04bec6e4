package dataset

import (
	"cmp"
	"math"
	"slices"
	"strconv"
)

// Group is one bucket of a group-by: its key, the summed value and the
// number of records that fell into it.
type Group struct {
	Key   string  `json:"key" yaml:"key"`
	Value float64 `json:"value" yaml:"value"`
	Count int     `json:"count" yaml:"count"`
}

// YearTotal is the summed value of one year.
type YearTotal struct {
	Year  int     `json:"year" yaml:"year"`
	Value float64 `json:"value" yaml:"value"`
}

// sumBy groups records by key, summing value. Records without a key are
// dropped; missing values add nothing but still count.
func (d *Dataset) sumBy(key func(Record) (string, bool), value Column) []Group {
	pos := make(map[string]int)
	var groups []Group
	for _, r := range d.Records {
		k, ok := key(r)
		if !ok {
			continue
		}
		i, seen := pos[k]
		if !seen {
			i = len(groups)
			pos[k] = i
			groups = append(groups, Group{Key: k})
		}
		if v := value.Value(r); !math.IsNaN(v) {
			groups[i].Value += v
		}
		groups[i].Count++
	}
	return groups
}

// Totals sums value by the categorical column key, largest first. Ties
// are ordered by key.
func (d *Dataset) Totals(key, value Column) []Group {
	groups := d.sumBy(key.Key, value)
	SortDescending(groups)
	return groups
}

// SortDescending orders groups by value, largest first, then by key.
func SortDescending(groups []Group) {
	slices.SortStableFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

// YearTotals sums amounts per year in ascending year order.
func (d *Dataset) YearTotals() []YearTotal {
	sums := make(map[int]float64)
	for _, r := range d.Records {
		v := sums[r.Year]
		if !math.IsNaN(r.Amount) {
			v += r.Amount
		}
		sums[r.Year] = v
	}
	out := make([]YearTotal, 0, len(sums))
	for y, v := range sums {
		out = append(out, YearTotal{Year: y, Value: v})
	}
	slices.SortFunc(out, func(a, b YearTotal) int { return cmp.Compare(a.Year, b.Year) })
	return out
}

// PeriodTotals sums amounts per "YYYY-MM" period in ascending order.
// Records without a month are dropped.
func (d *Dataset) PeriodTotals() []Group {
	groups := d.sumBy(ColPeriod.Key, ColAmount)
	slices.SortFunc(groups, func(a, b Group) int { return cmp.Compare(a.Key, b.Key) })
	return groups
}

// Values returns the non-missing values of a numeric column.
func (d *Dataset) Values(c Column) []float64 {
	out := make([]float64, 0, len(d.Records))
	for _, r := range d.Records {
		if v := c.Value(r); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Sum adds the non-missing values of a numeric column.
func (d *Dataset) Sum(c Column) float64 {
	var total float64
	for _, r := range d.Records {
		if v := c.Value(r); !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// Distinct returns the sorted distinct values of a categorical column.
func (d *Dataset) Distinct(c Column) []string {
	seen := make(map[string]struct{})
	for _, r := range d.Records {
		if k, ok := c.Key(r); ok {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	if c == ColYear || c == ColMonth {
		slices.SortFunc(out, func(a, b string) int {
			x, _ := strconv.Atoi(a)
			y, _ := strconv.Atoi(b)
			return cmp.Compare(x, y)
		})
		return out
	}
	slices.Sort(out)
	return out
}

// Years returns the distinct years in ascending order.
func (d *Dataset) Years() []int {
	seen := make(map[int]struct{})
	for _, r := range d.Records {
		seen[r.Year] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	slices.Sort(out)
	return out
}

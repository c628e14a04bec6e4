package dataset

import (
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// Filter selects records. Empty criteria match everything.
type Filter struct {
	Years        []int    `json:"years,omitempty"`
	States       []string `json:"states,omitempty"`
	Substances   []string `json:"substances,omitempty"`
	Municipality string   `json:"municipality,omitempty"`
}

// Empty reports whether f matches every record.
func (f Filter) Empty() bool {
	return len(f.Years) == 0 && len(f.States) == 0 && len(f.Substances) == 0 && f.Municipality == ""
}

// Match reports whether r satisfies every criterion. States are compared
// after normalization; municipality and substances match exactly.
func (f Filter) Match(r Record) bool {
	if len(f.Years) > 0 && !slices.Contains(f.Years, r.Year) {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if code, ok := normalize.State(s); ok && code == r.State {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Substances) > 0 && !slices.Contains(f.Substances, r.Substance) {
		return false
	}
	if f.Municipality != "" && r.Municipality != f.Municipality {
		return false
	}
	return true
}

// Filter returns the records matching f.
func (d *Dataset) Filter(f Filter) *Dataset {
	if f.Empty() {
		return d
	}
	return d.Where(f.Match)
}

// Where returns the records for which keep returns true.
func (d *Dataset) Where(keep func(Record) bool) *Dataset {
	out := make([]Record, 0, len(d.Records))
	for _, r := range d.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return d.derive(out)
}

// ValidStates keeps records whose state normalized to a canonical code.
func (d *Dataset) ValidStates() *Dataset {
	return d.Where(func(r Record) bool { return r.State != "" })
}

// Municipality returns the records of one municipality within a state.
func (d *Dataset) Municipality(name, state string) *Dataset {
	return d.Filter(Filter{Municipality: name, States: []string{state}})
}

// State returns the records of one state.
func (d *Dataset) State(state string) *Dataset {
	return d.Filter(Filter{States: []string{state}})
}

// ParseFilter builds a Filter from comma-separated lists, as given on the
// command line or in a query string. Blank items are ignored.
func ParseFilter(years, states, substances string) (Filter, error) {
	var f Filter
	for _, y := range splitList(years) {
		n, err := strconv.Atoi(y)
		if err != nil {
			return Filter{}, eris.Wrapf(err, "dataset: invalid year %q", y)
		}
		f.Years = append(f.Years, n)
	}
	f.States = splitList(states)
	f.Substances = splitList(substances)
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

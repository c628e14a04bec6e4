package processes

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// ErrColumnsUnresolved is returned when required columns could not be
// detected and no override names them.
var ErrColumnsUnresolved = eris.New("processes columns unresolved")

// DefaultPhase is the phase holders are filtered to.
const DefaultPhase = "CONCESSAO DE LAVRA"

// Columns names the semantic columns of a processes table. Phase is
// optional.
type Columns struct {
	Municipality string `mapstructure:"municipality" yaml:"municipality" json:"municipality"`
	Holder       string `mapstructure:"holder" yaml:"holder" json:"holder"`
	Substance    string `mapstructure:"substance" yaml:"substance" json:"substance"`
	Process      string `mapstructure:"process" yaml:"process" json:"process"`
	Phase        string `mapstructure:"phase" yaml:"phase" json:"phase"`
}

// DetectColumns locates each semantic column by name.
func DetectColumns(t *Table) Columns {
	var c Columns
	c.Municipality, _ = FindAny(t.Columns, "MUNICIPIO", "MUNICIP", "CIDADE")
	c.Holder, _ = FindTitleholder(t.Columns)
	c.Phase, _ = FindAny(t.Columns, "FASE", "FASE ATUAL")
	c.Substance, _ = FindAny(t.Columns, "SUBSTANCIA", "SUBSTANCIAS")
	c.Process, _ = FindAny(t.Columns, "PROCESSO", "NUMERO DO PROCESSO", "N DO PROCESSO")
	return c
}

// Override replaces each detected column with the corresponding non-empty
// field of o.
func (c Columns) Override(o Columns) Columns {
	pick := func(detected, manual string) string {
		if manual != "" {
			return manual
		}
		return detected
	}
	return Columns{
		Municipality: pick(c.Municipality, o.Municipality),
		Holder:       pick(c.Holder, o.Holder),
		Substance:    pick(c.Substance, o.Substance),
		Process:      pick(c.Process, o.Process),
		Phase:        pick(c.Phase, o.Phase),
	}
}

// resolve validates c against t and returns the column indexes.
func (c Columns) resolve(t *Table) (resolved, error) {
	r := resolved{phase: -1}
	var missing []string
	for _, f := range []struct {
		label string
		name  string
		dst   *int
	}{
		{"municipality", c.Municipality, &r.municipality},
		{"holder", c.Holder, &r.holder},
		{"substance", c.Substance, &r.substance},
		{"process", c.Process, &r.process},
	} {
		*f.dst = -1
		if f.name != "" {
			*f.dst = t.Index(f.name)
		}
		if *f.dst < 0 {
			missing = append(missing, f.label)
		}
	}
	if len(missing) > 0 {
		return r, eris.Wrapf(ErrColumnsUnresolved, "processes: set %s", strings.Join(missing, ", "))
	}
	if c.Phase != "" {
		if r.phase = t.Index(c.Phase); r.phase < 0 {
			return r, eris.Wrapf(ErrColumnsUnresolved, "processes: phase column %q not found", c.Phase)
		}
	}
	return r, nil
}

type resolved struct {
	municipality, holder, substance, process, phase int
}

// Record is one process row keyed for the municipality join.
type Record struct {
	MunicipalityKey string `json:"municipality_key"`
	Holder          string `json:"holder"`
	Substance       string `json:"substance"`
	ProcessNumber   string `json:"process_number"`
	Phase           string `json:"phase"`
	HasPhase        bool   `json:"-"`
}

// Records extracts the semantic fields of every row of t.
func Records(t *Table, c Columns) ([]Record, error) {
	r, err := c.resolve(t)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := Record{
			MunicipalityKey: normalize.Municipality(row[r.municipality]),
			Holder:          strings.TrimSpace(row[r.holder]),
			Substance:       strings.TrimSpace(row[r.substance]),
			ProcessNumber:   strings.TrimSpace(row[r.process]),
		}
		if r.phase >= 0 {
			rec.Phase = row[r.phase]
			rec.HasPhase = true
		}
		out = append(out, rec)
	}
	return out, nil
}

// Holder lists a titleholder with its distinct substances and process
// numbers.
type Holder struct {
	Name       string   `json:"name" yaml:"name"`
	Substances []string `json:"substances" yaml:"substances"`
	Processes  []string `json:"processes" yaml:"processes"`
}

// Holders returns the titleholders of municipality, sorted by name. When
// the records carry a phase and phase is not empty, only rows in that
// phase count.
func Holders(records []Record, municipality, phase string) []Holder {
	key := normalize.Text(municipality)
	wantPhase := normalize.Text(phase)

	substances := make(map[string]map[string]struct{})
	processes := make(map[string]map[string]struct{})
	for _, r := range records {
		if r.MunicipalityKey != key {
			continue
		}
		if r.HasPhase && wantPhase != "" && normalize.Text(r.Phase) != wantPhase {
			continue
		}
		if r.Holder == "" {
			continue
		}
		if _, ok := substances[r.Holder]; !ok {
			substances[r.Holder] = make(map[string]struct{})
			processes[r.Holder] = make(map[string]struct{})
		}
		if r.Substance != "" {
			substances[r.Holder][r.Substance] = struct{}{}
		}
		if r.ProcessNumber != "" {
			processes[r.Holder][r.ProcessNumber] = struct{}{}
		}
	}

	out := make([]Holder, 0, len(substances))
	for name := range substances {
		out = append(out, Holder{
			Name:       name,
			Substances: sortedKeys(substances[name]),
			Processes:  sortedKeys(processes[name]),
		})
	}
	slices.SortFunc(out, func(a, b Holder) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

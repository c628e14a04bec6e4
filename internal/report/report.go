// Package report assembles the per-municipality diagnosis and writes it as
// an XLSX workbook with companion PNG charts.
package report

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/insight"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/processes"
)

// Request selects the municipality to diagnose.
type Request struct {
	Municipality string
	State        string
	Distribution metrics.Distribution
	// Processes are the titleholder records to join; nil skips holders.
	Processes []processes.Record
	Phase     string
}

// Diagnosis is the assembled report for one municipality.
type Diagnosis struct {
	ID          string              `json:"id" yaml:"id"`
	GeneratedAt time.Time           `json:"generated_at" yaml:"generated_at"`
	Profile     *metrics.Profile    `json:"profile" yaml:"profile"`
	Years       []dataset.YearTotal `json:"years" yaml:"years"`
	Periods     []dataset.Group     `json:"periods" yaml:"periods"`
	Substances  []dataset.Group     `json:"substances" yaml:"substances"`
	Trend       *metrics.Trend      `json:"trend,omitempty" yaml:"trend,omitempty"`
	Insights    []insight.Statement `json:"insights" yaml:"insights"`
	Holders     []processes.Holder  `json:"holders" yaml:"holders"`
}

// Build diagnoses req.Municipality within req.State using d. The municipality
// name matches ignoring case and accents. Sections are computed
// concurrently.
func Build(ctx context.Context, d *dataset.Dataset, req Request) (*Diagnosis, error) {
	uf, ok := normalize.State(req.State)
	if !ok {
		return nil, eris.Errorf("report: invalid state %q (want one of %s)", req.State, strings.Join(normalize.States(), " "))
	}
	state := d.State(uf)
	name, ok := resolveMunicipality(state, req.Municipality)
	if !ok {
		return nil, eris.Wrapf(metrics.ErrInsufficientData, "report: municipality %q not found in %s", req.Municipality, uf)
	}
	muni := state.Municipality(name, uf)

	diag := &Diagnosis{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Years:       muni.YearTotals(),
		Periods:     muni.PeriodTotals(),
		Substances:  muni.Totals(dataset.ColSubstance, dataset.ColAmount),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := metrics.MunicipalityProfile(state, name, uf, req.Distribution)
		if err != nil {
			return err
		}
		diag.Profile = p
		return gctx.Err()
	})
	g.Go(func() error {
		diag.Insights = insight.Municipality(muni, name, d)
		return gctx.Err()
	})
	g.Go(func() error {
		t, err := metrics.LinearTrend(periodValues(diag.Periods))
		if errors.Is(err, metrics.ErrInsufficientData) {
			return nil
		}
		if err != nil {
			return err
		}
		diag.Trend = t
		return gctx.Err()
	})
	if req.Processes != nil {
		g.Go(func() error {
			diag.Holders = processes.Holders(req.Processes, name, req.Phase)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "report: build")
	}

	zap.L().Info("report: diagnosis built",
		zap.String("id", diag.ID),
		zap.String("municipality", name),
		zap.String("state", uf),
		zap.Int("insights", len(diag.Insights)),
		zap.Int("holders", len(diag.Holders)),
	)
	return diag, nil
}

func resolveMunicipality(state *dataset.Dataset, name string) (string, bool) {
	want := normalize.Text(name)
	if want == "" {
		return "", false
	}
	for _, r := range state.Records {
		if normalize.Text(r.Municipality) == want {
			return r.Municipality, true
		}
	}
	return "", false
}

func periodValues(groups []dataset.Group) []float64 {
	out := make([]float64, len(groups))
	for i, g := range groups {
		out[i] = g.Value
	}
	return out
}

package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gonum.org/v1/plot"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/chart"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

// Sheet names of the diagnosis workbook, in order.
const (
	SheetOverview   = "Visao Geral"
	SheetEvolution  = "Evolucao"
	SheetSubstances = "Substancias"
	SheetInsights   = "Insights"
	SheetHolders    = "Titulares"
)

// WriteXLSX writes the diagnosis workbook to w.
func (d *Diagnosis) WriteXLSX(w io.Writer) error {
	f := xlsx.NewFile()
	for _, s := range []struct {
		name string
		fill func(*xlsx.Sheet)
	}{
		{SheetOverview, d.fillOverview},
		{SheetEvolution, d.fillEvolution},
		{SheetSubstances, d.fillSubstances},
		{SheetInsights, d.fillInsights},
		{SheetHolders, d.fillHolders},
	} {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", s.name)
		}
		s.fill(sheet)
	}
	return eris.Wrap(f.Write(w), "report: write xlsx")
}

func addRow(sheet *xlsx.Sheet, cells ...any) {
	row := sheet.AddRow()
	for _, v := range cells {
		c := row.AddCell()
		switch v := v.(type) {
		case float64:
			c.SetFloat(v)
		case int:
			c.SetInt(v)
		default:
			c.SetString(fmt.Sprint(v))
		}
	}
}

func (d *Diagnosis) fillOverview(sheet *xlsx.Sheet) {
	p := d.Profile
	addRow(sheet, "Indicador", "Valor")
	addRow(sheet, "Municipio", p.Municipality)
	addRow(sheet, "UF", p.State)
	addRow(sheet, "Arrecadacao total", normalize.FormatBRL(p.Total))
	addRow(sheet, "Registros", p.Records)
	addRow(sheet, "Media por registro", normalize.FormatBRL(p.MeanPerRecord))
	addRow(sheet, "Substancias", p.Substances)
	addRow(sheet, "Ranking estadual", fmt.Sprintf("%dº de %d", p.Rank, p.StateMunicipalities))
	addRow(sheet, "Participacao no estado", normalize.FormatPercent(p.StateShare))
	addRow(sheet)
	addRow(sheet, "Distribuicao", "Valor")
	addRow(sheet, "Municipio", normalize.FormatBRL(p.Split.Municipality))
	addRow(sheet, "Estado", normalize.FormatBRL(p.Split.State))
	addRow(sheet, "Uniao", normalize.FormatBRL(p.Split.Union))
	addRow(sheet, "Municipios afetados", normalize.FormatBRL(p.Split.Affected))
	addRow(sheet, "Potencial recuperavel", normalize.FormatBRL(p.Split.Recoverable))
	addRow(sheet, "Recuperavel para o municipio", normalize.FormatBRL(p.Split.RecoverableMunicipal))
	addRow(sheet, "Total com recuperacao", normalize.FormatBRL(p.Split.TotalWithRecovery))
	addRow(sheet)
	addRow(sheet, "Relatorio", d.ID)
	addRow(sheet, "Gerado em", d.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
}

func (d *Diagnosis) fillEvolution(sheet *xlsx.Sheet) {
	addRow(sheet, "Ano", "Arrecadacao")
	for _, y := range d.Years {
		addRow(sheet, y.Year, y.Value)
	}
	addRow(sheet)
	addRow(sheet, "Periodo", "Arrecadacao", "Tendencia")
	for i, p := range d.Periods {
		if d.Trend != nil {
			addRow(sheet, p.Key, p.Value, d.Trend.At(float64(i)))
		} else {
			addRow(sheet, p.Key, p.Value)
		}
	}
}

func (d *Diagnosis) fillSubstances(sheet *xlsx.Sheet) {
	addRow(sheet, "Substancia", "Arrecadacao", "Registros")
	for _, g := range d.Substances {
		addRow(sheet, g.Key, g.Value, g.Count)
	}
}

func (d *Diagnosis) fillInsights(sheet *xlsx.Sheet) {
	addRow(sheet, "Titulo", "Texto")
	for _, s := range d.Insights {
		addRow(sheet, s.Title, s.Body)
	}
}

func (d *Diagnosis) fillHolders(sheet *xlsx.Sheet) {
	addRow(sheet, "Titular", "Substancias", "Processos")
	for _, h := range d.Holders {
		addRow(sheet, h.Name, strings.Join(h.Substances, ", "), strings.Join(h.Processes, ", "))
	}
}

// Save writes the workbook and the charts under dir and returns the paths
// written. Charts with no data are skipped.
func (d *Diagnosis) Save(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", dir)
	}
	base := "diagnostico_" + fileSafe(d.Profile.Municipality) + "_" + d.Profile.State

	xlsxPath := filepath.Join(dir, base+".xlsx")
	f, err := os.Create(xlsxPath)
	if err != nil {
		return nil, eris.Wrapf(err, "report: create %s", xlsxPath)
	}
	if err := d.WriteXLSX(f); err != nil {
		f.Close() //nolint:errcheck
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrapf(err, "report: close %s", xlsxPath)
	}
	paths := []string{xlsxPath}

	charts, err := d.Charts()
	if err != nil {
		return paths, err
	}
	for _, c := range charts {
		path := filepath.Join(dir, base+"_"+c.Name+".png")
		if err := chart.SavePNG(c.Plot, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// NamedPlot is a chart with its file-name suffix.
type NamedPlot struct {
	Name string
	Plot *plot.Plot
}

// Charts builds the evolution, substances and monthly charts.
func (d *Diagnosis) Charts() ([]NamedPlot, error) {
	title := d.Profile.Municipality + " - " + d.Profile.State
	var out []NamedPlot
	add := func(name string, p *plot.Plot, err error) error {
		if errors.Is(err, chart.ErrNoData) {
			return nil
		}
		if err != nil {
			return err
		}
		out = append(out, NamedPlot{Name: name, Plot: p})
		return nil
	}

	p, err := chart.YearBars("Evolucao anual - "+title, d.Years)
	if err := add("evolucao", p, err); err != nil {
		return nil, err
	}
	p, err = chart.SubstanceBars("Principais substancias - "+title, d.Substances, 10)
	if err := add("substancias", p, err); err != nil {
		return nil, err
	}
	p, err = chart.MonthlyLine("Arrecadacao mensal - "+title, d.Periods, d.Trend)
	if err := add("mensal", p, err); err != nil {
		return nil, err
	}
	return out, nil
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, strings.ToLower(normalize.StripDiacritics(strings.TrimSpace(s))))
}

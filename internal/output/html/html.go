package html

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"iacsift/internal/rules"
	"iacsift/internal/verdict"
)

//go:embed assets/* templates/*
var content embed.FS

// Meta describes the scan behind a report
type Meta struct {
	RunID       string
	GeneratedAt time.Time
	Version     string
	Files       []string
	InputErrors map[string]string
}

// TemplateData represents the data structure passed to the HTML template
type TemplateData struct {
	Meta           Meta
	Summary        verdict.Summary
	SeverityCounts []SeverityCount
	KindCounts     []KindCount
	Resources      []Resource
	Styles         template.CSS
	Scripts        template.JS
}

// SeverityCount is one cell of the findings-by-severity strip
type SeverityCount struct {
	Severity string
	Count    int
}

// KindCount totals resources per canonical kind
type KindCount struct {
	Kind  string
	Total int
	Risky int
}

// Resource is one row of the report table
type Resource struct {
	ID              string
	Kind            string
	Source          string
	Label           string
	RiskScore       float64
	RuleScore       float64
	ModelScore      string
	ModelConfidence string
	ModelStatus     string
	Findings        []rules.Finding
	Diagnostics     []string
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"pct": func(f float64) string {
		return fmt.Sprintf("%.0f%%", f*100)
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
}

// Render writes the HTML report
func Render(w io.Writer, meta Meta, summary verdict.Summary, verdicts []verdict.Verdict) error {
	tmpl, err := template.New("report.html").Funcs(funcs).ParseFS(content, "templates/report.html")
	if err != nil {
		return fmt.Errorf("error parsing template: %w", err)
	}

	styles, err := content.ReadFile("assets/styles.css")
	if err != nil {
		return fmt.Errorf("error reading styles: %w", err)
	}
	scripts, err := content.ReadFile("assets/scripts.js")
	if err != nil {
		return fmt.Errorf("error reading scripts: %w", err)
	}

	data := processVerdicts(verdicts)
	data.Meta = meta
	data.Summary = summary
	data.Styles = template.CSS(styles)
	data.Scripts = template.JS(scripts)
	for i := len(rules.Severities) - 1; i >= 0; i-- {
		name := rules.Severities[i].String()
		data.SeverityCounts = append(data.SeverityCounts, SeverityCount{Severity: name, Count: summary.FindingsBySeverity[name]})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("error executing template: %w", err)
	}
	if _, err := io.Copy(w, &buf); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// processVerdicts builds table rows, riskiest first, and per-kind totals
func processVerdicts(verdicts []verdict.Verdict) TemplateData {
	rows := make([]Resource, 0, len(verdicts))
	kinds := make(map[string]*KindCount)

	for _, v := range verdicts {
		row := Resource{
			ID:              v.ID(),
			Kind:            string(v.ResourceKind),
			Source:          v.Source,
			Label:           string(v.RiskLabel),
			RiskScore:       v.RiskScore,
			RuleScore:       v.RuleScore,
			ModelScore:      optional(v.ModelScore),
			ModelConfidence: optional(v.ModelConfidence),
			ModelStatus:     string(v.Metadata.ModelStatus),
			Findings:        v.Findings,
		}
		for _, d := range v.Metadata.Diagnostics {
			row.Diagnostics = append(row.Diagnostics, d.String())
		}
		rows = append(rows, row)

		kc, ok := kinds[row.Kind]
		if !ok {
			kc = &KindCount{Kind: row.Kind}
			kinds[row.Kind] = kc
		}
		kc.Total++
		if v.IsRisky() {
			kc.Risky++
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RiskScore > rows[j].RiskScore
	})

	counts := make([]KindCount, 0, len(kinds))
	for _, kc := range kinds {
		counts = append(counts, *kc)
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Kind < counts[j].Kind
	})

	return TemplateData{
		Resources:  rows,
		KindCounts: counts,
	}
}

func optional(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *p)
}

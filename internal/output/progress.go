package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"iacsift/internal/rules"
	"iacsift/internal/verdict"
)

const gaugeWidth = 10

// ScanProgress draws a progress bar while a batch is classified
type ScanProgress struct {
	bar *progressbar.ProgressBar
}

// NewScanProgress creates a bar for total resources writing to out
func NewScanProgress(out io.Writer, total int) *ScanProgress {
	return &ScanProgress{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("Classifying resources"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// Update moves the bar to done; it matches scoring.ProgressFunc
func (p *ScanProgress) Update(done, total int) {
	_ = p.bar.Set(done)
}

// Finish clears the bar
func (p *ScanProgress) Finish() {
	_ = p.bar.Finish()
}

// gauge renders score as a fixed-width bar colored by band
func gauge(score float64) string {
	filled := int(score*gaugeWidth + 0.5)
	if filled > gaugeWidth {
		filled = gaugeWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled)
	return scoreColor(score).Sprint(bar)
}

func scoreColor(score float64) *color.Color {
	switch verdict.DecisionFor(score) {
	case verdict.Block:
		return color.New(color.FgRed)
	case verdict.Warn:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgGreen)
}

func severityColor(s rules.Severity) *color.Color {
	switch s {
	case rules.Critical:
		return color.New(color.FgRed, color.Bold)
	case rules.High:
		return color.New(color.FgRed)
	case rules.Medium:
		return color.New(color.FgYellow)
	case rules.Low:
		return color.New(color.FgCyan)
	}
	return color.New(color.FgWhite)
}

func labelColor(l verdict.Label) *color.Color {
	if l == verdict.Risky {
		return color.New(color.FgRed, color.Bold)
	}
	return color.New(color.FgGreen)
}

func formatScore(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *p)
}

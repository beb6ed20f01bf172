package bundler

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// Stats presets
const (
	PresetNone       = "none"
	PresetErrorsOnly = "errors-only"
	PresetMinimal    = "minimal"
	PresetNormal     = "normal"
	PresetVerbose    = "verbose"
)

// StatsOptions control how Stats are rendered
type StatsOptions struct {
	Preset   string `mapstructure:"preset"`
	Colors   bool   `mapstructure:"colors"`
	Hash     bool   `mapstructure:"hash"`
	Timings  bool   `mapstructure:"timings"`
	Version  bool   `mapstructure:"version"`
	Assets   bool   `mapstructure:"assets"`
	Warnings bool   `mapstructure:"warnings"`
	Children bool   `mapstructure:"children"`
	Inputs   bool   `mapstructure:"inputs"`
}

func DefaultStatsOptions() StatsOptions {
	return StatsOptions{
		Preset:   PresetNormal,
		Colors:   isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		Version:  true,
		Assets:   true,
		Warnings: true,
		Children: true,
	}
}

// IsSilent reports whether the preset suppresses the default summary
func (o StatsOptions) IsSilent() bool {
	switch o.Preset {
	case PresetErrorsOnly, PresetMinimal, PresetNone:
		return true
	default:
		return false
	}
}

// Stats describe one compile cycle. A multi-compiler cycle has Children and no Compilation.
type Stats struct {
	Bundler     string
	Hash        string
	StartTime   time.Time
	EndTime     time.Time
	Compilation *Compilation
	Children    []*Stats
}

func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Compilations returns every compilation in the cycle, children included
func (s *Stats) Compilations() []*Compilation {
	var out []*Compilation
	if s.Compilation != nil {
		out = append(out, s.Compilation)
	}

	for _, child := range s.Children {
		out = append(out, child.Compilations()...)
	}

	return out
}

func (s *Stats) HasErrors() bool {
	return len(s.Errors()) > 0
}

func (s *Stats) HasWarnings() bool {
	return len(s.Warnings()) > 0
}

// Errors returns the messages of every compilation error
func (s *Stats) Errors() []string {
	var msgs []string
	for _, c := range s.Compilations() {
		for _, err := range c.Errors() {
			msgs = append(msgs, err.Error())
		}
	}

	return msgs
}

func (s *Stats) Warnings() []string {
	var msgs []string
	for _, c := range s.Compilations() {
		msgs = append(msgs, c.Warnings...)
	}

	return msgs
}

// String renders a human-readable summary
func (s *Stats) String(opts StatsOptions) string {
	p := newPrinter(opts)

	switch opts.Preset {
	case PresetNone:
		return ""
	case PresetErrorsOnly:
		p.problems(s.Errors(), nil)
	case PresetMinimal:
		emitted := 0
		for _, c := range s.Compilations() {
			emitted += len(c.EmittedAssets())
		}

		fmt.Fprintf(&p.b, "%d assets emitted, %d errors, %d warnings\n", emitted, len(s.Errors()), len(s.Warnings()))
		p.problems(s.Errors(), nil)
	case PresetVerbose:
		opts.Hash, opts.Timings, opts.Version, opts.Assets = true, true, true, true
		opts.Warnings, opts.Children, opts.Inputs = true, true, true
		p.opts = opts
		p.stats(s, "")
	default:
		p.stats(s, "")
	}

	return strings.TrimRight(p.b.String(), "\n")
}

type printer struct {
	opts    StatsOptions
	b       strings.Builder
	errorC  *color.Color
	warnC   *color.Color
	emitC   *color.Color
	headerC *color.Color
}

func newPrinter(opts StatsOptions) *printer {
	p := &printer{
		opts:    opts,
		errorC:  color.New(color.FgRed, color.Bold),
		warnC:   color.New(color.FgYellow, color.Bold),
		emitC:   color.New(color.FgGreen),
		headerC: color.New(color.Bold),
	}

	for _, c := range []*color.Color{p.errorC, p.warnC, p.emitC, p.headerC} {
		if opts.Colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

func (p *printer) stats(s *Stats, indent string) {
	if p.opts.Version && s.Bundler != "" {
		fmt.Fprintf(&p.b, "%sBundler: %s\n", indent, s.Bundler)
	}

	if p.opts.Hash && s.Hash != "" {
		fmt.Fprintf(&p.b, "%sHash: %s\n", indent, p.headerC.Sprint(s.Hash))
	}

	if p.opts.Timings && !s.StartTime.IsZero() {
		fmt.Fprintf(&p.b, "%sTime: %s\n", indent, s.Duration().Round(time.Millisecond))
	}

	if c := s.Compilation; c != nil {
		p.compilation(c, indent)
	}

	if !p.opts.Children {
		var errs []string
		for _, child := range s.Children {
			errs = append(errs, child.Errors()...)
		}

		p.problems(errs, nil)
		return
	}

	for _, child := range s.Children {
		name := "child"
		if child.Compilation != nil && child.Compilation.Name != "" {
			name = child.Compilation.Name
		}

		fmt.Fprintf(&p.b, "%sChild %s:\n", indent, p.headerC.Sprint(name))
		p.stats(child, indent+"    ")
	}
}

func (p *printer) compilation(c *Compilation, indent string) {
	if p.opts.Assets && len(c.Assets) > 0 {
		var tb strings.Builder

		table := tablewriter.NewWriter(&tb)
		table.SetHeader([]string{"Asset", "Size", ""})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		table.SetAutoFormatHeaders(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetCenterSeparator("")
		table.SetColumnSeparator("")
		table.SetRowSeparator("")
		table.SetHeaderLine(false)
		table.SetTablePadding("  ")
		table.SetNoWhiteSpace(true)

		for _, name := range c.AssetNames() {
			asset := c.Assets[name]

			status := ""
			if asset.Emitted {
				status = p.emitC.Sprint("[emitted]")
			}

			table.Append([]string{name, humanize.Bytes(uint64(asset.Size)), status})
		}

		table.Render()

		for _, line := range strings.Split(strings.TrimRight(tb.String(), "\n"), "\n") {
			fmt.Fprintf(&p.b, "%s%s\n", indent, line)
		}
	}

	if p.opts.Inputs {
		for _, in := range c.Inputs {
			fmt.Fprintf(&p.b, "%s  <- %s\n", indent, in)
		}
	}

	var errs []string
	for _, err := range c.Errors() {
		errs = append(errs, err.Error())
	}

	warnings := c.Warnings
	if !p.opts.Warnings {
		warnings = nil
	}

	p.problemsIndented(errs, warnings, indent)
}

func (p *printer) problems(errs, warnings []string) {
	p.problemsIndented(errs, warnings, "")
}

func (p *printer) problemsIndented(errs, warnings []string, indent string) {
	for _, w := range warnings {
		fmt.Fprintf(&p.b, "%s%s %s\n", indent, p.warnC.Sprint("WARNING"), w)
	}

	for _, e := range errs {
		fmt.Fprintf(&p.b, "%s%s %s\n", indent, p.errorC.Sprint("ERROR"), e)
	}
}

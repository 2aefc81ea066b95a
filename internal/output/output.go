package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/audiotoolbox/internal/grouping"
	"github.com/maauso/audiotoolbox/internal/history"
	"github.com/maauso/audiotoolbox/internal/recording"
	"github.com/maauso/audiotoolbox/internal/task"
)

type Formatter struct {
	w     io.Writer
	color bool
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

// WithColor enables 24-bit ANSI swatches for group colours.
func (f *Formatter) WithColor(enabled bool) *Formatter {
	f.color = enabled
	return f
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) Progress(line string) {
	fmt.Fprintf(f.w, "   %s\n", line)
}

func (f *Formatter) ScanDone(dir string, n int) {
	fmt.Fprintf(f.w, "📂 %s: %d recordings\n", dir, n)
}

func (f *Formatter) Groups(groups []grouping.Group) {
	if len(groups) == 0 {
		f.Info("No recordings found")
		return
	}
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(f.w)
		}
		var total int64
		for _, file := range g.Files {
			total += file.Size
		}
		fmt.Fprintf(f.w, "%s📅 %s  (%d files, %s)\n", f.swatch(g.Color), g.Key, len(g.Files), FormatSize(total))
		for _, file := range g.Files {
			f.File(file)
		}
	}
}

func (f *Formatter) File(file *recording.File) {
	details := []string{FormatSize(file.Size)}
	if file.Duration > 0 {
		details = append(details, FormatDuration(time.Duration(file.Duration*float64(time.Second))))
	}
	if file.Title != "" {
		details = append(details, strconv.Quote(file.Title))
	}
	fmt.Fprintf(f.w, "  %s  %-14s %s  [%s]\n",
		file.Timestamp().Format("15:04"),
		file.State(),
		file.Name(),
		strings.Join(details, ", "),
	)
}

func (f *Formatter) Result(res task.Result) {
	summary := fmt.Sprintf("%s %s: %d processed, %d failed in %s",
		res.Kind, res.TaskID, res.Processed, res.Failed, FormatDuration(res.Elapsed))
	if res.Success {
		f.Success(summary)
	} else {
		f.Error(summary)
		if res.Error != "" {
			fmt.Fprintf(f.w, "   %s\n", res.Error)
		}
	}
	for _, out := range res.Outputs {
		fmt.Fprintf(f.w, "   → %s\n", out)
	}
}

func (f *Formatter) HistoryHeader() {
	fmt.Fprintf(f.w, "🕘 Recent tasks:\n\n")
}

func (f *Formatter) HistoryItem(rec *history.Record) {
	elapsed := "running"
	if !rec.FinishedAt.IsZero() {
		elapsed = FormatDuration(rec.FinishedAt.Sub(rec.StartedAt))
	}
	fmt.Fprintf(f.w, "  %s  %-14s %-9s %d/%d  %s  %s\n",
		rec.StartedAt.Format(time.DateTime),
		rec.Kind,
		rec.Status,
		rec.Processed,
		rec.Targets,
		elapsed,
		rec.ID,
	)
	if rec.Error != "" {
		fmt.Fprintf(f.w, "      %s\n", rec.Error)
	}
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  ❌ %s: %s\n", name, detail)
	}
}

func (f *Formatter) swatch(hex string) string {
	if !f.color {
		return ""
	}
	r, g, b, ok := parseHex(hex)
	if !ok {
		return ""
	}
	return fmt.Sprintf("\x1b[48;2;%d;%d;%dm  \x1b[0m ", r, g, b)
}

func parseHex(s string) (r, g, b uint8, ok bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}

// FormatSize renders a byte count with binary units, e.g. "1.5 MB".
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatDuration renders d as 1h02m03s, 2m03s or 3s.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

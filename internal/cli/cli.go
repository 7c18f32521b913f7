package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/NamiraNet/voicepost/internal/generation"
	"github.com/NamiraNet/voicepost/internal/service"
)

// TranscriptReader finds the transcript text for the generate command.
type TranscriptReader struct {
	stdin *os.File
}

func NewTranscriptReader() *TranscriptReader {
	return &TranscriptReader{stdin: os.Stdin}
}

func (tr *TranscriptReader) File(filename string) (string, error) {
	if filename == "" {
		return "", nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Stdin reads piped input; a terminal yields nothing.
func (tr *TranscriptReader) Stdin() (string, error) {
	if tr.stdin == nil {
		return "", nil
	}
	stat, err := tr.stdin.Stat()
	if err != nil {
		return "", nil
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", nil
	}
	return readLines(tr.stdin)
}

func readLines(r io.Reader) (string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " "), scanner.Err()
}

// Read prefers stdin, then the file, then the --text flag, and reports which
// one it used.
func (tr *TranscriptReader) Read(filename, text string) (string, string, error) {
	piped, err := tr.Stdin()
	if err != nil {
		return "", "", fmt.Errorf("error reading from stdin: %w", err)
	}
	if piped != "" {
		return piped, "stdin", nil
	}

	if filename != "" {
		content, err := tr.File(filename)
		if err != nil {
			return "", "", fmt.Errorf("error reading from file %s: %w", filename, err)
		}
		if content != "" {
			return content, "file", nil
		}
	}

	if text = strings.TrimSpace(text); text != "" {
		return text, "arguments", nil
	}
	return "", "none", nil
}

type OutputOptions struct {
	Format   string
	Filename string
}

type OutputManager struct {
	stdout io.Writer
}

func NewOutputManager() *OutputManager {
	return &OutputManager{stdout: os.Stdout}
}

func (om *OutputManager) Output(drafts service.Drafts, options OutputOptions) error {
	var output string
	var err error

	switch options.Format {
	case "json":
		output, err = om.JSON(drafts)
	case "csv":
		output = om.CSV(drafts)
	case "table":
		output = om.Table(drafts)
	default:
		return fmt.Errorf("unsupported output format: %s", options.Format)
	}
	if err != nil {
		return err
	}

	if options.Filename != "" {
		return os.WriteFile(options.Filename, []byte(output), 0644)
	}
	_, err = fmt.Fprint(om.stdout, output)
	return err
}

type draftJSON struct {
	service.Draft
	Error          string  `json:"error,omitempty"`
	GenerationTime float64 `json:"generation_time"`
}

func (om *OutputManager) JSON(drafts service.Drafts) (string, error) {
	out := make([]draftJSON, 0, len(drafts))
	for _, d := range drafts {
		j := draftJSON{Draft: d, GenerationTime: d.Elapsed.Seconds()}
		if d.Err != nil {
			j.Error = d.Err.Error()
		}
		out = append(out, j)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	return string(data) + "\n", err
}

func (om *OutputManager) CSV(drafts service.Drafts) string {
	lines := []string{"Platform,Tone,Status,Time(s),Text"}
	for _, d := range drafts {
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%.2f,%s",
			d.Platform, d.Tone, d.Status, d.Elapsed.Seconds(), escapeCSV(draftText(d))))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (om *OutputManager) Table(drafts service.Drafts) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("%-10s %-13s %-8s %-8s %s", "PLATFORM", "TONE", "STATUS", "TIME(s)", "TEXT"))
	lines = append(lines, strings.Repeat("-", 100))

	for _, d := range drafts {
		lines = append(lines, fmt.Sprintf("%-10s %-13s %-8s %-8.2f %s",
			d.Platform,
			d.Tone,
			d.Status,
			d.Elapsed.Seconds(),
			truncateString(strings.ReplaceAll(draftText(d), "\n", " "), 60)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func draftText(d service.Draft) string {
	if d.Err != nil {
		return d.Err.Error()
	}
	return d.Text
}

type SummaryPrinter struct {
	out io.Writer
}

func NewSummaryPrinter() *SummaryPrinter {
	return &SummaryPrinter{out: os.Stderr}
}

func (sp *SummaryPrinter) PrintSummary(drafts service.Drafts) {
	total := len(drafts)
	if total == 0 {
		fmt.Fprintln(sp.out, "No drafts generated")
		return
	}

	counts := make(map[generation.Status]int)
	var elapsed time.Duration
	for _, d := range drafts {
		counts[d.Status]++
		if d.Status == generation.StatusSuccess {
			elapsed += d.Elapsed
		}
	}

	pct := func(n int) float64 { return float64(n) / float64(total) * 100 }
	fmt.Fprintln(sp.out, "\n"+strings.Repeat("=", 50))
	fmt.Fprintln(sp.out, "SUMMARY")
	fmt.Fprintln(sp.out, strings.Repeat("=", 50))
	fmt.Fprintf(sp.out, "Total drafts: %d\n", total)
	fmt.Fprintf(sp.out, "Successful: %d (%.1f%%)\n", counts[generation.StatusSuccess], pct(counts[generation.StatusSuccess]))
	fmt.Fprintf(sp.out, "Timed out: %d (%.1f%%)\n", counts[generation.StatusTimeout], pct(counts[generation.StatusTimeout]))
	fmt.Fprintf(sp.out, "Failed: %d (%.1f%%)\n", counts[generation.StatusFailed], pct(counts[generation.StatusFailed]))

	if n := counts[generation.StatusSuccess]; n > 0 {
		fmt.Fprintf(sp.out, "Average generation time: %.2f s\n", (elapsed / time.Duration(n)).Seconds())
	}
}

func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		s = strings.ReplaceAll(s, "\"", "\"\"")
		return "\"" + s + "\""
	}
	return s
}

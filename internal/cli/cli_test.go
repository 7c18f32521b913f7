package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NamiraNet/voicepost/internal/generation"
	"github.com/NamiraNet/voicepost/internal/service"
)

func pipeWith(t *testing.T, data string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	go func() {
		w.WriteString(data)
		w.Close()
	}()
	return r
}

func TestTranscriptReader_Precedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "transcript.txt")
	if err := os.WriteFile(file, []byte("  from the file \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := &TranscriptReader{stdin: pipeWith(t, "line one\n\n  line two \n")}
	text, source, err := tr.Read(file, "from flag")
	if err != nil || source != "stdin" || text != "line one line two" {
		t.Errorf("stdin: got %q from %s, %v", text, source, err)
	}

	tr = &TranscriptReader{}
	if text, source, _ := tr.Read(file, "from flag"); source != "file" || text != "from the file" {
		t.Errorf("file: got %q from %s", text, source)
	}
	if text, source, _ := tr.Read("", "  from flag "); source != "arguments" || text != "from flag" {
		t.Errorf("flag: got %q from %s", text, source)
	}
	if _, source, _ := tr.Read("", ""); source != "none" {
		t.Errorf("expected none, got %s", source)
	}
	if _, _, err := tr.Read(filepath.Join(t.TempDir(), "missing.txt"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

var sampleDrafts = service.Drafts{
	{Platform: "twitter", Tone: "witty", Text: "Ship it, then sleep #devlife", Status: generation.StatusSuccess, Elapsed: 1500 * time.Millisecond},
	{Platform: "linkedin", Tone: "witty", Status: generation.StatusTimeout, Err: errors.New("linkedin: generation timed out, please retry")},
}

func TestOutputManager_Formats(t *testing.T) {
	var buf bytes.Buffer
	om := &OutputManager{stdout: &buf}

	if err := om.Output(sampleDrafts, OutputOptions{Format: "table"}); err != nil {
		t.Fatal(err)
	}
	table := buf.String()
	if !strings.HasPrefix(table, "PLATFORM") || !strings.Contains(table, "Ship it, then sleep") || !strings.Contains(table, "timed out") {
		t.Errorf("unexpected table:\n%s", table)
	}

	csv := om.CSV(sampleDrafts)
	if !strings.Contains(csv, `twitter,witty,success,1.50,"Ship it, then sleep #devlife"`) {
		t.Errorf("unexpected csv:\n%s", csv)
	}

	out, err := om.JSON(sampleDrafts)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded[0]["generation_time"] != 1.5 || decoded[1]["status"] != "timeout" || decoded[1]["error"] == nil {
		t.Errorf("unexpected json %v", decoded)
	}

	if err := om.Output(sampleDrafts, OutputOptions{Format: "xml"}); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestOutputManager_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.json")
	om := NewOutputManager()
	if err := om.Output(sampleDrafts, OutputOptions{Format: "json", Filename: path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `"platform": "twitter"`) {
		t.Errorf("unexpected file content %q, %v", data, err)
	}
}

func TestSummaryPrinter(t *testing.T) {
	var buf bytes.Buffer
	(&SummaryPrinter{out: &buf}).PrintSummary(sampleDrafts)
	out := buf.String()
	for _, want := range []string{"Total drafts: 2", "Successful: 1 (50.0%)", "Timed out: 1 (50.0%)", "Average generation time: 1.50 s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestTruncateString_RuneSafe(t *testing.T) {
	if got := truncateString("héllo wörld", 8); got != "héllo..." {
		t.Errorf("unexpected %q", got)
	}
	if got := truncateString("short", 8); got != "short" {
		t.Errorf("unexpected %q", got)
	}
}

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func newTestOutput(t *testing.T) (*Output, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	cmd.SetOut(buf)
	return NewOutput(cmd), buf
}

func TestTableRender(t *testing.T) {
	output, buf := newTestOutput(t)

	table := NewTable(output, "Symbol", "Qty", "P&L")
	table.AddRow("NIFTY25000CE", "1x50", "+₹500.00")
	table.AddRow("RELIANCE", "10", "-₹200.00")
	table.Render()

	lines := strings.Split(strings.TrimRight(stripANSI(buf.String()), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Symbol") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "NIFTY25000CE") || !strings.Contains(lines[2], "+₹500.00") {
		t.Errorf("first row = %q", lines[2])
	}
	// Columns align on the widest cell.
	if !strings.Contains(lines[3], "RELIANCE     ") {
		t.Errorf("second row not padded: %q", lines[3])
	}
}

func TestOutputJSONMode(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", true, "")
	cmd.Flags().Set("json", "true")
	cmd.SetOut(buf)
	output := NewOutput(cmd)

	if !output.IsJSON() {
		t.Fatal("expected JSON mode")
	}
	if err := output.JSON(map[string]int{"balance": 100}); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"balance": 100`) {
		t.Errorf("JSON output = %q", buf.String())
	}
}

func TestStripANSI(t *testing.T) {
	colored := ColorGreen + "OPEN" + ColorReset
	if got := stripANSI(colored); got != "OPEN" {
		t.Errorf("stripANSI(%q) = %q", colored, got)
	}
}

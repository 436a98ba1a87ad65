package output

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"gpcm/internal/gpregistry"
)

// Color styles
var (
	colorHeader  = text.Colors{text.FgCyan, text.Bold}
	colorLabel   = text.Colors{text.FgYellow}
	colorValue   = text.Colors{text.FgWhite}
	colorSuccess = text.Colors{text.FgGreen}
	colorError   = text.Colors{text.FgRed}
	colorWarn    = text.Colors{text.FgYellow}
)

// getTableStyle returns the default table style
func getTableStyle() table.Style {
	style := table.StyleRounded
	style.Color.Header = colorHeader
	style.Color.Row = text.Colors{text.FgWhite}
	style.Color.RowAlternate = text.Colors{text.FgHiWhite}
	style.Options.SeparateRows = false
	return style
}

// newTable creates a new table writer with default settings
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(getTableStyle())
	t.Style().Options.SeparateRows = false
	return t
}

// PrintReaderInfo prints the connected reader's name and ATR
func PrintReaderInfo(readerName, atr string) {
	fmt.Println()
	t := newTable()
	t.SetTitle("READER & CARD INFO")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 15},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})
	t.AppendRow(table.Row{"Reader", readerName})
	t.AppendRow(table.Row{"ATR", atr})
	t.Render()
}

// PrintReaderList prints available readers
func PrintReaderList(readers []string) {
	fmt.Println()
	t := newTable()
	t.SetTitle("AVAILABLE SMART CARD READERS")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 8},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})

	if len(readers) == 0 {
		t.AppendRow(table.Row{"Status", colorWarn.Sprint("No readers found")})
	} else {
		for i, r := range readers {
			t.AppendRow(table.Row{fmt.Sprintf("[%d]", i), r})
		}
	}
	t.Render()
}

// PrintError prints an error message
func PrintError(msg string) {
	fmt.Println(colorError.Sprintf("✗ Error: %s", msg))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	fmt.Println(colorSuccess.Sprintf("✓ %s", msg))
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	fmt.Println(colorWarn.Sprintf("⚠ %s", msg))
}

// PrintGPRegistry prints the content-management agent's decoded application and
// package registry (internal/gpregistry), as produced by gpagent.Agent.ListContent.
func PrintGPRegistry(applications []gpregistry.Application, packages []gpregistry.Package) {
	fmt.Println()
	t := newTable()
	t.SetTitle("GLOBALPLATFORM REGISTRY")
	t.AppendHeader(table.Row{"Kind", "AID", "Life Cycle", "Privileges / Modules"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 10},
		{Number: 2, Colors: colorValue, WidthMin: 35},
		{Number: 3, Colors: colorValue, WidthMin: 14},
		{Number: 4, Colors: colorValue, WidthMin: 25},
	})

	if len(applications) == 0 && len(packages) == 0 {
		t.AppendRow(table.Row{"-", "(nothing installed)", "-", "-"})
	}
	for _, app := range applications {
		privs := strings.Join(app.Privileges, ", ")
		if privs == "" {
			privs = "-"
		}
		t.AppendRow(table.Row{"App/SD", hex.EncodeToString(app.AID), app.LifeCycle, privs})
	}
	for _, pkg := range packages {
		var modules []string
		for _, m := range pkg.AppletClassAIDs {
			modules = append(modules, hex.EncodeToString(m))
		}
		modStr := strings.Join(modules, ", ")
		if modStr == "" {
			modStr = "-"
		}
		t.AppendRow(table.Row{"Package", hex.EncodeToString(pkg.AID), pkg.LifeCycle, modStr})
	}
	t.Render()
	fmt.Printf("\nApplications: %d, Packages: %d\n", len(applications), len(packages))
}

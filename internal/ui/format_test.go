package ui

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"projectdw/internal/etl"
	"projectdw/internal/loader"
	"projectdw/internal/schema"
	"projectdw/internal/state"
	"projectdw/pkg/errors"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevColor, prevNoColor := Output, supportsColor, color.NoColor
	Output = &buf
	supportsColor = false
	color.NoColor = true
	t.Cleanup(func() {
		Output, supportsColor, color.NoColor = prevOut, prevColor, prevNoColor
	})
	return &buf
}

func TestColorFunc(t *testing.T) {
	prev := supportsColor
	defer func() { supportsColor = prev }()

	SetColor(false)
	assert.Equal(t, "text", ColorSuccess("text"))

	SetColor(true)
	colored := ColorSuccess("text")
	assert.NotEqual(t, "text", colored)
	assert.Contains(t, colored, "text")
}

func TestShowMessages(t *testing.T) {
	buf := captureOutput(t)

	ShowSuccess("loaded")
	ShowWarning("careful")
	ShowInfo("note")

	assert.Equal(t, "SUCCESS: loaded\nWARNING: careful\nINFO: note\n", buf.String())
}

func TestShowErrorPrintsContext(t *testing.T) {
	buf := captureOutput(t)

	err := errors.CatalogMissError("SubdimPais", "nombre_pais", "Perú").WithContext("id_cliente", 2)
	ShowError(fmt.Errorf("run failed: %w", err))

	out := buf.String()
	assert.Contains(t, out, "ERROR:")
	assert.Contains(t, out, "PDW4001")
	assert.Contains(t, out, "id_cliente: 2")
	assert.Contains(t, out, "table: SubdimPais")
}

func TestFormatHelpers(t *testing.T) {
	captureOutput(t)

	assert.Equal(t, "-", FormatIDs(nil))
	assert.Equal(t, "1, 3", FormatIDs([]int{1, 3}))
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "+4", FormatCount(4))

	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m", FormatDuration(61*time.Minute))
}

func TestSpinnerWithoutTerminal(t *testing.T) {
	buf := captureOutput(t)

	s := NewSpinner("loading")
	s.Start()
	s.UpdateMessage("still loading")
	s.Stop(true, "done")
	s.Stop(false, "ignored")

	assert.Equal(t, "✓ done\n", buf.String())
}

func TestRenderRunReport(t *testing.T) {
	captureOutput(t)
	var buf bytes.Buffer

	RenderRunReport(&buf, &etl.RunReport{
		Intake:       etl.Intake{NewReady: []int{1, 3}, NewPending: []int{2}},
		State:        state.State{LastScanned: 3, PendingIDs: []int{2}, LastFinancialFactID: 2, LastQualityFactID: 2},
		Dimensions:   etl.DimensionReport{Countries: 2, Industries: 1, Clients: 2, Projects: 2, Satisfaction: true, Calendar: true},
		Financial:    2,
		Quality:      2,
		Flat:         etl.FlatReport{Projects: 2, Quality: 2},
		ProcessedIDs: []int{1, 3},
	})

	out := buf.String()
	assert.Contains(t, out, "Newly closed:          1, 3")
	assert.Contains(t, out, "HechosProyecto")
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "pending [2]")
	assert.Contains(t, out, "processed 2 project(s)")
}

func TestRenderRunReportEmpty(t *testing.T) {
	captureOutput(t)
	var buf bytes.Buffer

	RenderRunReport(&buf, &etl.RunReport{Recovered: true, State: state.Default()})

	out := buf.String()
	assert.Contains(t, out, "rolled back")
	assert.Contains(t, out, "No closed projects to process.")
	assert.NotContains(t, out, "HechosProyecto")
}

func TestRenderStatus(t *testing.T) {
	captureOutput(t)
	var buf bytes.Buffer

	RenderStatus(&buf, &etl.Status{
		State:          state.State{LastScanned: 3, PendingIDs: []int{2}},
		StateExists:    true,
		JournalPending: true,
		Tables: []etl.TableStatus{
			{Name: "DimCliente", Layer: schema.LayerWarehouse, Exists: true, Rows: 2},
			{Name: "OLAP_Calidad", Layer: schema.LayerOLAP},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "journal is present")
	assert.Contains(t, out, "last_id_scanned")
	assert.Contains(t, out, "missing")
	assert.True(t, strings.Contains(out, "warehouse") && strings.Contains(out, "olap"))
}

func TestRenderLoadReport(t *testing.T) {
	captureOutput(t)
	var buf bytes.Buffer

	RenderLoadReport(&buf, &loader.Report{
		Driver: "sqlite3",
		Tables: []loader.TableResult{{Table: "SubdimPais", Rows: 3, Inserted: 2, Skipped: 1}},
	})

	out := buf.String()
	assert.Contains(t, out, "SubdimPais")
	assert.Contains(t, out, "Loaded 2 row(s) into sqlite3")
}

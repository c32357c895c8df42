package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"projectdw/internal/etl"
	"projectdw/internal/loader"
)

// RenderTable writes rows under header as a bordered table.
func RenderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// RenderRunReport prints what one ETL pass did.
func RenderRunReport(w io.Writer, rep *etl.RunReport) {
	if rep.Recovered {
		fmt.Fprintln(w, color.YellowString("An interrupted batch was rolled back before this run."))
	}

	fmt.Fprintf(w, "Promoted from pending: %s\n", FormatIDs(rep.Intake.Promoted))
	fmt.Fprintf(w, "Newly closed:          %s\n", FormatIDs(rep.Intake.NewReady))
	fmt.Fprintf(w, "Newly pending:         %s\n", FormatIDs(rep.Intake.NewPending))

	if rep.Empty() {
		fmt.Fprintln(w, color.CyanString("No closed projects to process."))
		renderState(w, rep)
		return
	}

	d := rep.Dimensions
	RenderTable(w, []string{"Table", "Appended"}, [][]string{
		{"SubdimPais", strconv.Itoa(d.Countries)},
		{"SubdimIndustria", strconv.Itoa(d.Industries)},
		{"SubdimSatisfaccion", created(d.Satisfaction)},
		{"DimCliente", strconv.Itoa(d.Clients)},
		{"DimProyecto", strconv.Itoa(d.Projects)},
		{"DimTiempo", created(d.Calendar)},
		{"HechosProyecto", strconv.Itoa(rep.Financial)},
		{"HechosCalidad", strconv.Itoa(rep.Quality)},
		{"OLAP_Proyectos", strconv.Itoa(rep.Flat.Projects)},
		{"OLAP_Calidad", strconv.Itoa(rep.Flat.Quality)},
	})
	renderState(w, rep)
	fmt.Fprintf(w, "%s processed %d project(s) in %s\n",
		color.GreenString("Done:"), len(rep.ProcessedIDs), FormatDuration(rep.Duration))
}

func renderState(w io.Writer, rep *etl.RunReport) {
	st := rep.State
	fmt.Fprintf(w, "State: last scanned %d, pending [%s], last financial fact %d, last quality fact %d\n",
		st.LastScanned, FormatIDs(st.PendingIDs), st.LastFinancialFactID, st.LastQualityFactID)
}

func created(b bool) string {
	if b {
		return "created"
	}
	return "-"
}

// RenderStatus prints the process state and the size of every output table.
func RenderStatus(w io.Writer, s *etl.Status) {
	if !s.StateExists {
		fmt.Fprintln(w, color.CyanString("No state file yet; the next run starts from scratch."))
	}
	if s.JournalPending {
		fmt.Fprintln(w, color.YellowString("A batch journal is present; the next run will roll it back."))
	}

	RenderTable(w, []string{"Cursor", "Value"}, [][]string{
		{"last_id_scanned", strconv.Itoa(s.State.LastScanned)},
		{"pending_ids", FormatIDs(s.State.PendingIDs)},
		{"last_id_h_proy", strconv.Itoa(s.State.LastFinancialFactID)},
		{"last_id_h_cal", strconv.Itoa(s.State.LastQualityFactID)},
	})

	rows := make([][]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		count := color.New(color.Faint).Sprint("missing")
		if t.Exists {
			count = strconv.Itoa(t.Rows)
		}
		rows = append(rows, []string{t.Name, t.Layer.String(), count})
	}
	RenderTable(w, []string{"Table", "Layer", "Rows"}, rows)
}

// RenderLoadReport prints the per-table outcome of a relational load.
func RenderLoadReport(w io.Writer, rep *loader.Report) {
	rows := make([][]string, 0, len(rep.Tables))
	for _, t := range rep.Tables {
		rows = append(rows, []string{t.Table, strconv.Itoa(t.Rows), strconv.Itoa(t.Inserted), strconv.Itoa(t.Skipped)})
	}
	RenderTable(w, []string{"Table", "Rows", "Inserted", "Skipped"}, rows)
	fmt.Fprintf(w, "%s %d row(s) into %s in %s\n",
		color.GreenString("Loaded"), rep.Inserted(), rep.Driver, FormatDuration(rep.Duration))
}

package etl

import (
	"context"
	"fmt"
	"time"

	"projectdw/internal/calendar"
	"projectdw/internal/observability"
	"projectdw/internal/schema"
	"projectdw/internal/source"
	"projectdw/internal/state"
	"projectdw/internal/warehouse"
	"projectdw/pkg/errors"
	"projectdw/pkg/models"
)

// Options locates the inputs and the process state of a run.
type Options struct {
	SourceDir     string
	StateFile     string
	JournalFile   string
	CalendarStart time.Time
	CalendarEnd   time.Time
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *models.Config) (Options, error) {
	start, err := calendar.ParseDate(cfg.Calendar.Start)
	if err != nil {
		return Options{}, errors.ConfigError("calendar.start is not a date", "calendar.start")
	}
	end, err := calendar.ParseDate(cfg.Calendar.End)
	if err != nil {
		return Options{}, errors.ConfigError("calendar.end is not a date", "calendar.end")
	}
	return Options{
		SourceDir:     cfg.Paths.SourceDir,
		StateFile:     cfg.Paths.StateFile,
		JournalFile:   cfg.Paths.JournalFile,
		CalendarStart: start,
		CalendarEnd:   end,
	}, nil
}

// RunReport describes what a run did.
type RunReport struct {
	// Recovered is set when an interrupted batch was rolled back on start.
	Recovered    bool
	Intake       Intake
	State        state.State
	Dimensions   DimensionReport
	Financial    int
	Quality      int
	Flat         FlatReport
	Duration     time.Duration
	ProcessedIDs []int
}

// Empty reports whether the run found nothing ready.
func (r *RunReport) Empty() bool {
	return r.Intake.Empty()
}

// Pipeline runs incremental passes against one warehouse.
type Pipeline struct {
	opts   Options
	store  *warehouse.Store
	logger *observability.Logger
}

// NewPipeline creates a pipeline writing through store.
func NewPipeline(opts Options, store *warehouse.Store, logger *observability.Logger) *Pipeline {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Pipeline{opts: opts, store: store, logger: logger}
}

// Run executes one pass. Source tables are loaded before any output is
// touched. The output files of a non-empty batch are journaled first, so a
// failure, or a crash detected by the next run, truncates them back; the
// state save is the commit point.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	started := time.Now()
	rep := &RunReport{}

	recovered, err := state.Recover(p.opts.JournalFile, p.opts.StateFile)
	if err != nil {
		return nil, err
	}
	if recovered {
		p.logger.Warn("rolled back an interrupted batch")
	}
	rep.Recovered = recovered

	src, err := source.Load(p.opts.SourceDir)
	if err != nil {
		return nil, err
	}
	p.logger.InfoWithFields("source tables loaded", map[string]interface{}{
		"stage":       "source",
		"projects":    len(src.Projects),
		"clients":     len(src.Clients),
		"assignments": len(src.Assignments),
		"tests":       len(src.Tests),
	})

	current, err := state.Load(p.opts.StateFile)
	if err != nil {
		return nil, err
	}

	intake, next := SelectBatch(current, src.Projects)
	rep.Intake = intake
	p.logger.InfoWithFields("intake evaluated", map[string]interface{}{
		"stage":       "intake",
		"promoted":    len(intake.Promoted),
		"new_ready":   len(intake.NewReady),
		"new_pending": len(intake.NewPending),
		"pending":     len(next.PendingIDs),
		"cursor":      next.LastScanned,
	})

	if intake.Empty() {
		if err := next.Save(p.opts.StateFile); err != nil {
			return nil, err
		}
		p.logger.Info("no closed projects to process")
		rep.State = next
		rep.Duration = time.Since(started)
		return rep, nil
	}

	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	if err := p.store.CheckHeaders(); err != nil {
		return nil, err
	}

	batch, err := state.Begin(p.opts.JournalFile, current, p.store.Files())
	if err != nil {
		return nil, err
	}

	if err := p.process(ctx, src, intake, &next, rep); err != nil {
		if rbErr := batch.Rollback(); rbErr != nil {
			p.logger.ErrorWithFields("rollback failed", map[string]interface{}{
				"error":   rbErr.Error(),
				"journal": p.opts.JournalFile,
			})
		}
		return nil, err
	}

	if err := batch.Commit(p.opts.StateFile, next); err != nil {
		return nil, err
	}

	rep.State = next
	rep.Duration = time.Since(started)
	p.logger.InfoWithFields("batch committed", map[string]interface{}{
		"stage":    "commit",
		"projects": len(rep.ProcessedIDs),
		"duration": rep.Duration.String(),
	})
	return rep, nil
}

func (p *Pipeline) process(ctx context.Context, src *source.Sources, intake Intake, next *state.State, rep *RunReport) error {
	b := NewBatch(src, intake.Ready())
	for _, proj := range b.Projects {
		rep.ProcessedIDs = append(rep.ProcessedIDs, proj.ID)
	}
	if len(b.MissingClients) > 0 {
		p.logger.WarnWithFields("ready projects reference unknown clients", map[string]interface{}{
			"stage":   "dimensions",
			"clients": fmt.Sprint(b.MissingClients),
		})
	}

	dims, err := SyncDimensions(p.store, b, p.opts.CalendarStart, p.opts.CalendarEnd)
	if err != nil {
		return err
	}
	rep.Dimensions = dims
	if err := checkContext(ctx); err != nil {
		return err
	}

	financial, err := BuildFinancialFacts(b.Projects, next)
	if err != nil {
		return err
	}
	quality, err := BuildQualityFacts(b, next)
	if err != nil {
		return err
	}
	for _, t := range []schema.Table{schema.HechosProyecto, schema.HechosCalidad} {
		if err := p.store.Ensure(t); err != nil {
			return err
		}
	}
	if err := p.store.Append(schema.HechosProyecto, rows(financial)); err != nil {
		return err
	}
	if err := p.store.Append(schema.HechosCalidad, rows(quality)); err != nil {
		return err
	}
	rep.Financial = len(financial)
	rep.Quality = len(quality)
	p.logStage("facts", schema.HechosProyecto, rep.Financial)
	p.logStage("facts", schema.HechosCalidad, rep.Quality)
	if err := checkContext(ctx); err != nil {
		return err
	}

	flat, err := Denormalize(p.store, financial, quality)
	if err != nil {
		return err
	}
	rep.Flat = flat
	p.logStage("denormalize", schema.OLAPProyectos, flat.Projects)
	p.logStage("denormalize", schema.OLAPCalidad, flat.Quality)
	return checkContext(ctx)
}

func (p *Pipeline) logStage(stage string, t schema.Table, added int) {
	p.logger.InfoWithFields("rows appended", map[string]interface{}{
		"stage": stage,
		"table": t.Name,
		"added": added,
	})
}

type rower interface {
	Row() []string
}

func rows[T rower](facts []T) [][]string {
	out := make([][]string, len(facts))
	for i, f := range facts {
		out[i] = f.Row()
	}
	return out
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCancelled, "Run cancelled")
	}
	return nil
}

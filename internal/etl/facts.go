package etl

import (
	"fmt"
	"sort"
	"strconv"

	"projectdw/internal/calendar"
	"projectdw/internal/schema"
	"projectdw/internal/source"
	"projectdw/internal/state"
	"projectdw/pkg/errors"
)

// FinancialFact is one row of HechosProyecto.
type FinancialFact struct {
	ID            int
	ProjectID     int
	ClientID      int
	MethodologyID string
	ClosingTimeID int
	Cost          string
	Profit        string
}

// Row renders the fact in HechosProyecto column order.
func (f FinancialFact) Row() []string {
	return []string{
		strconv.Itoa(f.ID),
		strconv.Itoa(f.ProjectID),
		strconv.Itoa(f.ClientID),
		f.MethodologyID,
		strconv.Itoa(f.ClosingTimeID),
		f.Cost,
		f.Profit,
	}
}

// QualityFact is one row of HechosCalidad: the failing executions of one
// project on one day for one test type and severity.
type QualityFact struct {
	ID        int
	ProjectID int
	TimeID    int
	TestType  string
	Severity  string
	Defects   int
}

// Row renders the fact in HechosCalidad column order.
func (f QualityFact) Row() []string {
	return []string{
		strconv.Itoa(f.ID),
		strconv.Itoa(f.ProjectID),
		strconv.Itoa(f.TimeID),
		f.TestType,
		f.Severity,
		strconv.Itoa(f.Defects),
	}
}

// ClosingTimeID is the time key of the day a project closed: its actual end
// date, or its actual start date when it never recorded an end.
func ClosingTimeID(p source.Project) (int, error) {
	column, value := schema.ColFechaFinReal, p.ActualEnd
	if value == "" {
		column, value = schema.ColFechaInicioReal, p.ActualStart
	}
	if value == "" {
		return 0, errors.New(errors.ErrCodeMissingDate,
			fmt.Sprintf("Project %d has neither an actual end date nor an actual start date", p.ID)).
			WithContext(schema.ColIDProyecto, p.ID).
			WithSuggestions("Record fecha_inicio_real or fecha_fin_real for the project in the source")
	}
	key, err := calendar.KeyOf(value)
	if err != nil {
		return 0, errors.ValidationError(column, value, err.Error()).
			WithContext(schema.ColIDProyecto, p.ID)
	}
	return key, nil
}

// BuildFinancialFacts computes one fact per project, in batch order, and
// allocates their ids from st. Nothing is allocated when a project fails.
func BuildFinancialFacts(projects []source.Project, st *state.State) ([]FinancialFact, error) {
	facts := make([]FinancialFact, 0, len(projects))
	for _, p := range projects {
		closing, err := ClosingTimeID(p)
		if err != nil {
			return nil, err
		}
		facts = append(facts, FinancialFact{
			ProjectID:     p.ID,
			ClientID:      p.ClientID,
			MethodologyID: p.MethodologyID,
			ClosingTimeID: closing,
			Cost:          p.ActualBudget,
			Profit:        p.Profit,
		})
	}

	first := st.AllocateFinancial(len(facts))
	for i := range facts {
		facts[i].ID = first + i
	}
	return facts, nil
}

type qualityKey struct {
	projectID int
	timeID    int
	testType  string
	severity  string
}

func (a qualityKey) less(b qualityKey) bool {
	if a.projectID != b.projectID {
		return a.projectID < b.projectID
	}
	if a.timeID != b.timeID {
		return a.timeID < b.timeID
	}
	if a.testType != b.testType {
		return a.testType < b.testType
	}
	return a.severity < b.severity
}

// BuildQualityFacts counts failing executions of the batch per project, day,
// test type and severity. Only groups with at least one failure produce a
// fact. Facts are ordered by that key and their ids allocated from st.
func BuildQualityFacts(b Batch, st *state.State) ([]QualityFact, error) {
	projectOf := make(map[int]int, len(b.Assignments))
	for _, a := range b.Assignments {
		if _, dup := projectOf[a.ID]; !dup {
			projectOf[a.ID] = a.ProjectID
		}
	}

	counts := make(map[qualityKey]int)
	for _, e := range b.Tests {
		projectID, ok := projectOf[e.AssignmentID]
		if !ok || !e.Failed() {
			continue
		}
		if e.ExecutedOn == "" {
			return nil, errors.New(errors.ErrCodeMissingDate,
				fmt.Sprintf("Test execution %d has no execution date", e.ID)).
				WithContext(schema.ColIDPrueba, e.ID)
		}
		timeID, err := calendar.KeyOf(e.ExecutedOn)
		if err != nil {
			return nil, errors.ValidationError(schema.ColFechaEjecucion, e.ExecutedOn, err.Error()).
				WithContext(schema.ColIDPrueba, e.ID)
		}
		counts[qualityKey{projectID, timeID, e.Type, e.Severity}]++
	}

	keys := make([]qualityKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	first := st.AllocateQuality(len(keys))
	facts := make([]QualityFact, len(keys))
	for i, k := range keys {
		facts[i] = QualityFact{
			ID:        first + i,
			ProjectID: k.projectID,
			TimeID:    k.timeID,
			TestType:  k.testType,
			Severity:  k.severity,
			Defects:   counts[k],
		}
	}
	return facts, nil
}

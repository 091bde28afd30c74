package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	studentsCreated     metric.Int64Counter
	studentsUpdated     metric.Int64Counter
	studentsDeactivated metric.Int64Counter
	studentsViewed      metric.Int64Counter
	studentsListViewed  metric.Int64Counter
	searchesPerformed   metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.studentsCreated, err = meter.Int64Counter(
		"students_api.students.created",
		metric.WithDescription("Total number of students created"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsUpdated, err = meter.Int64Counter(
		"students_api.students.updated",
		metric.WithDescription("Total number of student updates"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsDeactivated, err = meter.Int64Counter(
		"students_api.students.deactivated",
		metric.WithDescription("Total number of students soft-deleted"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsViewed, err = meter.Int64Counter(
		"students_api.students.viewed",
		metric.WithDescription("Total number of single-student reads"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsListViewed, err = meter.Int64Counter(
		"students_api.students.list_viewed",
		metric.WithDescription("Total number of times the student list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.searchesPerformed, err = meter.Int64Counter(
		"students_api.students.searches",
		metric.WithDescription("Total number of search and advanced-search requests"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordStudentCreated(ctx context.Context) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentUpdated(ctx context.Context) {
	if m != nil && m.studentsUpdated != nil {
		m.studentsUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentDeactivated(ctx context.Context) {
	if m != nil && m.studentsDeactivated != nil {
		m.studentsDeactivated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentViewed(ctx context.Context) {
	if m != nil && m.studentsViewed != nil {
		m.studentsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentsListViewed(ctx context.Context) {
	if m != nil && m.studentsListViewed != nil {
		m.studentsListViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordSearchPerformed(ctx context.Context) {
	if m != nil && m.searchesPerformed != nil {
		m.searchesPerformed.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing.
// The returned Metrics safely ignores all Record* calls.
func NewMock() *Metrics {
	return &Metrics{}
}

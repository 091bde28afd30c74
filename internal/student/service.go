package student

import (
	"context"
	"strings"
	"time"
)

// EventPublisher publishes student lifecycle events. A nil publisher is
// allowed: events are best-effort and never fail the request.
type EventPublisher interface {
	Publish(eventType string, data interface{}) error
}

// Event types emitted on the messaging subject.
const (
	EventCreated     = "student.created"
	EventUpdated     = "student.updated"
	EventDeactivated = "student.deactivated"
)

type Service interface {
	Create(ctx context.Context, input *CreateStudentInput) (*Student, error)
	GetAll(ctx context.Context) ([]Student, error)
	GetByID(ctx context.Context, id int64) (*Student, error)
	Update(ctx context.Context, id int64, patch *UpdateStudentInput) (*Student, error)
	SoftDelete(ctx context.Context, id int64) (*Student, error)
	ListByProgram(ctx context.Context, program string) ([]Student, error)
	Search(ctx context.Context, query string) ([]Student, error)
	AdvancedSearch(ctx context.Context, filters SearchFilters) ([]Student, error)
	ListInactive(ctx context.Context) ([]Student, error)
}

type service struct {
	repo   Repository
	events EventPublisher
}

func NewService(repo Repository, events EventPublisher) Service {
	return &service{
		repo:   repo,
		events: events,
	}
}

func (s *service) Create(ctx context.Context, input *CreateStudentInput) (*Student, error) {
	lastName := strings.TrimSpace(input.LastName)
	firstName := strings.TrimSpace(input.FirstName)
	if lastName == "" || firstName == "" {
		return nil, validationError("lastName,firstName", "name and first name are required")
	}

	// Fast-path duplicate check, scoped to active students. The partial
	// unique index remains the authoritative guard against races.
	exists, err := s.repo.ExistsActiveName(ctx, lastName, firstName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflictError("lastName,firstName", "a student with the same name and first name already exists", nil)
	}

	record := &Student{
		LastName:         lastName,
		FirstName:        firstName,
		Email:            strings.ToLower(strings.TrimSpace(input.Email)),
		Program:          input.Program,
		Year:             input.Year,
		Average:          input.Average,
		RegistrationDate: time.Now(),
		Active:           true,
	}
	if input.RegistrationDate != nil {
		record.RegistrationDate = *input.RegistrationDate
	}

	created, err := s.repo.Insert(ctx, record)
	if err != nil {
		return nil, err
	}

	s.publish(EventCreated, created)
	return created, nil
}

func (s *service) GetAll(ctx context.Context) ([]Student, error) {
	return s.repo.FindActive(ctx)
}

func (s *service) GetByID(ctx context.Context, id int64) (*Student, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) Update(ctx context.Context, id int64, patch *UpdateStudentInput) (*Student, error) {
	if patch.LastName != nil {
		trimmed := strings.TrimSpace(*patch.LastName)
		if trimmed == "" {
			return nil, validationError("lastName", "name must not be empty")
		}
		patch.LastName = &trimmed
	}
	if patch.FirstName != nil {
		trimmed := strings.TrimSpace(*patch.FirstName)
		if trimmed == "" {
			return nil, validationError("firstName", "first name must not be empty")
		}
		patch.FirstName = &trimmed
	}
	if patch.Email != nil {
		lowered := strings.ToLower(strings.TrimSpace(*patch.Email))
		patch.Email = &lowered
	}

	if patch.IsEmpty() {
		// Nothing to write, but the caller still expects the record back.
		return s.repo.FindByID(ctx, id)
	}

	updated, err := s.repo.UpdateFields(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.publish(EventUpdated, updated)
	return updated, nil
}

func (s *service) SoftDelete(ctx context.Context, id int64) (*Student, error) {
	deactivated, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(EventDeactivated, deactivated)
	return deactivated, nil
}

func (s *service) ListByProgram(ctx context.Context, program string) ([]Student, error) {
	// No enum check here: an unknown program just matches nothing.
	return s.repo.FindByProgram(ctx, program)
}

func (s *service) Search(ctx context.Context, query string) ([]Student, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("q", "query parameter q is required")
	}
	return s.repo.SearchByName(ctx, query)
}

func (s *service) AdvancedSearch(ctx context.Context, filters SearchFilters) ([]Student, error) {
	filters.LastName = strings.TrimSpace(filters.LastName)
	return s.repo.FindFiltered(ctx, filters)
}

func (s *service) ListInactive(ctx context.Context) ([]Student, error) {
	return s.repo.FindInactive(ctx)
}

func (s *service) publish(eventType string, record *Student) {
	if s.events == nil {
		return
	}
	// The producer logs its own failures; a dead broker must not fail the
	// request that already committed.
	_ = s.events.Publish(eventType, record)
}

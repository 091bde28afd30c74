package student

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Constraint names as created by the startup migrations. The repository uses
// them to tell which uniqueness rule a 23505 violation came from.
const (
	emailUniqueConstraint     = "students_email_key"
	activeNameUniqueIndexName = "students_active_name_idx"
	uniqueViolationSQLState   = "23505"
)

type Repository interface {
	Insert(ctx context.Context, s *Student) (*Student, error)
	FindActive(ctx context.Context) ([]Student, error)
	FindInactive(ctx context.Context) ([]Student, error)
	FindByID(ctx context.Context, id int64) (*Student, error)
	ExistsActiveName(ctx context.Context, lastName, firstName string) (bool, error)
	FindByProgram(ctx context.Context, program string) ([]Student, error)
	SearchByName(ctx context.Context, query string) ([]Student, error)
	FindFiltered(ctx context.Context, filters SearchFilters) ([]Student, error)
	UpdateFields(ctx context.Context, id int64, patch *UpdateStudentInput) (*Student, error)
	Deactivate(ctx context.Context, id int64) (*Student, error)
}

type repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) Repository {
	return &repository{db: db}
}

// CreateIndexes creates the uniqueness guards the service relies on: the
// partial unique index scoping the name-pair rule to active rows. The email
// unique constraint is part of the table definition itself.
func CreateIndexes(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS `+activeNameUniqueIndexName+`
		ON students (last_name, first_name) WHERE active
	`)
	return err
}

func (r *repository) Insert(ctx context.Context, s *Student) (*Student, error) {
	_, err := r.db.NewInsert().Model(s).Returning("*").Exec(ctx)
	if err != nil {
		return nil, classifyUniqueViolation(err)
	}
	return s, nil
}

func (r *repository) FindActive(ctx context.Context) ([]Student, error) {
	var students []Student
	err := r.db.NewSelect().Model(&students).
		Where("active").
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, unavailableError(err)
	}
	return students, nil
}

func (r *repository) FindInactive(ctx context.Context) ([]Student, error) {
	var students []Student
	err := r.db.NewSelect().Model(&students).
		Where("NOT active").
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, unavailableError(err)
	}
	return students, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*Student, error) {
	s := new(Student)
	err := r.db.NewSelect().Model(s).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, unavailableError(err)
	}
	return s, nil
}

func (r *repository) ExistsActiveName(ctx context.Context, lastName, firstName string) (bool, error) {
	exists, err := r.db.NewSelect().Model((*Student)(nil)).
		Where("active").
		Where("last_name = ?", lastName).
		Where("first_name = ?", firstName).
		Exists(ctx)
	if err != nil {
		return false, unavailableError(err)
	}
	return exists, nil
}

func (r *repository) FindByProgram(ctx context.Context, program string) ([]Student, error) {
	var students []Student
	err := r.db.NewSelect().Model(&students).
		Where("program = ?", program).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, unavailableError(err)
	}
	return students, nil
}

func (r *repository) SearchByName(ctx context.Context, query string) ([]Student, error) {
	pattern := containsPattern(query)
	var students []Student
	err := r.db.NewSelect().Model(&students).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("last_name ILIKE ?", pattern).
				WhereOr("first_name ILIKE ?", pattern)
		}).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, unavailableError(err)
	}
	return students, nil
}

func (r *repository) FindFiltered(ctx context.Context, filters SearchFilters) ([]Student, error) {
	var students []Student
	q := r.db.NewSelect().Model(&students).Where("active")

	if filters.LastName != "" {
		q = q.Where("last_name ILIKE ?", containsPattern(filters.LastName))
	}
	if filters.Program != "" {
		q = q.Where("program = ?", filters.Program)
	}
	if filters.YearMin != nil {
		q = q.Where("year >= ?", *filters.YearMin)
	}
	if filters.YearMax != nil {
		q = q.Where("year <= ?", *filters.YearMax)
	}
	if filters.AverageMin != nil {
		q = q.Where("average >= ?", *filters.AverageMin)
	}

	if err := q.Order("id").Scan(ctx); err != nil {
		return nil, unavailableError(err)
	}
	return students, nil
}

func (r *repository) UpdateFields(ctx context.Context, id int64, patch *UpdateStudentInput) (*Student, error) {
	updated := new(Student)
	q := r.db.NewUpdate().Model(updated).
		Where("id = ?", id).
		Set("updated_at = current_timestamp").
		Returning("*")

	if patch.LastName != nil {
		q = q.Set("last_name = ?", *patch.LastName)
	}
	if patch.FirstName != nil {
		q = q.Set("first_name = ?", *patch.FirstName)
	}
	if patch.Email != nil {
		q = q.Set("email = ?", *patch.Email)
	}
	if patch.Program != nil {
		q = q.Set("program = ?", *patch.Program)
	}
	if patch.Year != nil {
		q = q.Set("year = ?", *patch.Year)
	}
	if patch.Average != nil {
		q = q.Set("average = ?", *patch.Average)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, classifyUniqueViolation(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrStudentNotFound
	}
	return updated, nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) (*Student, error) {
	updated := new(Student)
	res, err := r.db.NewUpdate().Model(updated).
		Where("id = ?", id).
		Set("active = FALSE").
		Set("updated_at = current_timestamp").
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, unavailableError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrStudentNotFound
	}
	return updated, nil
}

// classifyUniqueViolation turns a Postgres unique violation into the
// matching conflict error. The database constraint is the authoritative
// duplicate check: two concurrent creates can both pass the service
// pre-check, and the loser lands here.
func classifyUniqueViolation(err error) error {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) || pgErr.Field('C') != uniqueViolationSQLState {
		return unavailableError(err)
	}
	switch pgErr.Field('n') {
	case activeNameUniqueIndexName:
		return conflictError("lastName,firstName", "a student with the same name and first name already exists", err)
	case emailUniqueConstraint:
		return conflictError("email", "this email is already registered", err)
	default:
		return conflictError("", "duplicate value", err)
	}
}

// containsPattern builds an ILIKE substring pattern, escaping the ILIKE
// metacharacters so user input always matches literally.
func containsPattern(s string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(s) + "%"
}

package student

import (
	"time"

	"github.com/uptrace/bun"
)

// Programs a student can be enrolled in.
const (
	ProgramComputerScience       = "Computer Science"
	ProgramCivilEngineering      = "Civil Engineering"
	ProgramElectronics           = "Electronics"
	ProgramMechanicalEngineering = "Mechanical Engineering"
)

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	LastName  string `bun:"last_name,notnull" json:"lastName"`
	FirstName string `bun:"first_name,notnull" json:"firstName"`
	Email     string `bun:"email,unique,notnull" json:"email"`
	Program   string `bun:"program,notnull" json:"program"`
	Year      int    `bun:"year,notnull" json:"year"`
	// Average is nullable: not every student has grades yet.
	Average          *float64  `bun:"average" json:"average"`
	RegistrationDate time.Time `bun:"registration_date,notnull" json:"registrationDate"`
	Active           bool      `bun:"active,notnull" json:"active"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// CreateStudentInput is the request body for creating a student.
// LastName and FirstName carry no validate tags on purpose: they are trimmed
// and checked by the service so that whitespace-only names are rejected too.
type CreateStudentInput struct {
	LastName         string     `json:"lastName"`
	FirstName        string     `json:"firstName"`
	Email            string     `json:"email" validate:"required,email"`
	Program          string     `json:"program" validate:"required,oneof='Computer Science' 'Civil Engineering' 'Electronics' 'Mechanical Engineering'"`
	Year             int        `json:"year" validate:"required,min=1,max=5"`
	Average          *float64   `json:"average" validate:"omitempty,min=0,max=20"`
	RegistrationDate *time.Time `json:"registrationDate"`
}

// UpdateStudentInput is a field-level patch: nil means "leave unchanged".
type UpdateStudentInput struct {
	LastName  *string  `json:"lastName"`
	FirstName *string  `json:"firstName"`
	Email     *string  `json:"email" validate:"omitempty,email"`
	Program   *string  `json:"program" validate:"omitempty,oneof='Computer Science' 'Civil Engineering' 'Electronics' 'Mechanical Engineering'"`
	Year      *int     `json:"year" validate:"omitempty,min=1,max=5"`
	Average   *float64 `json:"average" validate:"omitempty,min=0,max=20"`
}

// IsEmpty reports whether the patch touches no field at all.
func (in *UpdateStudentInput) IsEmpty() bool {
	return in.LastName == nil && in.FirstName == nil && in.Email == nil &&
		in.Program == nil && in.Year == nil && in.Average == nil
}

// SearchFilters are the advanced-search criteria, combined with AND
// semantics. Nil numeric bounds mean "no constraint".
type SearchFilters struct {
	LastName   string
	Program    string
	YearMin    *int
	YearMax    *int
	AverageMin *float64
}

package student_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"students-api/internal/logger"
	"students-api/internal/metrics"
	"students-api/internal/student"
	"students-api/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Count   *int              `json:"count"`
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters"`
	Error   string            `json:"error"`
}

func doRequest(t *testing.T, router chi.Router, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func decodeStudent(t *testing.T, env envelope) student.Student {
	t.Helper()

	var s student.Student
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func decodeStudents(t *testing.T, env envelope) []student.Student {
	t.Helper()

	var list []student.Student
	require.NoError(t, json.Unmarshal(env.Data, &list))
	return list
}

func createStudent(t *testing.T, router chi.Router, payload map[string]interface{}) student.Student {
	t.Helper()

	w := doRequest(t, router, http.MethodPost, "/students", payload)
	require.Equal(t, http.StatusCreated, w.Code, "create failed: %s", w.Body.String())
	return decodeStudent(t, decode(t, w))
}

func TestStudentHandlers_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t, (*student.Student)(nil))
	require.NoError(t, student.CreateIndexes(context.Background(), pgContainer.DB))

	repo := student.NewRepository(pgContainer.DB)
	service := student.NewService(repo, nil)
	handler := student.NewHandler(service, logger.New(), metrics.NewMock())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	awa := map[string]interface{}{
		"lastName":  "Diallo",
		"firstName": "Awa",
		"email":     "awa@x.com",
		"program":   "Computer Science",
		"year":      2,
	}

	t.Run("CreateStudent", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		w := doRequest(t, router, http.MethodPost, "/students", awa)
		require.Equal(t, http.StatusCreated, w.Code)

		env := decode(t, w)
		assert.True(t, env.Success)

		created := decodeStudent(t, env)
		assert.NotZero(t, created.ID)
		assert.True(t, created.Active)
		assert.Equal(t, "awa@x.com", created.Email)
		assert.Nil(t, created.Average)
		assert.WithinDuration(t, time.Now(), created.RegistrationDate, 5*time.Second)
	})

	t.Run("CreateDuplicateNamePair", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		createStudent(t, router, awa)

		w := doRequest(t, router, http.MethodPost, "/students", awa)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.False(t, decode(t, w).Success)
	})

	t.Run("CreateDuplicateEmail", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		createStudent(t, router, awa)

		other := map[string]interface{}{
			"lastName":  "Ndiaye",
			"firstName": "Moussa",
			"email":     "AWA@X.COM", // lower-cased before the unique check
			"program":   "Electronics",
			"year":      1,
		}
		w := doRequest(t, router, http.MethodPost, "/students", other)
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("CreateValidation", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		cases := []map[string]interface{}{
			{"lastName": "   ", "firstName": "Awa", "email": "a@x.com", "program": "Electronics", "year": 1},
			{"lastName": "Diallo", "firstName": "Awa", "email": "not-an-email", "program": "Electronics", "year": 1},
			{"lastName": "Diallo", "firstName": "Awa", "email": "a@x.com", "program": "Astrology", "year": 1},
			{"lastName": "Diallo", "firstName": "Awa", "email": "a@x.com", "program": "Electronics", "year": 7},
			{"lastName": "Diallo", "firstName": "Awa", "email": "a@x.com", "program": "Electronics", "year": 1, "average": 25.0},
		}
		for _, payload := range cases {
			w := doRequest(t, router, http.MethodPost, "/students", payload)
			assert.Equal(t, http.StatusBadRequest, w.Code, "payload %v", payload)
		}

		// Nothing was inserted on any failure path.
		w := doRequest(t, router, http.MethodGet, "/students", nil)
		env := decode(t, w)
		require.NotNil(t, env.Count)
		assert.Equal(t, 0, *env.Count)
	})

	t.Run("RecreateAfterSoftDelete", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		first := createStudent(t, router, awa)

		w := doRequest(t, router, http.MethodDelete, "/students/"+itoa(first.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		again := map[string]interface{}{
			"lastName":  "Diallo",
			"firstName": "Awa",
			"email":     "awa2@x.com",
			"program":   "Computer Science",
			"year":      3,
		}
		w = doRequest(t, router, http.MethodPost, "/students", again)
		require.Equal(t, http.StatusCreated, w.Code, "name-pair uniqueness is scoped to active records")
	})

	t.Run("GetAllExcludesInactive", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		kept := createStudent(t, router, awa)
		gone := createStudent(t, router, map[string]interface{}{
			"lastName":  "Ndiaye",
			"firstName": "Moussa",
			"email":     "moussa@x.com",
			"program":   "Electronics",
			"year":      4,
		})

		w := doRequest(t, router, http.MethodDelete, "/students/"+itoa(gone.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(t, router, http.MethodGet, "/students", nil)
		require.Equal(t, http.StatusOK, w.Code)

		env := decode(t, w)
		list := decodeStudents(t, env)
		require.NotNil(t, env.Count)
		assert.Equal(t, 1, *env.Count)
		require.Len(t, list, 1)
		assert.Equal(t, kept.ID, list[0].ID)

		w = doRequest(t, router, http.MethodGet, "/students/inactive", nil)
		env = decode(t, w)
		list = decodeStudents(t, env)
		require.Len(t, list, 1)
		assert.Equal(t, gone.ID, list[0].ID)
		assert.False(t, list[0].Active)
	})

	t.Run("GetStudentByID", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		created := createStudent(t, router, awa)

		// Found regardless of active state
		w := doRequest(t, router, http.MethodDelete, "/students/"+itoa(created.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(t, router, http.MethodGet, "/students/"+itoa(created.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decodeStudent(t, decode(t, w))
		assert.Equal(t, created.ID, got.ID)
		assert.False(t, got.Active)

		// Absent and malformed ids are both not-found
		w = doRequest(t, router, http.MethodGet, "/students/99999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = doRequest(t, router, http.MethodGet, "/students/not-an-id", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("UpdateStudent", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		created := createStudent(t, router, awa)

		w := doRequest(t, router, http.MethodPut, "/students/"+itoa(created.ID), map[string]interface{}{
			"year":    3,
			"average": 14.5,
		})
		require.Equal(t, http.StatusOK, w.Code)

		updated := decodeStudent(t, decode(t, w))
		assert.Equal(t, 3, updated.Year)
		require.NotNil(t, updated.Average)
		assert.InDelta(t, 14.5, *updated.Average, 0.001)
		// Untouched fields survive
		assert.Equal(t, "Diallo", updated.LastName)
		assert.Equal(t, "awa@x.com", updated.Email)
	})

	t.Run("UpdateValidationLeavesRecordUnchanged", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		created := createStudent(t, router, awa)

		w := doRequest(t, router, http.MethodPut, "/students/"+itoa(created.ID), map[string]interface{}{
			"year": 7,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(t, router, http.MethodGet, "/students/"+itoa(created.ID), nil)
		got := decodeStudent(t, decode(t, w))
		assert.Equal(t, 2, got.Year)
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		w := doRequest(t, router, http.MethodPut, "/students/123456", map[string]interface{}{
			"year": 3,
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("UpdateEmailConflict", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		createStudent(t, router, awa)
		other := createStudent(t, router, map[string]interface{}{
			"lastName":  "Ndiaye",
			"firstName": "Moussa",
			"email":     "moussa@x.com",
			"program":   "Electronics",
			"year":      4,
		})

		w := doRequest(t, router, http.MethodPut, "/students/"+itoa(other.ID), map[string]interface{}{
			"email": "awa@x.com",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		created := createStudent(t, router, awa)

		for i := 0; i < 2; i++ {
			w := doRequest(t, router, http.MethodDelete, "/students/"+itoa(created.ID), nil)
			require.Equal(t, http.StatusOK, w.Code)
			got := decodeStudent(t, decode(t, w))
			assert.False(t, got.Active)
		}

		w := doRequest(t, router, http.MethodDelete, "/students/99999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ListByProgram", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		createStudent(t, router, awa)
		inactive := createStudent(t, router, map[string]interface{}{
			"lastName":  "Ndiaye",
			"firstName": "Moussa",
			"email":     "moussa@x.com",
			"program":   "Computer Science",
			"year":      4,
		})
		doRequest(t, router, http.MethodDelete, "/students/"+itoa(inactive.ID), nil)

		// Includes inactive records; exact case-sensitive match
		w := doRequest(t, router, http.MethodGet, "/students/program/Computer%20Science", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		require.NotNil(t, env.Count)
		assert.Equal(t, 2, *env.Count)
		assert.Equal(t, "Computer Science", env.Filters["program"])

		// Unknown program is not an error, just empty
		w = doRequest(t, router, http.MethodGet, "/students/program/Astrology", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env = decode(t, w)
		require.NotNil(t, env.Count)
		assert.Equal(t, 0, *env.Count)
	})

	t.Run("Search", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		createStudent(t, router, map[string]interface{}{
			"lastName":  "O'Brien",
			"firstName": "Liam",
			"email":     "liam@x.com",
			"program":   "Mechanical Engineering",
			"year":      5,
		})
		createStudent(t, router, awa)

		// Case-insensitive substring on either name
		w := doRequest(t, router, http.MethodGet, "/students/search?q=o%27brien", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.Equal(t, "o'brien", env.Query)
		require.NotNil(t, env.Count)
		assert.Equal(t, 1, *env.Count)

		w = doRequest(t, router, http.MethodGet, "/students/search?q=AWA", nil)
		env = decode(t, w)
		require.NotNil(t, env.Count)
		assert.Equal(t, 1, *env.Count)

		// Metacharacters match literally, not as wildcards
		w = doRequest(t, router, http.MethodGet, "/students/search?q=%25", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env = decode(t, w)
		require.NotNil(t, env.Count)
		assert.Equal(t, 0, *env.Count)

		// Missing query is a client error
		w = doRequest(t, router, http.MethodGet, "/students/search", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("AdvancedSearch", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")
		createStudent(t, router, awa) // CS, year 2
		createStudent(t, router, map[string]interface{}{
			"lastName":  "Ndiaye",
			"firstName": "Moussa",
			"email":     "moussa@x.com",
			"program":   "Computer Science",
			"year":      5,
		})
		inactive := createStudent(t, router, map[string]interface{}{
			"lastName":  "Sow",
			"firstName": "Fatou",
			"email":     "fatou@x.com",
			"program":   "Computer Science",
			"year":      3,
			"average":   15.0,
		})
		doRequest(t, router, http.MethodDelete, "/students/"+itoa(inactive.ID), nil)

		w := doRequest(t, router, http.MethodGet,
			"/students/advanced-search?yearMin=2&yearMax=4&program=Computer%20Science", nil)
		require.Equal(t, http.StatusOK, w.Code)

		env := decode(t, w)
		list := decodeStudents(t, env)
		require.NotNil(t, env.Count)
		assert.Equal(t, 1, *env.Count)
		require.Len(t, list, 1)
		assert.Equal(t, "Diallo", list[0].LastName)
		assert.Equal(t, map[string]string{
			"yearMin": "2",
			"yearMax": "4",
			"program": "Computer Science",
		}, env.Filters)

		// averageMin bound
		w = doRequest(t, router, http.MethodGet, "/students/advanced-search?averageMin=10", nil)
		env = decode(t, w)
		require.NotNil(t, env.Count)
		assert.Equal(t, 0, *env.Count, "inactive records and null averages are excluded")

		// Substring on lastName
		w = doRequest(t, router, http.MethodGet, "/students/advanced-search?lastName=ial", nil)
		env = decode(t, w)
		require.NotNil(t, env.Count)
		assert.Equal(t, 1, *env.Count)

		// Non-numeric bounds are rejected, not coerced
		w = doRequest(t, router, http.MethodGet, "/students/advanced-search?yearMin=two", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(t, router, http.MethodGet, "/students/advanced-search?averageMin=high", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

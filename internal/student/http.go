package student

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"students-api/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Query   string      `json:"query,omitempty"`
	Filters interface{} `json:"filters,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/students", func(r chi.Router) {
		r.Post("/", h.CreateStudent)
		r.Get("/", h.GetAllStudents)
		r.Get("/inactive", h.GetInactiveStudents)
		r.Get("/search", h.SearchStudents)
		r.Get("/advanced-search", h.AdvancedSearch)
		r.Get("/program/{program}", h.GetStudentsByProgram)
		r.Get("/{id}", h.GetStudent)
		r.Put("/{id}", h.UpdateStudent)
		r.Delete("/{id}", h.DeleteStudent)
	})
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var input CreateStudentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&input); err != nil {
		respondWithJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: "invalid data",
			Error:   err.Error(),
		})
		return
	}

	h.logger.InfoContext(r.Context(), "creating student", "email", input.Email)
	created, err := h.service.Create(r.Context(), &input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordStudentCreated(r.Context())

	respondWithJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "student created successfully",
		Data:    created,
	})
}

func (h *Handler) GetAllStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.GetAll(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordStudentsListViewed(r.Context())

	respondWithJSON(w, http.StatusOK, listResponse(students))
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		// A malformed id cannot match any student.
		RespondWithError(w, http.StatusNotFound, "student not found")
		return
	}

	record, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordStudentViewed(r.Context())

	respondWithJSON(w, http.StatusOK, Response{Success: true, Data: record})
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		RespondWithError(w, http.StatusNotFound, "student not found")
		return
	}

	var patch UpdateStudentInput
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&patch); err != nil {
		respondWithJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: "invalid data",
			Error:   err.Error(),
		})
		return
	}

	h.logger.InfoContext(r.Context(), "updating student", "id", id)
	updated, err := h.service.Update(r.Context(), id, &patch)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordStudentUpdated(r.Context())

	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "student updated successfully",
		Data:    updated,
	})
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		RespondWithError(w, http.StatusNotFound, "student not found")
		return
	}

	h.logger.InfoContext(r.Context(), "deactivating student", "id", id)
	deactivated, err := h.service.SoftDelete(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordStudentDeactivated(r.Context())

	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "student deactivated successfully",
		Data:    deactivated,
	})
}

func (h *Handler) GetStudentsByProgram(w http.ResponseWriter, r *http.Request) {
	program := chi.URLParam(r, "program")

	students, err := h.service.ListByProgram(r.Context(), program)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := listResponse(students)
	resp.Filters = map[string]string{"program": program}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) SearchStudents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	students, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordSearchPerformed(r.Context())

	resp := listResponse(students)
	resp.Query = query
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) AdvancedSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	filters := SearchFilters{
		LastName: params.Get("lastName"),
		Program:  params.Get("program"),
	}

	if raw := params.Get("yearMin"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, "yearMin must be a number")
			return
		}
		filters.YearMin = &n
	}
	if raw := params.Get("yearMax"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, "yearMax must be a number")
			return
		}
		filters.YearMax = &n
	}
	if raw := params.Get("averageMin"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, "averageMin must be a number")
			return
		}
		filters.AverageMin = &f
	}

	students, err := h.service.AdvancedSearch(r.Context(), filters)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordSearchPerformed(r.Context())

	// Echo the filters exactly as received.
	echoed := make(map[string]string)
	for _, key := range []string{"lastName", "program", "yearMin", "yearMax", "averageMin"} {
		if v := params.Get(key); v != "" {
			echoed[key] = v
		}
	}

	resp := listResponse(students)
	resp.Filters = echoed
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetInactiveStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListInactive(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, listResponse(students))
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		switch svcErr.Kind {
		case KindValidation:
			h.logger.Info("invalid input", "field", svcErr.Field)
			RespondWithError(w, http.StatusBadRequest, svcErr.Message)
			return
		case KindConflict:
			h.logger.Info("duplicate student", "field", svcErr.Field)
			RespondWithError(w, http.StatusConflict, svcErr.Message)
			return
		case KindNotFound:
			h.logger.Info("student not found")
			RespondWithError(w, http.StatusNotFound, "student not found")
			return
		}
	}

	h.logger.Error("internal error", "error", err)
	respondWithJSON(w, http.StatusInternalServerError, Response{
		Success: false,
		Message: "server error",
		Error:   err.Error(),
	})
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func listResponse(students []Student) Response {
	if students == nil {
		students = []Student{}
	}
	count := len(students)
	return Response{
		Success: true,
		Count:   &count,
		Data:    students,
	}
}

// RespondWithError writes a failure envelope. Exported for the router-level
// handlers (404, banner plumbing) in the app package.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Response{Success: false, Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

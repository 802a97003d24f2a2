package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/PabloPavan/userdesk/internal/apperrors"
	"github.com/PabloPavan/userdesk/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// UserFormDTO carries the editable fields of a user. Field rules are
// enforced by the users validator; here only sizes are capped.
type UserFormDTO struct {
	Name   string `json:"name" validate:"max=256"`
	Email  string `json:"email" validate:"max=256"`
	Gender string `json:"gender" validate:"max=32"`
	Status string `json:"status" validate:"max=32"`
}

func (r *UserFormDTO) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationMessage(err, map[string]map[string]string{
			"*": {"max": "field is too long"},
		}, "invalid request")
	}
	return nil
}

func (r UserFormDTO) values() users.FormValues {
	return users.FormValues{
		Name:   r.Name,
		Email:  r.Email,
		Gender: r.Gender,
		Status: r.Status,
	}
}

// ValidateDTO asks for eager validation of a single field, or of the
// whole form when Field is empty.
type ValidateDTO struct {
	Field  string       `json:"field" validate:"omitempty,oneof=name email gender status"`
	Value  string       `json:"value" validate:"max=256"`
	Values *UserFormDTO `json:"values"`
}

func (r *ValidateDTO) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationMessage(err, map[string]map[string]string{
			"Field": {"oneof": "invalid field"},
			"Value": {"max": "value is too long"},
		}, "invalid request")
	}
	if r.Field == "" && r.Values == nil {
		return errors.New("field or values is required")
	}
	if r.Values != nil {
		return r.Values.Validate()
	}
	return nil
}

type ValidateResponse struct {
	Valid  bool                             `json:"valid"`
	Fields map[users.FieldName]users.Reason `json:"fields,omitempty"`
	Values *users.FormValues                `json:"values,omitempty"`
}

type BulkDeleteDTO struct {
	IDs     []int64 `json:"ids" validate:"required,min=1,max=1000,dive,gt=0"`
	Confirm bool    `json:"confirm"`
}

func (r *BulkDeleteDTO) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationMessage(err, map[string]map[string]string{
			"IDs": {
				"required": "ids are required",
				"min":      "ids are required",
				"max":      "too many ids",
				"gt":       "invalid id",
			},
		}, "invalid request")
	}
	return nil
}

// ViewPatchDTO changes parts of the operator's view. Absent fields are
// left alone; an empty gender or status clears that filter.
type ViewPatchDTO struct {
	Query  *string `json:"query" validate:"omitempty,max=100"`
	Gender *string `json:"gender" validate:"omitempty,oneof=hombre mujer"`
	Status *string `json:"status" validate:"omitempty,oneof=activo inactivo"`
	Sort   *string `json:"sort" validate:"omitempty,oneof=id name email gender status"`
	Order  *string `json:"order" validate:"omitempty,oneof=asc desc"`
	Page   *int    `json:"page" validate:"omitempty,min=1"`
}

func (r *ViewPatchDTO) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationMessage(err, map[string]map[string]string{
			"Query":  {"max": "query is too long"},
			"Gender": {"oneof": "invalid gender"},
			"Status": {"oneof": "invalid status"},
			"Sort":   {"oneof": "invalid sort field"},
			"Order":  {"oneof": "invalid sort order"},
			"Page":   {"min": "invalid page"},
		}, "invalid request")
	}
	return nil
}

type SelectionDTO struct {
	Checked *bool `json:"checked" validate:"required"`
}

func (r *SelectionDTO) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationMessage(err, map[string]map[string]string{
			"Checked": {"required": "checked is required"},
		}, "invalid request")
	}
	return nil
}

func validationMessage(err error, messages map[string]map[string]string, fallback string) error {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return errors.New(fallback)
	}
	for _, valErr := range valErrs {
		for _, field := range []string{valErr.Field(), valErr.StructField(), "*"} {
			fieldMessages, ok := messages[field]
			if !ok {
				continue
			}
			if msg, ok := fieldMessages[valErr.Tag()]; ok {
				return errors.New(msg)
			}
			if msg, ok := fieldMessages["*"]; ok {
				return errors.New(msg)
			}
		}
	}
	return errors.New(fallback)
}

func pathID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.New(apperrors.KindInvalidInput, "invalid id")
	}
	return id, nil
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

var errConfirmationRequired = apperrors.New(apperrors.KindConfirmationRequired, "confirmation required")

func parseListQuery(r *http.Request, defaultPerPage int) (users.ListQuery, error) {
	q := r.URL.Query()
	out := users.ListQuery{
		Query:   strings.TrimSpace(q.Get("q")),
		Page:    1,
		PerPage: defaultPerPage,
	}

	if v := strings.TrimSpace(q.Get("gender")); v != "" {
		g, err := users.ParseGender(v)
		if err != nil {
			return out, apperrors.New(apperrors.KindInvalidInput, "invalid gender")
		}
		out.Criteria.Gender = g
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		s, err := users.ParseStatus(v)
		if err != nil {
			return out, apperrors.New(apperrors.KindInvalidInput, "invalid status")
		}
		out.Criteria.Status = s
	}

	field, err := users.ParseSortField(q.Get("sort"))
	if err != nil {
		return out, apperrors.New(apperrors.KindInvalidInput, "invalid sort field")
	}
	order, err := users.ParseSortOrder(q.Get("order"))
	if err != nil {
		return out, apperrors.New(apperrors.KindInvalidInput, "invalid sort order")
	}
	out.SortField, out.SortOrder = field, order

	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return out, apperrors.New(apperrors.KindInvalidInput, "invalid page")
		}
		out.Page = n
	}
	if v := strings.TrimSpace(q.Get("per_page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return out, apperrors.New(apperrors.KindInvalidInput, "invalid per_page")
		}
		out.PerPage = n
	}
	return out, nil
}

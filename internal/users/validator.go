package users

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	personNamePattern = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]+$`)
	emailShapePattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// EditContext tells the validator whether a record is being edited and,
// if so, which email it had before the edit.
type EditContext struct {
	Editing       bool
	OriginalEmail string
}

func CreateMode() EditContext {
	return EditContext{}
}

func EditMode(original User) EditContext {
	return EditContext{Editing: true, OriginalEmail: normalizeEmail(original.Email)}
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return false
		}
		return strings.TrimSpace(field.String()) != ""
	})
	v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return false
		}
		return personNamePattern.MatchString(field.String())
	})
	v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return false
		}
		return emailShapePattern.MatchString(field.String())
	})
	return &Validator{validate: v}
}

// Validate checks every field and returns the normalized values. The
// returned error is nil when all fields pass.
func (v *Validator) Validate(values FormValues, existing []User, ec EditContext) (FormValues, *ValidationError) {
	out := values
	verr := &ValidationError{}
	for _, f := range Fields {
		normalized, reason, ok := v.field(f, values.get(f.Name), existing, ec)
		out.set(f.Name, normalized)
		if !ok {
			verr.add(f.Name, reason)
		}
	}
	return out, verr.orNil()
}

// ValidateField checks a single field, for eager per-change validation.
func (v *Validator) ValidateField(name FieldName, raw string, existing []User, ec EditContext) (Reason, bool) {
	f, ok := LookupField(name)
	if !ok {
		return ReasonInvalid, false
	}
	_, reason, ok := v.field(f, raw, existing, ec)
	return reason, ok
}

func (v *Validator) field(f FieldDescriptor, raw string, existing []User, ec EditContext) (string, Reason, bool) {
	if raw == "" {
		return raw, ReasonRequired, false
	}
	value := raw
	if f.normalize != nil {
		value = f.normalize(raw)
	}
	// Whitespace-only input is missing unless the field reports blank itself.
	if strings.TrimSpace(value) == "" {
		if r, ok := f.reasons["notblank"]; ok {
			return value, r, false
		}
		return value, ReasonRequired, false
	}
	if err := v.validate.Var(value, f.tag); err != nil {
		return value, reasonFor(f, err), false
	}
	if f.Name == FieldNameEmail && emailTaken(value, existing, ec) {
		return value, ReasonDuplicate, false
	}
	return value, "", true
}

func reasonFor(f FieldDescriptor, err error) Reason {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if r, ok := f.reasons[verrs[0].Tag()]; ok {
			return r
		}
	}
	return ReasonInvalid
}

func emailTaken(email string, existing []User, ec EditContext) bool {
	if ec.Editing && email == ec.OriginalEmail {
		return false
	}
	for _, u := range existing {
		if normalizeEmail(u.Email) == email {
			return true
		}
	}
	return false
}

func normalizeName(s string) string {
	return strings.TrimSpace(s)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

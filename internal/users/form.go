package users

// Form holds the state of one create or edit form. Fields are validated
// eagerly as they change and again on submit.
type Form struct {
	Initial    FormValues
	Values     FormValues
	Submitting bool

	errs      map[FieldName]Reason
	validator *Validator
	existing  []User
	ec        EditContext
}

// NewForm starts a create form when original is nil and an edit form
// seeded with original's values otherwise.
func NewForm(v *Validator, existing []User, original *User) *Form {
	f := &Form{
		validator: v,
		existing:  existing,
		errs:      make(map[FieldName]Reason),
		ec:        CreateMode(),
	}
	if original != nil {
		f.Initial = original.FormValues()
		f.ec = EditMode(*original)
	}
	f.Values = f.Initial
	return f
}

func (f *Form) SetField(name FieldName, value string) Reason {
	f.Values.set(name, value)
	reason, ok := f.validator.ValidateField(name, value, f.existing, f.ec)
	if ok {
		delete(f.errs, name)
		return ""
	}
	f.errs[name] = reason
	return reason
}

// Errors returns a copy of the current per-field failures.
func (f *Form) Errors() map[FieldName]Reason {
	out := make(map[FieldName]Reason, len(f.errs))
	for k, v := range f.errs {
		out[k] = v
	}
	return out
}

func (f *Form) Dirty() bool {
	return f.Values != f.Initial
}

// Validate re-checks every field, as done on submit.
func (f *Form) Validate() (FormValues, *ValidationError) {
	out, verr := f.validator.Validate(f.Values, f.existing, f.ec)
	f.errs = make(map[FieldName]Reason)
	if verr != nil {
		for k, v := range verr.Fields {
			f.errs[k] = v
		}
	}
	return out, verr
}

// CanSubmit is false while any field is invalid, the values equal the
// initial ones, or a submission is in flight.
func (f *Form) CanSubmit() bool {
	if f.Submitting || !f.Dirty() {
		return false
	}
	_, verr := f.validator.Validate(f.Values, f.existing, f.ec)
	return verr == nil
}

func (f *Form) Begin() bool {
	if !f.CanSubmit() {
		return false
	}
	f.Submitting = true
	return true
}

func (f *Form) Finish() {
	f.Submitting = false
}

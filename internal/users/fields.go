package users

type FieldName string

const (
	FieldNameName   FieldName = "name"
	FieldNameEmail  FieldName = "email"
	FieldNameGender FieldName = "gender"
	FieldNameStatus FieldName = "status"
)

// Reason identifies why a field failed validation.
type Reason string

const (
	ReasonRequired      Reason = "required"
	ReasonBlank         Reason = "blank"
	ReasonTooShort      Reason = "too_short"
	ReasonTooLong       Reason = "too_long"
	ReasonInvalidChars  Reason = "invalid_chars"
	ReasonInvalidFormat Reason = "invalid_format"
	ReasonDuplicate     Reason = "duplicate"
	ReasonInvalid       Reason = "invalid"
)

type FieldKind string

const (
	FieldKindText   FieldKind = "text"
	FieldKindSelect FieldKind = "select"
)

type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDescriptor describes one editable field. The validator tag and the
// tag-to-reason map drive validation; the rest is served to clients.
type FieldDescriptor struct {
	Name    FieldName     `json:"name"`
	Label   string        `json:"label"`
	Kind    FieldKind     `json:"kind"`
	Options []FieldOption `json:"options,omitempty"`

	tag       string
	reasons   map[string]Reason
	normalize func(string) string
}

// Fields lists the form fields in display order.
var Fields = []FieldDescriptor{
	{
		Name:      FieldNameName,
		Label:     "Nombre",
		Kind:      FieldKindText,
		tag:       "notblank,min=2,max=50,personname",
		normalize: normalizeName,
		reasons: map[string]Reason{
			"notblank":   ReasonBlank,
			"min":        ReasonTooShort,
			"max":        ReasonTooLong,
			"personname": ReasonInvalidChars,
		},
	},
	{
		Name:      FieldNameEmail,
		Label:     "Email",
		Kind:      FieldKindText,
		tag:       "emailshape,max=100",
		normalize: normalizeEmail,
		reasons: map[string]Reason{
			"emailshape": ReasonInvalidFormat,
			"max":        ReasonTooLong,
		},
	},
	{
		Name:  FieldNameGender,
		Label: "Género",
		Kind:  FieldKindSelect,
		Options: []FieldOption{
			{Value: string(GenderMale), Label: "Hombre"},
			{Value: string(GenderFemale), Label: "Mujer"},
		},
		tag:     "oneof=hombre mujer",
		reasons: map[string]Reason{"oneof": ReasonInvalid},
	},
	{
		Name:  FieldNameStatus,
		Label: "Estado",
		Kind:  FieldKindSelect,
		Options: []FieldOption{
			{Value: string(StatusActive), Label: "Activo"},
			{Value: string(StatusInactive), Label: "Inactivo"},
		},
		tag:     "oneof=activo inactivo",
		reasons: map[string]Reason{"oneof": ReasonInvalid},
	},
}

func LookupField(name FieldName) (FieldDescriptor, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

func (v FormValues) get(name FieldName) string {
	switch name {
	case FieldNameName:
		return v.Name
	case FieldNameEmail:
		return v.Email
	case FieldNameGender:
		return v.Gender
	case FieldNameStatus:
		return v.Status
	default:
		return ""
	}
}

func (v *FormValues) set(name FieldName, value string) {
	switch name {
	case FieldNameName:
		v.Name = value
	case FieldNameEmail:
		v.Email = value
	case FieldNameGender:
		v.Gender = value
	case FieldNameStatus:
		v.Status = value
	}
}

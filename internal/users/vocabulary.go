package users

import "fmt"

type Gender string

const (
	GenderMale   Gender = "hombre"
	GenderFemale Gender = "mujer"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale:
		return true
	default:
		return false
	}
}

func ParseGender(s string) (Gender, error) {
	g := Gender(s)
	if !g.Valid() {
		return "", fmt.Errorf("invalid gender: %q", s)
	}
	return g, nil
}

type Status string

const (
	StatusActive   Status = "activo"
	StatusInactive Status = "inactivo"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %q", s)
	}
	return st, nil
}

// Remote API vocabulary.
const (
	remoteMale     = "male"
	remoteFemale   = "female"
	remoteActive   = "active"
	remoteInactive = "inactive"
)

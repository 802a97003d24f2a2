package users

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrRemoteFetch = errors.New("remote fetch failed")
	ErrUnchanged   = errors.New("no changes to save")
	ErrLoading     = errors.New("load in progress")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ValidationError carries one failure reason per offending field.
type ValidationError struct {
	Fields map[FieldName]Reason
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for f, r := range e.Fields {
		parts = append(parts, string(f)+": "+string(r))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Reason(f FieldName) (Reason, bool) {
	if e == nil {
		return "", false
	}
	r, ok := e.Fields[f]
	return r, ok
}

func (e *ValidationError) add(f FieldName, r Reason) {
	if e.Fields == nil {
		e.Fields = make(map[FieldName]Reason)
	}
	e.Fields[f] = r
}

func (e *ValidationError) orNil() *ValidationError {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

package users

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

type SortField string

const (
	SortByID     SortField = "id"
	SortByName   SortField = "name"
	SortByEmail  SortField = "email"
	SortByGender SortField = "gender"
	SortByStatus SortField = "status"
)

func (f SortField) Valid() bool {
	switch f {
	case SortByID, SortByName, SortByEmail, SortByGender, SortByStatus:
		return true
	default:
		return false
	}
}

// ParseSortField accepts "" as "no sorting".
func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.TrimSpace(s))
	if f == "" || f.Valid() {
		return f, nil
	}
	return "", fmt.Errorf("invalid sort field: %q", s)
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder defaults "" to ascending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order: %q", s)
	}
}

// Criteria holds the optional exact-match filters. Zero values are not checked.
type Criteria struct {
	Gender Gender
	Status Status
}

func (c Criteria) Active() bool {
	return c.Gender != "" || c.Status != ""
}

type ListQuery struct {
	Query     string
	Criteria  Criteria
	SortField SortField
	SortOrder SortOrder
	Page      int
	PerPage   int
}

type PageResult struct {
	Items      []User
	Page       int
	TotalPages int
}

type ListResult struct {
	Items        []User `json:"items"`
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int    `json:"total_results"`
}

// Search keeps records whose name or email contains query, ignoring case.
// A blank query returns the input unchanged.
func Search(list []User, query string) []User {
	if strings.TrimSpace(query) == "" {
		return slices.Clone(list)
	}
	q := strings.ToLower(query)
	out := make([]User, 0, len(list))
	for _, u := range list {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out
}

func Filter(list []User, c Criteria) []User {
	out := make([]User, 0, len(list))
	for _, u := range list {
		if c.Gender != "" && u.Gender != c.Gender {
			continue
		}
		if c.Status != "" && u.Status != c.Status {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Sort returns a sorted copy. Equal keys keep their input order, so sorting
// an already sorted slice is a no-op.
func Sort(list []User, field SortField, order SortOrder) []User {
	out := slices.Clone(list)
	compare := comparator(field)
	if compare == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b User) int {
		c := compare(a, b)
		if order == SortDesc {
			return -c
		}
		return c
	})
	return out
}

func comparator(field SortField) func(a, b User) int {
	switch field {
	case SortByID:
		return func(a, b User) int { return cmp.Compare(a.ID, b.ID) }
	case SortByName:
		return func(a, b User) int { return cmp.Compare(a.Name, b.Name) }
	case SortByEmail:
		return func(a, b User) int { return cmp.Compare(a.Email, b.Email) }
	case SortByGender:
		return func(a, b User) int { return cmp.Compare(a.Gender, b.Gender) }
	case SortByStatus:
		return func(a, b User) int { return cmp.Compare(a.Status, b.Status) }
	default:
		return nil
	}
}

// Paginate clamps page into [1, TotalPages] and slices out that page.
// A non-positive perPage yields everything as a single page.
func Paginate(list []User, page, perPage int) PageResult {
	if perPage <= 0 {
		return PageResult{Items: slices.Clone(list), Page: 1, TotalPages: 1}
	}

	totalPages := max(1, (len(list)+perPage-1)/perPage)
	page = max(1, min(page, totalPages))

	start := min((page-1)*perPage, len(list))
	end := min(start+perPage, len(list))

	return PageResult{
		Items:      slices.Clone(list[start:end]),
		Page:       page,
		TotalPages: totalPages,
	}
}

// Process runs search, filter, sort and paginate in that order, skipping
// the inactive stages.
func Process(list []User, q ListQuery) ListResult {
	return paginateResult(arrange(list, q), q)
}

// arrange is every stage but pagination.
func arrange(list []User, q ListQuery) []User {
	out := list
	if strings.TrimSpace(q.Query) != "" {
		out = Search(out, q.Query)
	}
	if q.Criteria.Active() {
		out = Filter(out, q.Criteria)
	}
	if q.SortField != "" {
		out = Sort(out, q.SortField, q.SortOrder)
	}
	return out
}

func paginateResult(arranged []User, q ListQuery) ListResult {
	page := Paginate(arranged, q.Page, q.PerPage)
	return ListResult{
		Items:        page.Items,
		Page:         page.Page,
		TotalPages:   page.TotalPages,
		TotalResults: len(arranged),
	}
}

package users

// SyncState records whether the stored page still belongs to the current
// query and filters.
type SyncState string

const (
	// Synced: Page was chosen under the current query and filters.
	Synced SyncState = "synced"
	// Stale: query or filters changed since Page was chosen; render page 1.
	Stale SyncState = "stale"
)

const DefaultPage = 1

// ViewState is an operator's transient search, filter, sort and page state.
type ViewState struct {
	Query     string    `json:"query"`
	Gender    Gender    `json:"gender,omitempty"`
	Status    Status    `json:"status,omitempty"`
	SortField SortField `json:"sort_field,omitempty"`
	SortOrder SortOrder `json:"sort_order"`
	Page      int       `json:"page"`
	Sync      SyncState `json:"sync"`
}

func NewViewState() ViewState {
	return ViewState{
		SortOrder: SortAsc,
		Page:      DefaultPage,
		Sync:      Synced,
	}
}

func (v *ViewState) SetQuery(q string) {
	v.Query = q
	v.Sync = Stale
}

func (v *ViewState) SetGender(g Gender) {
	v.Gender = g
	v.Sync = Stale
}

func (v *ViewState) SetStatus(s Status) {
	v.Status = s
	v.Sync = Stale
}

// SetPage records an explicit page change and re-synchronizes the view.
func (v *ViewState) SetPage(p int) {
	v.Page = p
	v.Sync = Synced
}

// SetSort leaves pagination untouched.
func (v *ViewState) SetSort(field SortField, order SortOrder) {
	v.SortField = field
	if order == "" {
		order = SortAsc
	}
	v.SortOrder = order
}

// ToggleSort flips the order when field is already the sort key, otherwise
// sorts by field ascending.
func (v *ViewState) ToggleSort(field SortField) {
	if v.SortField == field {
		if v.SortOrder == SortAsc {
			v.SortOrder = SortDesc
		} else {
			v.SortOrder = SortAsc
		}
		return
	}
	v.SortField = field
	v.SortOrder = SortAsc
}

func (v *ViewState) Reset() {
	*v = NewViewState()
}

// EffectivePage is the page used for slicing after reconciliation.
func (v ViewState) EffectivePage() int {
	if v.Sync != Synced {
		return DefaultPage
	}
	if v.Page < 1 {
		return DefaultPage
	}
	return v.Page
}

func (v ViewState) Filtered() bool {
	return v.Query != "" || v.Gender != "" || v.Status != ""
}

func (v ViewState) ListQuery(perPage int) ListQuery {
	return ListQuery{
		Query:     v.Query,
		Criteria:  Criteria{Gender: v.Gender, Status: v.Status},
		SortField: v.SortField,
		SortOrder: v.SortOrder,
		Page:      v.EffectivePage(),
		PerPage:   perPage,
	}
}

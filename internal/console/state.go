package console

import (
	"strconv"
	"strings"
	"sync"

	dispatchsdk "dispatchline/sdk/go"
)

const (
	StatusAll      = "all"
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// StatusFilters lists the accepted values of the status filter, in display order.
var StatusFilters = []string{StatusAll, StatusPending, StatusAccepted, StatusDeclined}

func validStatusFilter(s string) bool {
	for _, v := range StatusFilters {
		if v == s {
			return true
		}
	}
	return false
}

// Filter is the shared call-board filter state.
type Filter struct {
	Search      string `json:"search"`
	Status      string `json:"status"`
	ShowFilters bool   `json:"show_filters"`
}

// FilterStore holds Filter and notifies observers on every change.
type FilterStore struct {
	mu        sync.RWMutex
	state     Filter
	observers observers[Filter]
}

func NewFilterStore() *FilterStore {
	return &FilterStore{state: Filter{Status: StatusAll}}
}

func (s *FilterStore) Get() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *FilterStore) SetSearch(text string) {
	s.update(func(f *Filter) { f.Search = text })
}

func (s *FilterStore) SetStatus(status string) {
	s.update(func(f *Filter) { f.Status = status })
}

func (s *FilterStore) SetShowFilters(show bool) {
	s.update(func(f *Filter) { f.ShowFilters = show })
}

func (s *FilterStore) Subscribe(fn func(Filter)) func() {
	return s.observers.add(fn)
}

func (s *FilterStore) update(fn func(*Filter)) {
	s.mu.Lock()
	fn(&s.state)
	next := s.state
	s.mu.Unlock()
	s.observers.notify(next)
}

// CallStore holds the loaded calls and the selected call.
type CallStore struct {
	mu        sync.RWMutex
	calls     []dispatchsdk.Call
	selected  *dispatchsdk.Call
	observers observers[[]dispatchsdk.Call]
}

func NewCallStore() *CallStore {
	return &CallStore{}
}

// Calls returns a copy of the loaded calls.
func (s *CallStore) Calls() []dispatchsdk.Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dispatchsdk.Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *CallStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

func (s *CallStore) SetCalls(calls []dispatchsdk.Call) {
	s.mu.Lock()
	s.calls = append([]dispatchsdk.Call(nil), calls...)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.observers.notify(snapshot)
}

// Merge overlays update onto the loaded call with the same id. It reports
// false, leaving the store untouched, when no such call is loaded.
func (s *CallStore) Merge(update dispatchsdk.Call) bool {
	s.mu.Lock()
	idx := s.indexLocked(update.ID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.calls[idx] = s.calls[idx].Merge(update)
	if s.selected != nil && s.selected.ID == update.ID {
		merged := s.calls[idx]
		s.selected = &merged
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.observers.notify(snapshot)
	return true
}

// Apply folds a pushed call into the store: ended calls are removed,
// known calls merged and new calls appended.
func (s *CallStore) Apply(update dispatchsdk.Call) {
	if update.ID == "" {
		return
	}
	s.mu.Lock()
	idx := s.indexLocked(update.ID)
	switch {
	case update.Ended && idx >= 0:
		s.calls = append(s.calls[:idx:idx], s.calls[idx+1:]...)
		if s.selected != nil && s.selected.ID == update.ID {
			s.selected = nil
		}
	case update.Ended:
		s.mu.Unlock()
		return
	case idx >= 0:
		s.calls[idx] = s.calls[idx].Merge(update)
		if s.selected != nil && s.selected.ID == update.ID {
			merged := s.calls[idx]
			s.selected = &merged
		}
	default:
		s.calls = append(s.calls, update)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.observers.notify(snapshot)
}

// FindByCase returns the loaded call whose case number equals caseNumber
// after normalization.
func (s *CallStore) FindByCase(caseNumber string) (dispatchsdk.Call, bool) {
	normalized := NormalizeCaseNumber(caseNumber)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.calls {
		if strconv.FormatInt(c.CaseNumber, 10) == normalized {
			return c, true
		}
	}
	return dispatchsdk.Call{}, false
}

func (s *CallStore) Selected() (dispatchsdk.Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return dispatchsdk.Call{}, false
	}
	return *s.selected, true
}

func (s *CallStore) SetSelected(c *dispatchsdk.Call) {
	s.mu.Lock()
	if c == nil {
		s.selected = nil
	} else {
		cp := *c
		s.selected = &cp
	}
	s.mu.Unlock()
}

// Visible returns the calls the board shows for f. Boards other than
// dispatch only show accepted calls.
func (s *CallStore) Visible(f Filter, isDispatch bool) []dispatchsdk.Call {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := []dispatchsdk.Call{}
	for _, c := range s.Calls() {
		if !isDispatch && c.Status != StatusAccepted {
			continue
		}
		if f.Status != "" && f.Status != StatusAll && c.Status != f.Status {
			continue
		}
		if search != "" && !callMatches(c, search) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *CallStore) Subscribe(fn func([]dispatchsdk.Call)) func() {
	return s.observers.add(fn)
}

func (s *CallStore) indexLocked(id string) int {
	for i, c := range s.calls {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *CallStore) snapshotLocked() []dispatchsdk.Call {
	out := make([]dispatchsdk.Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func callMatches(c dispatchsdk.Call, needle string) bool {
	if strings.Contains(strconv.FormatInt(c.CaseNumber, 10), NormalizeCaseNumber(needle)) {
		return true
	}
	for _, field := range []string{c.Name, c.Location, c.Postal, c.Description} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

type ModalID string

const (
	ModalNotepad           ModalID = "notepad"
	ModalNameSearch        ModalID = "name-search"
	ModalVehicleSearch     ModalID = "vehicle-search"
	ModalWeaponSearch      ModalID = "weapon-search"
	ModalAddressSearch     ModalID = "address-search"
	ModalCustomFieldSearch ModalID = "custom-field-search"
	ModalManage911Call     ModalID = "manage-911-call"
)

// ModalEvent reports a modal opening or closing.
type ModalEvent struct {
	ID      ModalID
	Open    bool
	Payload any
}

// ModalStore tracks which modals are open.
type ModalStore struct {
	mu        sync.RWMutex
	open      map[ModalID]any
	observers observers[ModalEvent]
}

func NewModalStore() *ModalStore {
	return &ModalStore{open: map[ModalID]any{}}
}

func (s *ModalStore) Open(id ModalID, payload any) {
	s.mu.Lock()
	s.open[id] = payload
	s.mu.Unlock()
	s.observers.notify(ModalEvent{ID: id, Open: true, Payload: payload})
}

func (s *ModalStore) Close(id ModalID) {
	s.mu.Lock()
	_, was := s.open[id]
	delete(s.open, id)
	s.mu.Unlock()
	if was {
		s.observers.notify(ModalEvent{ID: id})
	}
}

func (s *ModalStore) IsOpen(id ModalID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.open[id]
	return ok
}

// Payload returns the value the modal was opened with.
func (s *ModalStore) Payload(id ModalID) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.open[id]
	return p, ok
}

func (s *ModalStore) Subscribe(fn func(ModalEvent)) func() {
	return s.observers.add(fn)
}

// UnitStore holds the officer and deputy the user is operating as.
type UnitStore struct {
	mu            sync.RWMutex
	activeOfficer *dispatchsdk.Unit
	activeDeputy  *dispatchsdk.Unit
}

func NewUnitStore() *UnitStore {
	return &UnitStore{}
}

func (s *UnitStore) SetActiveOfficer(u *dispatchsdk.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeOfficer = copyUnit(u)
}

func (s *UnitStore) SetActiveDeputy(u *dispatchsdk.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeDeputy = copyUnit(u)
}

func (s *UnitStore) ActiveOfficer() (dispatchsdk.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeOfficer == nil {
		return dispatchsdk.Unit{}, false
	}
	return *s.activeOfficer, true
}

func (s *UnitStore) ActiveDeputy() (dispatchsdk.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeDeputy == nil {
		return dispatchsdk.Unit{}, false
	}
	return *s.activeDeputy, true
}

func copyUnit(u *dispatchsdk.Unit) *dispatchsdk.Unit {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

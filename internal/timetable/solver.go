package timetable

import (
	"context"
	"sort"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type cell struct {
	subject int
	teacher int
}

var emptyCell = cell{subject: -1, teacher: -1}

// solverState is the mutable grid of one solver run. It is threaded through
// the search by value (clone) so a saved state never aliases live data.
type solverState struct {
	cells  []cell
	counts []int
	daily  [][]int
	busy   [][][]bool
}

func newSolverState(slots, days int, subjects []Subject) solverState {
	st := solverState{
		cells:  make([]cell, slots),
		counts: make([]int, len(subjects)),
		daily:  make([][]int, days),
		busy:   make([][][]bool, days),
	}
	for i := range st.cells {
		st.cells[i] = emptyCell
	}
	for day := 0; day < days; day++ {
		st.daily[day] = make([]int, len(subjects))
		st.busy[day] = make([][]bool, len(subjects))
		for _, subject := range subjects {
			st.busy[day][subject.Index] = make([]bool, subject.Teachers)
		}
	}
	return st
}

func (st solverState) clone() solverState {
	out := solverState{
		cells:  append([]cell(nil), st.cells...),
		counts: append([]int(nil), st.counts...),
		daily:  make([][]int, len(st.daily)),
		busy:   make([][][]bool, len(st.busy)),
	}
	for day := range st.daily {
		out.daily[day] = append([]int(nil), st.daily[day]...)
		out.busy[day] = make([][]bool, len(st.busy[day]))
		for subject := range st.busy[day] {
			out.busy[day][subject] = append([]bool(nil), st.busy[day][subject]...)
		}
	}
	return out
}

func (st *solverState) place(idx int, slot Slot, c candidate) {
	st.cells[idx] = cell{subject: c.subject, teacher: c.teacher}
	st.counts[c.subject]++
	st.daily[slot.Day][c.subject]++
	st.busy[slot.Day][c.subject][c.teacher] = true
}

func (st *solverState) release(idx int, slot Slot) {
	current := st.cells[idx]
	if current.subject < 0 {
		return
	}
	st.counts[current.subject]--
	st.daily[slot.Day][current.subject]--
	st.busy[slot.Day][current.subject][current.teacher] = false
	st.cells[idx] = emptyCell
}

type candidate struct {
	subject   int
	teacher   int
	preferred bool
}

type frame struct {
	cands []candidate
	next  int
}

type solver struct {
	ctx       context.Context
	registry  *Registry
	subjects  []Subject
	slots     []Slot
	slotIndex map[Slot]int
	days      int
	budget    int

	state      solverState
	backtracks int
	unfilled   []Slot
}

func newSolver(ctx context.Context, registry *Registry, subjects []Subject, days []Day, periods []Period, budget int) *solver {
	slots := make([]Slot, 0, len(periods)*len(days))
	for _, period := range periods {
		if period.IsBreak() {
			continue
		}
		for _, day := range days {
			slots = append(slots, Slot{Period: period.Index, Day: day.Index})
		}
	}
	slotIndex := make(map[Slot]int, len(slots))
	for i, slot := range slots {
		slotIndex[slot] = i
	}
	if budget <= 0 {
		budget = len(slots) * len(subjects)
	}
	return &solver{
		ctx:       ctx,
		registry:  registry,
		subjects:  subjects,
		slots:     slots,
		slotIndex: slotIndex,
		days:      len(days),
		budget:    budget,
		state:     newSolverState(len(slots), len(days), subjects),
	}
}

// feasible reports whether any subject with teachers has at least one
// teaching slot it is not forbidden from.
func (s *solver) feasible() bool {
	for _, subject := range s.subjects {
		if !subject.Schedulable() {
			continue
		}
		for _, slot := range s.slots {
			if !s.registry.IsForbidden(subject.Index, slot.Day, slot.Period) {
				return true
			}
		}
	}
	return false
}

// run fills the teaching slots in row-major order. A slot with no candidate
// triggers a search confined to its day column, since teacher availability
// never crosses days. When the budget runs out the column is rolled back to
// the state first seen at the dead end and the slot is left empty.
func (s *solver) run() error {
	frames := make([]frame, len(s.slots))
	floors := make([]int, s.days)

	for i := 0; i < len(s.slots); i++ {
		if err := s.ctx.Err(); err != nil {
			return cancelled(err)
		}

		frames[i] = frame{cands: s.rank(i)}
		if len(frames[i].cands) > 0 {
			s.state.place(i, s.slots[i], frames[i].cands[0])
			frames[i].next = 1
			continue
		}

		ok, err := s.repairColumn(i, frames, floors[s.slots[i].Day])
		if err != nil {
			return err
		}
		if !ok {
			s.unfilled = append(s.unfilled, s.slots[i])
			floors[s.slots[i].Day] = i + 1
		}
	}
	return nil
}

// repairColumn backtracks through the earlier slots of dead's day column,
// never below floor, until dead receives a candidate. Slots of other days
// keep their placements. On failure the state is restored and false is
// returned.
func (s *solver) repairColumn(dead int, frames []frame, floor int) (bool, error) {
	saved := s.state.clone()
	k := dead
	for {
		if err := s.ctx.Err(); err != nil {
			return false, cancelled(err)
		}

		f := &frames[k]
		if f.next < len(f.cands) {
			s.state.place(k, s.slots[k], f.cands[f.next])
			f.next++
			if k == dead {
				return true, nil
			}
			k += s.days
			frames[k] = frame{cands: s.rank(k)}
			continue
		}

		if s.budget <= 0 || k-s.days < floor {
			s.state = saved
			return false, nil
		}
		s.budget--
		s.backtracks++
		k -= s.days
		s.state.release(k, s.slots[k])
	}
}

func cancelled(err error) error {
	return appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, appErrors.ErrCancelled.Message)
}

// rank orders the feasible candidates for slot i: the pinned preference
// first, then the largest deficit against target, then fewer occurrences on
// the same day, then input order.
func (s *solver) rank(i int) []candidate {
	slot := s.slots[i]
	pref, hasPref := s.registry.Preferred(slot)

	cands := make([]candidate, 0, len(s.subjects))
	for _, subject := range s.subjects {
		if !subject.Schedulable() {
			continue
		}
		if s.registry.IsForbidden(subject.Index, slot.Day, slot.Period) {
			continue
		}
		if hasPref && pref.Subject == subject.Index && !s.state.busy[slot.Day][subject.Index][pref.Teacher] {
			cands = append(cands, candidate{subject: subject.Index, teacher: pref.Teacher, preferred: true})
			continue
		}
		teacher := s.freeTeacher(i, subject)
		if teacher < 0 {
			continue
		}
		cands = append(cands, candidate{subject: subject.Index, teacher: teacher})
	}

	sort.SliceStable(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.preferred != cb.preferred {
			return ca.preferred
		}
		da := s.subjects[ca.subject].Target - s.state.counts[ca.subject]
		db := s.subjects[cb.subject].Target - s.state.counts[cb.subject]
		if da != db {
			return da > db
		}
		ta := s.state.daily[slot.Day][ca.subject]
		tb := s.state.daily[slot.Day][cb.subject]
		if ta != tb {
			return ta < tb
		}
		return ca.subject < cb.subject
	})
	return cands
}

// freeTeacher returns the lowest teacher index of subject that is neither
// busy on the slot's day nor held for a later preferred slot that day.
func (s *solver) freeTeacher(i int, subject Subject) int {
	slot := s.slots[i]
	var reserved map[int]bool
	for _, pref := range s.registry.PreferredOnDay(slot.Day) {
		if pref.Subject != subject.Index || s.slotIndex[pref.Slot] <= i {
			continue
		}
		if reserved == nil {
			reserved = make(map[int]bool)
		}
		reserved[pref.Teacher] = true
	}
	busy := s.state.busy[slot.Day][subject.Index]
	for teacher := 0; teacher < subject.Teachers; teacher++ {
		if busy[teacher] || reserved[teacher] {
			continue
		}
		return teacher
	}
	return -1
}

// assignments maps the solved cells back onto slots.
func (s *solver) assignments() map[Slot]cell {
	out := make(map[Slot]cell, len(s.slots))
	for i, slot := range s.slots {
		out[slot] = s.state.cells[i]
	}
	return out
}

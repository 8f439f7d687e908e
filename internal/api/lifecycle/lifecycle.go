// Package lifecycle decides job stage transitions.
//
// Next and Override never touch storage. They return a Transition that
// describes both the mutation and the WHERE guards the store must re-check in
// a single conditional update, so a transition planned from a stale read
// fails as a conflict instead of overwriting a concurrent change.
package lifecycle

import (
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
)

// Event is a requested lifecycle change
type Event string

const (
	EventReserve  Event = "reserve"
	EventAdvance  Event = "advance"
	EventCancel   Event = "cancel"
	EventOverride Event = "override"
)

// Valid reports whether e names a transition event
func (e Event) Valid() bool {
	switch e {
	case EventReserve, EventAdvance, EventCancel, EventOverride:
		return true
	}
	return false
}

// Snapshot is the part of a job the state machine reads
type Snapshot struct {
	Stage       domain.Stage
	AssignedTo  *int64
	FollowUp    bool
	DropoffDate *time.Time
}

// AssignEffect says what a transition does to assigned_to
type AssignEffect int

const (
	AssignKeep AssignEffect = iota
	AssignSet
	AssignClear
)

// Guard holds the row conditions, beyond stage = From, that must still hold
// when the update is applied.
type Guard struct {
	// AssigneeIs restricts the update to rows assigned to this user
	AssigneeIs *int64
	// OrUnassigned widens AssigneeIs to rows with no assignee
	OrUnassigned bool
	// Unassigned restricts the update to rows with no assignee
	Unassigned bool
}

// Transition is a planned compare-and-swap on a job row
type Transition struct {
	Event Event
	From  domain.Stage
	To    domain.Stage

	Assign       AssignEffect
	Assignee     int64
	FlagFollowUp bool
	StampDropoff bool
	ClearDropoff bool

	Guard Guard
}

type edge struct {
	from  domain.Stage
	event Event
}

var edges = map[edge]domain.Stage{
	{domain.StageAvailable, EventReserve}:  domain.StageReserved,
	{domain.StageReserved, EventAdvance}:   domain.StageInDelivery,
	{domain.StageInDelivery, EventAdvance}: domain.StageCompleted,
	{domain.StageReserved, EventCancel}:    domain.StageAvailable,
	{domain.StageInDelivery, EventCancel}:  domain.StageCancelledInDelivery,
}

// Next plans the transition for event ev requested by actor on a job in
// state s. An event undefined for the current stage is a conflict; a defined
// event the actor may not perform is forbidden.
func Next(s Snapshot, actor domain.Identity, ev Event) (Transition, error) {
	to, ok := edges[edge{s.Stage, ev}]
	if !ok {
		return Transition{}, domain.Conflict("cannot %s a job that is %s", ev, s.Stage)
	}

	tr := Transition{Event: ev, From: s.Stage, To: to}
	self := actor.UserID

	switch ev {
	case EventReserve:
		if actor.Role != domain.RoleVolunteer {
			return Transition{}, domain.Forbidden("only volunteers can reserve jobs")
		}
		if s.AssignedTo != nil && *s.AssignedTo != self {
			return Transition{}, domain.Forbidden("job is assigned to another volunteer")
		}
		tr.Assign = AssignSet
		tr.Assignee = self
		tr.Guard = Guard{AssigneeIs: &self, OrUnassigned: true}

	case EventAdvance:
		if actor.Role != domain.RoleVolunteer || !assignedTo(s, self) {
			return Transition{}, domain.ErrNotAssignee
		}
		tr.Guard = Guard{AssigneeIs: &self}
		tr.StampDropoff = to == domain.StageCompleted

	case EventCancel:
		if !actor.IsAdmin() {
			if !assignedTo(s, self) {
				return Transition{}, domain.ErrNotAssignee
			}
			tr.Guard = Guard{AssigneeIs: &self}
		}
		switch to {
		case domain.StageAvailable:
			tr.Assign = AssignClear
		case domain.StageCancelledInDelivery:
			tr.FlagFollowUp = true
		}
	}

	return tr, nil
}

// AssigneeChange is the assigned_to part of an admin edit
type AssigneeChange struct {
	Effect AssignEffect
	UserID int64
}

// Override plans an admin edit that may change stage and assignee directly.
// It skips the event table but keeps the stage invariants. Reserved and
// in_delivery always need an assignee, as does moving a job into completed or
// cancelled_in_delivery. Entering completed stamps the drop-off time, leaving
// it clears the drop-off time, and entering cancelled_in_delivery raises the
// follow-up flag. The update is guarded on both the stage and the assignee
// that were read.
func Override(s Snapshot, target domain.Stage, change AssigneeChange) (Transition, error) {
	if !target.Valid() {
		return Transition{}, domain.Validation("unknown progress_stage %q", target)
	}

	assignee := s.AssignedTo
	switch change.Effect {
	case AssignSet:
		id := change.UserID
		assignee = &id
	case AssignClear:
		assignee = nil
	}

	changed := target != s.Stage
	if assignee == nil && (target.RequiresAssignee() || (changed && target.AfterPickup())) {
		return Transition{}, domain.Validation("progress_stage %s requires an assignee", target)
	}

	guard := Guard{Unassigned: true}
	if s.AssignedTo != nil {
		id := *s.AssignedTo
		guard = Guard{AssigneeIs: &id}
	}

	return Transition{
		Event:        EventOverride,
		From:         s.Stage,
		To:           target,
		Assign:       change.Effect,
		Assignee:     change.UserID,
		FlagFollowUp: changed && target == domain.StageCancelledInDelivery,
		StampDropoff: changed && target == domain.StageCompleted,
		ClearDropoff: changed && s.Stage == domain.StageCompleted,
		Guard:        guard,
	}, nil
}

// Matches reports whether the guarded update would hit a row in state s
func (t Transition) Matches(s Snapshot) bool {
	if s.Stage != t.From {
		return false
	}
	g := t.Guard
	switch {
	case g.Unassigned:
		return s.AssignedTo == nil
	case g.AssigneeIs == nil:
		return true
	case s.AssignedTo == nil:
		return g.OrUnassigned
	}
	return *s.AssignedTo == *g.AssigneeIs
}

// Apply returns the state after the transition, without checking the guard
func (t Transition) Apply(s Snapshot, now time.Time) Snapshot {
	next := s
	next.Stage = t.To

	switch t.Assign {
	case AssignSet:
		id := t.Assignee
		next.AssignedTo = &id
	case AssignClear:
		next.AssignedTo = nil
	}
	if t.FlagFollowUp {
		next.FollowUp = true
	}
	if t.StampDropoff {
		ts := now
		next.DropoffDate = &ts
	}
	if t.ClearDropoff {
		next.DropoffDate = nil
	}
	return next
}

// StageChanged reports whether the transition moves the job to another stage
func (t Transition) StageChanged() bool {
	return t.From != t.To
}

func assignedTo(s Snapshot, userID int64) bool {
	return s.AssignedTo != nil && *s.AssignedTo == userID
}

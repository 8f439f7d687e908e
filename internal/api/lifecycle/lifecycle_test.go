package lifecycle

import (
	"fmt"
	"testing"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

var (
	admin      = domain.Identity{UserID: 1, Role: domain.RoleAdmin}
	volunteerA = domain.Identity{UserID: 10, Role: domain.RoleVolunteer}
	volunteerB = domain.Identity{UserID: 20, Role: domain.RoleVolunteer}
)

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Snapshot
		actor    domain.Identity
		event    Event
		wantKind domain.Kind
		wantTo   domain.Stage
		check    func(t *testing.T, tr Transition)
	}{
		{
			name:     "volunteer reserves unassigned available job",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			actor:    volunteerA,
			event:    EventReserve,
			wantTo:   domain.StageReserved,
			check: func(t *testing.T, tr Transition) {
				assert.Equal(t, AssignSet, tr.Assign)
				assert.Equal(t, int64(10), tr.Assignee)
				require.NotNil(t, tr.Guard.AssigneeIs)
				assert.Equal(t, int64(10), *tr.Guard.AssigneeIs)
				assert.True(t, tr.Guard.OrUnassigned)
			},
		},
		{
			name:     "volunteer reserves job already self-assigned",
			snapshot: Snapshot{Stage: domain.StageAvailable, AssignedTo: ptr(10)},
			actor:    volunteerA,
			event:    EventReserve,
			wantTo:   domain.StageReserved,
		},
		{
			name:     "reserve of job assigned to someone else is forbidden",
			snapshot: Snapshot{Stage: domain.StageAvailable, AssignedTo: ptr(20)},
			actor:    volunteerA,
			event:    EventReserve,
			wantKind: domain.KindForbidden,
		},
		{
			name:     "admin cannot reserve",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			actor:    admin,
			event:    EventReserve,
			wantKind: domain.KindForbidden,
		},
		{
			name:     "reserve of reserved job conflicts",
			snapshot: Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)},
			actor:    volunteerB,
			event:    EventReserve,
			wantKind: domain.KindConflict,
		},
		{
			name:     "reserve of completed job conflicts",
			snapshot: Snapshot{Stage: domain.StageCompleted, AssignedTo: ptr(10)},
			actor:    volunteerA,
			event:    EventReserve,
			wantKind: domain.KindConflict,
		},
		{
			name:     "assignee advances reserved to in_delivery",
			snapshot: Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)},
			actor:    volunteerA,
			event:    EventAdvance,
			wantTo:   domain.StageInDelivery,
			check: func(t *testing.T, tr Transition) {
				assert.False(t, tr.StampDropoff)
				assert.Equal(t, AssignKeep, tr.Assign)
				assert.False(t, tr.Guard.OrUnassigned)
			},
		},
		{
			name:     "assignee advances in_delivery to completed",
			snapshot: Snapshot{Stage: domain.StageInDelivery, AssignedTo: ptr(10)},
			actor:    volunteerA,
			event:    EventAdvance,
			wantTo:   domain.StageCompleted,
			check: func(t *testing.T, tr Transition) {
				assert.True(t, tr.StampDropoff)
			},
		},
		{
			name:     "non-assignee cannot advance",
			snapshot: Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)},
			actor:    volunteerB,
			event:    EventAdvance,
			wantKind: domain.KindForbidden,
		},
		{
			name:     "admin cannot advance",
			snapshot: Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)},
			actor:    admin,
			event:    EventAdvance,
			wantKind: domain.KindForbidden,
		},
		{
			name:     "advance of available job conflicts",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			actor:    volunteerA,
			event:    EventAdvance,
			wantKind: domain.KindConflict,
		},
		{
			name:     "advance of completed job conflicts",
			snapshot: Snapshot{Stage: domain.StageCompleted, AssignedTo: ptr(10)},
			actor:    volunteerA,
			event:    EventAdvance,
			wantKind: domain.KindConflict,
		},
		{
			name:     "assignee cancels reserved job",
			snapshot: Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)},
			actor:    volunteerA,
			event:    EventCancel,
			wantTo:   domain.StageAvailable,
			check: func(t *testing.T, tr Transition) {
				assert.Equal(t, AssignClear, tr.Assign)
				assert.False(t, tr.FlagFollowUp)
				require.NotNil(t, tr.Guard.AssigneeIs)
			},
		},
		{
			name:     "admin cancels in_delivery job",
			snapshot: Snapshot{Stage: domain.StageInDelivery, AssignedTo: ptr(10)},
			actor:    admin,
			event:    EventCancel,
			wantTo:   domain.StageCancelledInDelivery,
			check: func(t *testing.T, tr Transition) {
				assert.True(t, tr.FlagFollowUp)
				assert.Equal(t, AssignKeep, tr.Assign)
				assert.Nil(t, tr.Guard.AssigneeIs)
			},
		},
		{
			name:     "non-assignee volunteer cannot cancel",
			snapshot: Snapshot{Stage: domain.StageInDelivery, AssignedTo: ptr(10)},
			actor:    volunteerB,
			event:    EventCancel,
			wantKind: domain.KindForbidden,
		},
		{
			name:     "cancel of available job conflicts",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			actor:    admin,
			event:    EventCancel,
			wantKind: domain.KindConflict,
		},
		{
			name:     "cancel of cancelled job conflicts",
			snapshot: Snapshot{Stage: domain.StageCancelledInDelivery, AssignedTo: ptr(10)},
			actor:    admin,
			event:    EventCancel,
			wantKind: domain.KindConflict,
		},
		{
			name:     "override is not an event for Next",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			actor:    admin,
			event:    EventOverride,
			wantKind: domain.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Next(tt.snapshot, tt.actor, tt.event)

			if tt.wantKind != domain.KindInternal {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, domain.KindOf(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.event, tr.Event)
			assert.Equal(t, tt.snapshot.Stage, tr.From)
			assert.Equal(t, tt.wantTo, tr.To)
			assert.True(t, tr.Matches(tt.snapshot), "planned transition must match the state it was planned from")
			if tt.check != nil {
				tt.check(t, tr)
			}
		})
	}
}

func TestTransition_Matches(t *testing.T) {
	reserve, err := Next(Snapshot{Stage: domain.StageAvailable}, volunteerA, EventReserve)
	require.NoError(t, err)

	assert.True(t, reserve.Matches(Snapshot{Stage: domain.StageAvailable}))
	assert.True(t, reserve.Matches(Snapshot{Stage: domain.StageAvailable, AssignedTo: ptr(10)}))
	assert.False(t, reserve.Matches(Snapshot{Stage: domain.StageAvailable, AssignedTo: ptr(20)}))
	assert.False(t, reserve.Matches(Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)}))

	advance, err := Next(Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)}, volunteerA, EventAdvance)
	require.NoError(t, err)

	assert.False(t, advance.Matches(Snapshot{Stage: domain.StageReserved}))
	assert.False(t, advance.Matches(Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(20)}))
	assert.False(t, advance.Matches(Snapshot{Stage: domain.StageInDelivery, AssignedTo: ptr(10)}))
}

// Job #7 from available through an admin cancellation mid-delivery.
func TestScenario_ReserveRaceThenAdminCancel(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job := Snapshot{Stage: domain.StageAvailable}

	tr, err := Next(job, volunteerA, EventReserve)
	require.NoError(t, err)
	job = tr.Apply(job, now)
	assert.Equal(t, domain.StageReserved, job.Stage)
	require.NotNil(t, job.AssignedTo)
	assert.Equal(t, int64(10), *job.AssignedTo)

	_, err = Next(job, volunteerB, EventReserve)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	tr, err = Next(job, volunteerA, EventAdvance)
	require.NoError(t, err)
	job = tr.Apply(job, now)
	assert.Equal(t, domain.StageInDelivery, job.Stage)

	tr, err = Next(job, admin, EventCancel)
	require.NoError(t, err)
	job = tr.Apply(job, now)
	assert.Equal(t, domain.StageCancelledInDelivery, job.Stage)
	assert.True(t, job.FollowUp)
	require.NotNil(t, job.AssignedTo)
	assert.Equal(t, int64(10), *job.AssignedTo)
}

// Job #9 from reserved to completed.
func TestScenario_AdvanceToCompletion(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job := Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)}

	tr, err := Next(job, volunteerA, EventAdvance)
	require.NoError(t, err)
	job = tr.Apply(job, now)
	assert.Equal(t, domain.StageInDelivery, job.Stage)
	assert.Nil(t, job.DropoffDate)

	tr, err = Next(job, volunteerA, EventAdvance)
	require.NoError(t, err)
	job = tr.Apply(job, now)
	assert.Equal(t, domain.StageCompleted, job.Stage)
	require.NotNil(t, job.DropoffDate)
	assert.Equal(t, now, *job.DropoffDate)
}

func TestCancelReservedClearsAssignee(t *testing.T) {
	job := Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)}

	tr, err := Next(job, volunteerA, EventCancel)
	require.NoError(t, err)
	job = tr.Apply(job, time.Now())

	assert.Equal(t, domain.StageAvailable, job.Stage)
	assert.Nil(t, job.AssignedTo)
	assert.False(t, job.FollowUp)
}

// Every reachable state keeps an assignee while reserved or in delivery.
func TestAssigneeInvariantHoldsAcrossAllTransitions(t *testing.T) {
	actors := []domain.Identity{admin, volunteerA, volunteerB}
	events := []Event{EventReserve, EventAdvance, EventCancel}

	seen := map[string]bool{}
	queue := []Snapshot{{Stage: domain.StageAvailable}, {Stage: domain.StageAvailable, AssignedTo: ptr(20)}}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		key := string(s.Stage)
		if s.AssignedTo != nil {
			key = fmt.Sprintf("%s/%d", s.Stage, *s.AssignedTo)
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if s.Stage.RequiresAssignee() {
			require.NotNil(t, s.AssignedTo, "stage %s without assignee", s.Stage)
		}

		for _, a := range actors {
			for _, ev := range events {
				tr, err := Next(s, a, ev)
				if err != nil {
					continue
				}
				queue = append(queue, tr.Apply(s, time.Now()))
			}
		}
	}

	assert.True(t, seen["completed/10"])
}

func TestOverride(t *testing.T) {
	dropped := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		snapshot Snapshot
		target   domain.Stage
		change   AssigneeChange
		wantKind domain.Kind
		check    func(t *testing.T, tr Transition)
	}{
		{
			name:     "unknown stage",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			target:   domain.Stage("lost"),
			wantKind: domain.KindValidation,
		},
		{
			name:     "completed without assignee is rejected",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			target:   domain.StageCompleted,
			wantKind: domain.KindValidation,
		},
		{
			name:     "cancelled_in_delivery without assignee is rejected",
			snapshot: Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)},
			target:   domain.StageCancelledInDelivery,
			change:   AssigneeChange{Effect: AssignClear},
			wantKind: domain.KindValidation,
		},
		{
			name:     "completed with assignee stamps drop-off",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			target:   domain.StageCompleted,
			change:   AssigneeChange{Effect: AssignSet, UserID: 10},
			check: func(t *testing.T, tr Transition) {
				assert.True(t, tr.StampDropoff)
				assert.False(t, tr.FlagFollowUp)
			},
		},
		{
			name:     "editing a completed job may clear its assignee",
			snapshot: Snapshot{Stage: domain.StageCompleted, AssignedTo: ptr(10)},
			target:   domain.StageCompleted,
			change:   AssigneeChange{Effect: AssignClear},
			check: func(t *testing.T, tr Transition) {
				assert.False(t, tr.StampDropoff)
			},
		},
		{
			name:     "reserved without assignee is rejected",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			target:   domain.StageReserved,
			wantKind: domain.KindValidation,
		},
		{
			name:     "reserved with new assignee",
			snapshot: Snapshot{Stage: domain.StageAvailable},
			target:   domain.StageReserved,
			change:   AssigneeChange{Effect: AssignSet, UserID: 10},
			check: func(t *testing.T, tr Transition) {
				assert.Equal(t, AssignSet, tr.Assign)
				assert.Equal(t, int64(10), tr.Assignee)
			},
		},
		{
			name:     "clearing assignee of in_delivery job is rejected",
			snapshot: Snapshot{Stage: domain.StageInDelivery, AssignedTo: ptr(10)},
			target:   domain.StageInDelivery,
			change:   AssigneeChange{Effect: AssignClear},
			wantKind: domain.KindValidation,
		},
		{
			name:     "re-triage cancelled job back to available",
			snapshot: Snapshot{Stage: domain.StageCancelledInDelivery, AssignedTo: ptr(10), FollowUp: true},
			target:   domain.StageAvailable,
			change:   AssigneeChange{Effect: AssignClear},
			check: func(t *testing.T, tr Transition) {
				assert.Equal(t, AssignClear, tr.Assign)
				assert.False(t, tr.FlagFollowUp)
				assert.False(t, tr.StampDropoff)
			},
		},
		{
			name:     "entering cancelled_in_delivery flags follow up",
			snapshot: Snapshot{Stage: domain.StageInDelivery, AssignedTo: ptr(10)},
			target:   domain.StageCancelledInDelivery,
			check: func(t *testing.T, tr Transition) {
				assert.True(t, tr.FlagFollowUp)
			},
		},
		{
			name:     "reopening a completed job clears drop-off",
			snapshot: Snapshot{Stage: domain.StageCompleted, AssignedTo: ptr(10), DropoffDate: &dropped},
			target:   domain.StageAvailable,
			change:   AssigneeChange{Effect: AssignClear},
			check: func(t *testing.T, tr Transition) {
				assert.True(t, tr.ClearDropoff)
				assert.Nil(t, tr.Apply(Snapshot{Stage: domain.StageCompleted, AssignedTo: ptr(10), DropoffDate: &dropped}, time.Now()).DropoffDate)
			},
		},
		{
			name:     "same stage does not restamp drop-off",
			snapshot: Snapshot{Stage: domain.StageCompleted, AssignedTo: ptr(10)},
			target:   domain.StageCompleted,
			check: func(t *testing.T, tr Transition) {
				assert.False(t, tr.StampDropoff)
				assert.False(t, tr.StageChanged())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Override(tt.snapshot, tt.target, tt.change)

			if tt.wantKind != domain.KindInternal {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, domain.KindOf(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, EventOverride, tr.Event)
			assert.Equal(t, tt.snapshot.Stage, tr.From)
			assert.Equal(t, tt.target, tr.To)
			assert.True(t, tr.Matches(tt.snapshot))

			after := tr.Apply(tt.snapshot, time.Now())
			if after.Stage.RequiresAssignee() {
				assert.NotNil(t, after.AssignedTo)
			}
			if tt.check != nil {
				tt.check(t, tr)
			}
		})
	}
}

func TestOverride_GuardsOnAssigneeRead(t *testing.T) {
	t.Run("reassigned between read and write", func(t *testing.T) {
		read := Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(10)}
		tr, err := Override(read, domain.StageInDelivery, AssigneeChange{})
		require.NoError(t, err)

		assert.True(t, tr.Matches(read))
		assert.False(t, tr.Matches(Snapshot{Stage: domain.StageReserved, AssignedTo: ptr(20)}))
	})

	t.Run("reserved between read and write", func(t *testing.T) {
		read := Snapshot{Stage: domain.StageAvailable}
		tr, err := Override(read, domain.StageAvailable, AssigneeChange{})
		require.NoError(t, err)

		assert.True(t, tr.Guard.Unassigned)
		assert.True(t, tr.Matches(read))
		assert.False(t, tr.Matches(Snapshot{Stage: domain.StageAvailable, AssignedTo: ptr(20)}))
	})
}

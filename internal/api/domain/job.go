package domain

// Stage is the lifecycle position of a job
type Stage string

const (
	StageAvailable           Stage = "available"
	StageReserved            Stage = "reserved"
	StageInDelivery          Stage = "in_delivery"
	StageCompleted           Stage = "completed"
	StageCancelledInDelivery Stage = "cancelled_in_delivery"
)

// Stages lists every stage in lifecycle order
var Stages = []Stage{
	StageAvailable,
	StageReserved,
	StageInDelivery,
	StageCompleted,
	StageCancelledInDelivery,
}

// Valid reports whether s is a known stage
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// RequiresAssignee reports whether a job in this stage must have an assignee
func (s Stage) RequiresAssignee() bool {
	return s == StageReserved || s == StageInDelivery
}

// AfterPickup reports whether the stage is only reachable once a volunteer
// has collected the job
func (s Stage) AfterPickup() bool {
	return s == StageCompleted || s == StageCancelledInDelivery
}

func (s Stage) String() string {
	return string(s)
}

// Priority is the informational intake urgency of a job
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DateLayout is the wire format for deadline dates
const DateLayout = "2006-01-02"

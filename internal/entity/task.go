package entity

import (
	"fmt"
	"time"
)

// MissionType selects which MissionJournal slot a task's mission routes
// into, mirroring the original client's mission-type classification: a
// player tracks at most one nano mission and one guide mission, plus up
// to MaxWorldMissions ordinary ("normal") missions concurrently.
type MissionType int32

const (
	MissionTypeUnknown MissionType = iota
	MissionTypeGuide
	MissionTypeNano
	MissionTypeNormal
)

// MaxWorldMissions bounds the concurrent normal missions a player can
// run alongside the single nano and guide slots.
const MaxWorldMissions = 4

// numSlots is the total addressable slot count: nano (0), guide (1),
// then the MaxWorldMissions world slots.
const numSlots = 2 + MaxWorldMissions

// EnemyCount is one remaining-kill requirement within a Task (§3).
type EnemyCount struct {
	NPCType int32
	Count   int32
}

// Task is a snapshot of mission progress belonging to a MissionJournal.
type Task struct {
	TaskID           int32
	MissionID        int32
	MissionType      MissionType
	RemainingEnemies [3]EnemyCount
	FailTime         *time.Time
	Completed        bool
}

// MissionJournal tracks a player's in-progress tasks across the three
// slot kinds the client's running-quest UI expects, plus which slot (if
// any) is the one the player is currently tracking. Completed-mission
// history lives separately, in the completed-mission bitfield on Player
// itself, since it is addressed by mission id rather than slot index.
//
// A player can never have two running tasks for the same mission: see
// StartTask.
type MissionJournal struct {
	NanoMission   *Task
	GuideMission  *Task
	WorldMissions [MaxWorldMissions]*Task

	// ActiveSlot is the slot index the client is currently tracking for
	// its quest-arrow UI, or nil if none is active.
	ActiveSlot *int
}

// NewMissionJournal returns an empty journal.
func NewMissionJournal() *MissionJournal {
	return &MissionJournal{}
}

// taskAt returns the task occupying the given slot index (0 = nano,
// 1 = guide, 2..numSlots-1 = world), or nil if idx is out of range or
// the slot is empty.
func (j *MissionJournal) taskAt(idx int) *Task {
	switch {
	case idx == 0:
		return j.NanoMission
	case idx == 1:
		return j.GuideMission
	case idx >= 2 && idx < numSlots:
		return j.WorldMissions[idx-2]
	default:
		return nil
	}
}

// setAt installs t (possibly nil) into the given slot index. idx values
// outside [0, numSlots) are ignored.
func (j *MissionJournal) setAt(idx int, t *Task) {
	switch {
	case idx == 0:
		j.NanoMission = t
	case idx == 1:
		j.GuideMission = t
	case idx >= 2 && idx < numSlots:
		j.WorldMissions[idx-2] = t
	}
}

// Tasks returns every currently-running task, in slot order: nano,
// guide, then the world missions.
func (j *MissionJournal) Tasks() []*Task {
	tasks := make([]*Task, 0, numSlots)
	for idx := 0; idx < numSlots; idx++ {
		if t := j.taskAt(idx); t != nil {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// FindTask returns the running task with the given id, searching all
// slots.
func (j *MissionJournal) FindTask(taskID int32) (*Task, bool) {
	for _, t := range j.Tasks() {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return nil, false
}

// ActiveMissionID resolves ActiveSlot back to the mission id the player
// is currently tracking, if any.
func (j *MissionJournal) ActiveMissionID() (int32, bool) {
	if j.ActiveSlot == nil {
		return 0, false
	}
	t := j.taskAt(*j.ActiveSlot)
	if t == nil {
		return 0, false
	}
	return t.MissionID, true
}

// StartTask installs t into the journal. At most one task per mission
// id may run at a time: a second task for a mission already in progress
// is rejected, but one for a mission whose existing task has already
// completed replaces it in its existing slot. A brand-new mission
// routes into the slot its MissionType names, erroring if that type is
// unknown or (for MissionTypeNormal) every world slot is already
// occupied.
func (j *MissionJournal) StartTask(t Task) error {
	for idx := 0; idx < numSlots; idx++ {
		existing := j.taskAt(idx)
		if existing == nil || existing.MissionID != t.MissionID {
			continue
		}
		if !existing.Completed {
			return fmt.Errorf("entity: task %d for mission %d already in progress (task %d)", t.TaskID, t.MissionID, existing.TaskID)
		}
		j.setAt(idx, &t)
		return nil
	}

	switch t.MissionType {
	case MissionTypeGuide:
		j.GuideMission = &t
	case MissionTypeNano:
		j.NanoMission = &t
	case MissionTypeNormal:
		for i := range j.WorldMissions {
			if j.WorldMissions[i] == nil {
				j.WorldMissions[i] = &t
				return nil
			}
		}
		return fmt.Errorf("entity: no empty world mission slots for task %d", t.TaskID)
	default:
		return fmt.Errorf("entity: task %d has unknown mission type", t.TaskID)
	}
	return nil
}

// PlaceTask installs t directly into the given slot index, bypassing
// StartTask's routing and duplicate-mission checks. Used to restore a
// journal from persisted storage, where each row already names the
// slot it was saved from.
func (j *MissionJournal) PlaceTask(idx int, t Task) {
	j.setAt(idx, &t)
}

// SlottedTasks returns all numSlots slots in address order (nano,
// guide, then the world missions), with nil for any empty slot. Used
// to persist the journal with each task's slot index intact.
func (j *MissionJournal) SlottedTasks() [numSlots]*Task {
	var out [numSlots]*Task
	for idx := 0; idx < numSlots; idx++ {
		out[idx] = j.taskAt(idx)
	}
	return out
}

// RemoveTask drops the task with the given id, if present, freeing its
// slot.
func (j *MissionJournal) RemoveTask(taskID int32) {
	for idx := 0; idx < numSlots; idx++ {
		if t := j.taskAt(idx); t != nil && t.TaskID == taskID {
			j.setAt(idx, nil)
			return
		}
	}
}

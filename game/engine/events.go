package engine

// EventKind identifies what happened during a frame.
type EventKind string

const (
	EventSound            EventKind = "sound"
	EventTrigger          EventKind = "trigger"
	EventLanded           EventKind = "landed"
	EventFallStart        EventKind = "fall_start"
	EventRide             EventKind = "ride"
	EventDismount         EventKind = "dismount"
	EventPush             EventKind = "push"
	EventBehaviorAttached EventKind = "behavior_attached"
	EventBehaviorReleased EventKind = "behavior_released"
	EventPageChanged      EventKind = "page_changed"
)

// SoundSpec is a sound effect request.
type SoundSpec struct {
	Name   string `json:"name"`
	Volume int    `json:"volume"`
	Pitch  int    `json:"pitch"`
	Pan    int    `json:"pan"`
}

// AudioSink plays sound effects. The world only emits sound events when none is set.
type AudioSink interface {
	PlaySE(s SoundSpec)
}

// Event is something observable that happened during an update.
type Event struct {
	Kind        EventKind  `json:"kind"`
	Frame       int64      `json:"frame"`
	CharacterID int        `json:"character_id"`
	TargetID    int        `json:"target_id"`
	Name        string     `json:"name,omitempty"`
	Sound       *SoundSpec `json:"sound,omitempty"`
}

// EventQueue is a simple FIFO queue.
type EventQueue struct {
	items []Event
}

// Push adds an event.
func (q *EventQueue) Push(evt Event) {
	if q == nil {
		return
	}
	q.items = append(q.items, evt)
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Drain returns all events and clears the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (w *World) emit(evt Event) {
	evt.Frame = w.frame
	w.queue.Push(evt)
}

func (w *World) emitSound(c *Character, s SoundSpec) {
	if s.Name == "" {
		return
	}
	if w.audio != nil {
		w.audio.PlaySE(s)
	}
	sound := s
	w.emit(Event{Kind: EventSound, CharacterID: c.id, TargetID: NoCharacter, Name: s.Name, Sound: &sound})
}

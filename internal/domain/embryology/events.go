package embryology

import (
	"fmt"
	"time"
)

// EventType is a clinical event that moves an embryo between statuses.
type EventType string

const (
	EventFreeze   EventType = "freeze"
	EventThaw     EventType = "thaw"
	EventTransfer EventType = "transfer"
	EventBiopsy   EventType = "biopsy"
	EventDiscard  EventType = "discard"
	EventArrest   EventType = "arrest"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventFreeze, EventThaw, EventTransfer, EventBiopsy, EventDiscard, EventArrest:
		return true
	}
	return false
}

// Event is a clinical event applied to one embryo.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`

	// Storage location, used by freeze.
	StrawNumber *string `json:"straw_number,omitempty"`
	Tank        *string `json:"tank,omitempty"`
	Position    *string `json:"position,omitempty"`

	// Disposition overrides the default disposition for discard (e.g. donated).
	Disposition *Disposition `json:"disposition,omitempty"`
	Notes       *string      `json:"notes,omitempty"`
}

// ApplyEvent returns a copy of e with the event applied. Status changes are
// not ordered; only the preconditions for freeze, thaw and transfer are
// checked.
func ApplyEvent(e Embryo, ev Event) (Embryo, error) {
	if !ev.Type.IsValid() {
		return e, fmt.Errorf("unknown embryo event: %q", ev.Type)
	}
	if ev.Disposition != nil && !ev.Disposition.IsValid() {
		return e, fmt.Errorf("invalid disposition: %s", *ev.Disposition)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch ev.Type {
	case EventFreeze:
		if !IsFreezable(e) {
			return e, fmt.Errorf("%w: cannot freeze an embryo with status %s", ErrIneligible, e.Status)
		}
		e.Status = StatusFrozen
		e.FreezeDate = &at
		e.Disposition = dispositionPtr(DispositionFrozen)
		if ev.StrawNumber != nil {
			e.StrawNumber = ev.StrawNumber
		}
		if ev.Tank != nil {
			e.Tank = ev.Tank
		}
		if ev.Position != nil {
			e.Position = ev.Position
		}
	case EventThaw:
		if e.Status != StatusFrozen {
			return e, fmt.Errorf("%w: cannot thaw an embryo with status %s", ErrIneligible, e.Status)
		}
		e.Status = StatusThawed
		e.ThawDate = &at
	case EventTransfer:
		if !IsTransferable(e) {
			return e, fmt.Errorf("%w: cannot transfer an embryo with status %s", ErrIneligible, e.Status)
		}
		markTransferred(&e, at)
	case EventBiopsy:
		e.Status = StatusBiopsied
		e.BiopsyDate = &at
		if e.PGTResult == nil {
			pending := PGTPending
			e.PGTResult = &pending
		}
	case EventDiscard:
		e.Status = StatusDiscarded
		d := DispositionDiscarded
		if ev.Disposition != nil {
			d = *ev.Disposition
		}
		e.Disposition = &d
	case EventArrest:
		e.Status = StatusArrested
	}

	if ev.Notes != nil {
		e.Notes = ev.Notes
	}
	e.UpdatedAt = at
	return e, nil
}

func markTransferred(e *Embryo, at time.Time) {
	if e.Status == StatusDeveloping {
		e.Disposition = dispositionPtr(DispositionFreshTransfer)
	}
	e.Status = StatusTransferred
	e.TransferDate = &at
}

func dispositionPtr(d Disposition) *Disposition { return &d }

package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"scenestudio/internal/domain"
)

// Form is the generation workspace state as one explicit record. Every
// mutation goes through Apply so cross-field invalidation rules are visible
// transition logic instead of scattered side effects.
type Form struct {
	Mode            domain.JobMode
	Prompt          string
	ModelID         string
	Provider        domain.Provider
	References      []domain.Reference
	Preservation    float64
	Steps           int
	GuidanceScale   float64
	AspectRatio     string
	DurationSeconds int
	NegativePrompt  string
	Quantity        int
	ContentRating   domain.ContentRating
	ExactCopy       bool

	seed          *int64
	seedTransient bool
}

// FormEvent is one workspace mutation.
type FormEvent interface{ isFormEvent() }

type SetMode struct{ Mode domain.JobMode }

// SelectModel switches the active model. Capabilities ride along so the
// transition can clear state the new model cannot use.
type SelectModel struct{ Caps domain.Capabilities }

type SetPrompt struct{ Prompt string }
type AddReference struct{ Ref domain.Reference }
type ClearReferences struct{}
type SetPreservation struct{ Value float64 }
type SetAspectRatio struct{ Value string }
type SetDuration struct{ Seconds int }
type SetQuantity struct{ Quantity int }
type SetNegativePrompt struct{ Value string }
type SetContentRating struct{ Rating domain.ContentRating }

// LockSeed pins the seed for reuse. A transient lock (exact-copy action)
// survives exactly one snapshot so it cannot leak into unrelated
// generations.
type LockSeed struct {
	Seed      int64
	Transient bool
}

type UnlockSeed struct{}
type SetExactCopy struct{ On bool }

func (SetMode) isFormEvent()           {}
func (SelectModel) isFormEvent()       {}
func (SetPrompt) isFormEvent()         {}
func (AddReference) isFormEvent()      {}
func (ClearReferences) isFormEvent()   {}
func (SetPreservation) isFormEvent()   {}
func (SetAspectRatio) isFormEvent()    {}
func (SetDuration) isFormEvent()       {}
func (SetQuantity) isFormEvent()       {}
func (SetNegativePrompt) isFormEvent() {}
func (SetContentRating) isFormEvent()  {}
func (LockSeed) isFormEvent()          {}
func (UnlockSeed) isFormEvent()        {}
func (SetExactCopy) isFormEvent()      {}

// NewForm returns a form seeded with workable defaults.
func NewForm() Form {
	caps := domain.DefaultLocalCapabilities()
	return Form{
		Mode:          caps.Modality,
		ModelID:       caps.ModelID,
		Provider:      caps.Provider,
		Preservation:  0.7,
		AspectRatio:   "1:1",
		Quantity:      1,
		ContentRating: domain.RatingSFW,
	}
}

// Apply returns the form after one event. The receiver is never mutated.
func (f Form) Apply(event FormEvent) Form {
	switch e := event.(type) {
	case SetMode:
		f.Mode = e.Mode
	case SelectModel:
		f.ModelID = e.Caps.ModelID
		f.Provider = e.Caps.Provider
		if e.Caps.Modality != "" {
			f.Mode = e.Caps.Modality
		}
		if !e.Caps.SupportsReferenceImage() {
			// The new model cannot take conditioning images; keeping them
			// around would silently change the next request's meaning.
			f.References = nil
		}
		if e.Caps.MaxDurationSeconds > 0 && f.DurationSeconds > e.Caps.MaxDurationSeconds {
			f.DurationSeconds = e.Caps.MaxDurationSeconds
		}
		if !e.Caps.SupportsSeed {
			f.seed = nil
			f.seedTransient = false
		}
	case SetPrompt:
		f.Prompt = e.Prompt
	case AddReference:
		f.References = append(append([]domain.Reference(nil), f.References...), e.Ref)
	case ClearReferences:
		f.References = nil
	case SetPreservation:
		f.Preservation = e.Value
	case SetAspectRatio:
		f.AspectRatio = e.Value
	case SetDuration:
		f.DurationSeconds = e.Seconds
	case SetQuantity:
		if e.Quantity > 0 {
			f.Quantity = e.Quantity
		}
	case SetNegativePrompt:
		f.NegativePrompt = e.Value
	case SetContentRating:
		f.ContentRating = e.Rating
	case LockSeed:
		seed := e.Seed
		f.seed = &seed
		f.seedTransient = e.Transient
	case UnlockSeed:
		f.seed = nil
		f.seedTransient = false
	case SetExactCopy:
		f.ExactCopy = e.On
		if !e.On {
			f.seedTransient = false
			f.seed = nil
		}
	}
	return f
}

// LockedSeed exposes the current seed lock, if any.
func (f Form) LockedSeed() *int64 {
	if f.seed == nil {
		return nil
	}
	seed := *f.seed
	return &seed
}

// Snapshot freezes the form into an immutable GenerationRequest and returns
// the successor form. All inputs are captured here; nothing re-reads the
// form mid-flight. A transient seed lock is consumed by the snapshot.
func (f Form) Snapshot(ownerID string) (domain.GenerationRequest, Form) {
	req := domain.GenerationRequest{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Mode:       f.Mode,
		Prompt:     f.Prompt,
		References: append([]domain.Reference(nil), f.References...),
		ModelID:    f.ModelID,
		Provider:   f.Provider,
		Quantity:   f.Quantity,
		Params: domain.Parameters{
			Preservation:    f.Preservation,
			Steps:           f.Steps,
			GuidanceScale:   f.GuidanceScale,
			Seed:            f.LockedSeed(),
			AspectRatio:     f.AspectRatio,
			DurationSeconds: f.DurationSeconds,
			NegativePrompt:  f.NegativePrompt,
		},
		ContentRating: f.ContentRating,
		ExactCopy:     f.ExactCopy,
		CreatedAt:     time.Now(),
	}
	if f.seedTransient {
		f.seed = nil
		f.seedTransient = false
		f.ExactCopy = false
	}
	return req, f
}

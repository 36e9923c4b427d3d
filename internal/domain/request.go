package domain

import "time"

// ReferenceRole tags what a piece of reference material conditions.
type ReferenceRole string

const (
	RoleSource     ReferenceRole = "source"
	RoleStyle      ReferenceRole = "style"
	RoleStartFrame ReferenceRole = "start-frame"
	RoleEndFrame   ReferenceRole = "end-frame"
)

// Reference is one piece of user-supplied conditioning material. Exactly one
// of Data, StorageKey or URL is set before preparation; after preparation
// URL always carries a signed or absolute address.
type Reference struct {
	Role       ReferenceRole
	Filename   string
	MIME       string
	Data       []byte
	StorageKey string
	URL        string
}

// ContentRating gates what a generation may depict.
type ContentRating string

const (
	RatingSFW  ContentRating = "sfw"
	RatingNSFW ContentRating = "nsfw"
)

// Parameters are the tunables attached to one generation request.
// Preservation is how strongly the reference identity is kept; the denoise
// strength sent to providers is 1 - Preservation.
type Parameters struct {
	Preservation    float64
	Steps           int
	GuidanceScale   float64
	Seed            *int64
	AspectRatio     string
	DurationSeconds int
	NegativePrompt  string
}

// GenerationRequest is an immutable value describing one unit of work. It is
// snapshotted at submission time so no mutable workspace state is re-read
// mid-flight.
type GenerationRequest struct {
	ID            string
	OwnerID       string
	Mode          JobMode
	Prompt        string
	References    []Reference
	ModelID       string
	Provider      Provider
	Quantity      int
	Params        Parameters
	ContentRating ContentRating
	ExactCopy     bool
	CreatedAt     time.Time
}

// ReferencesByRole returns the references carrying the given role, in order.
func (r GenerationRequest) ReferencesByRole(role ReferenceRole) []Reference {
	var out []Reference
	for _, ref := range r.References {
		if ref.Role == role {
			out = append(out, ref)
		}
	}
	return out
}

package domain

// Provider identifies where a model runs. The set is closed; the request
// builder dispatches over it rather than comparing free-form strings.
type Provider string

const (
	ProviderLocalWorker Provider = "local-worker"
	ProviderGemini      Provider = "gemini"
	ProviderQwen        Provider = "qwen"
)

// Known reports whether p is one of the supported provider variants.
func (p Provider) Known() bool {
	switch p {
	case ProviderLocalWorker, ProviderGemini, ProviderQwen:
		return true
	}
	return false
}

// Task enumerates the generation tasks a model can accept.
type Task string

const (
	TaskTextToImage  Task = "t2i"
	TaskImageToImage Task = "i2i"
	TaskTextToVideo  Task = "t2v"
	TaskImageToVideo Task = "i2v"
	TaskExtend       Task = "extend"
	TaskMultiRef     Task = "multi"
)

// Capabilities is the structural description of one model, resolved from the
// descriptor table.
type Capabilities struct {
	ModelID                string
	Provider               Provider
	Modality               JobMode
	Tasks                  []Task
	RequiresReferenceImage bool
	MaxReferenceImages     int
	SupportsSeed           bool
	SupportsStrength       bool
	MaxDurationSeconds     int
}

// SupportsTask reports whether the model accepts the given task.
func (c Capabilities) SupportsTask(t Task) bool {
	for _, task := range c.Tasks {
		if task == t {
			return true
		}
	}
	return false
}

// SupportsReferenceImage reports whether the model can take any conditioning
// image at all.
func (c Capabilities) SupportsReferenceImage() bool {
	return c.MaxReferenceImages > 0 || c.RequiresReferenceImage
}

// DefaultModelID is the hard-coded conservative fallback used when the
// descriptor table is unreachable. It keeps the workspace usable.
const DefaultModelID = "local-default"

// DefaultLocalCapabilities describes the fallback local-worker model.
func DefaultLocalCapabilities() Capabilities {
	return Capabilities{
		ModelID:            DefaultModelID,
		Provider:           ProviderLocalWorker,
		Modality:           JobModeImage,
		Tasks:              []Task{TaskTextToImage, TaskImageToImage},
		MaxReferenceImages: 2,
		SupportsSeed:       true,
		SupportsStrength:   true,
	}
}

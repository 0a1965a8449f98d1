package editor

import "context"

// InitFunc prepares a freshly rendered fragment.
type InitFunc func(ctx context.Context, sectionID string, frag *Fragment) error

// Bespoke initializer kinds. Every other section gets the generic handlers.
const (
	KindJobs       = "jobs"
	KindAITools    = "ai-tools"
	KindCVVariants = "cv-variants"
)

// responsibilitySections get the nested responsibilities editor.
var responsibilitySections = map[string]bool{
	"work-experience": true,
}

// reorderSections get drag-to-reorder on their entry lists.
var reorderSections = map[string]bool{
	"work-experience":           true,
	"skills":                    true,
	"projects":                  true,
	"qualification-equivalence": true,
	"interests":                 true,
}

// Initializers holds the post-render hooks of a controller.
type Initializers struct {
	bespoke          map[string]InitFunc
	Responsibilities InitFunc
	Reorder          InitFunc
}

// NewInitializers returns an empty registry.
func NewInitializers() *Initializers {
	return &Initializers{bespoke: make(map[string]InitFunc)}
}

// Register sets the initializer for a bespoke kind.
func (i *Initializers) Register(kind string, fn InitFunc) {
	i.bespoke[kind] = fn
}

// lookup returns the bespoke initializer for kind, if any.
func (i *Initializers) lookup(kind string) (InitFunc, bool) {
	fn, ok := i.bespoke[kind]
	return fn, ok
}

// isBespoke reports whether kind bypasses the generic form handlers.
func isBespoke(kind string) bool {
	switch kind {
	case KindJobs, KindAITools, KindCVVariants:
		return true
	}
	return false
}

// Package personality defines the static catalog of response personalities.
// Each personality is a data record (display metadata, trait text, optional
// principles-document key) associated with the shared prompt machinery
// through a single dispatch table; there is no behavioural subclassing.
package personality

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the personality id is unknown.
var ErrNotFound = errors.New("personality not found")

// DefaultID is the identifier of the generic fallback personality. It is
// also used as the index namespace when a request carries no personality.
const DefaultID = "general"

// Descriptor describes a single personality. Descriptors are immutable
// after registration: created once at process start, never mutated.
type Descriptor struct {
	// ID is the unique identifier, used as index namespace and routing key.
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable display name.
	Name string `json:"name" yaml:"name"`

	// Tags are ordered free-text capability labels.
	Tags []string `json:"tags" yaml:"tags"`

	// Description is an optional long-form description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Traits is free text describing the personality's decision lens.
	// It is rendered into the prompt; empty for the generic default.
	Traits string `json:"-" yaml:"traits,omitempty"`

	// PrinciplesKey names an optional external principles document for this
	// personality. Empty means no external document is consulted.
	PrinciplesKey string `json:"-" yaml:"principles_key,omitempty"`
}

// builtins is the closed set of built-in personalities, in display order.
var builtins = []Descriptor{
	{
		ID:   "sustainability",
		Name: "SustainFocus",
		Tags: []string{
			"Sustainability Metrics",
			"Long-term Impact Projection",
			"Governance Structure Analysis",
			"Community Participation Scorer",
		},
		Description: "Specialist in sustainability and long-term thinking.",
		Traits: `- You prioritize long-term viability over short-term gains
- You value governance structures that outlive individual projects
- You evaluate ideas based on their lasting environmental and social impact
- You care deeply about whether outcomes can be sustained without continued funding
- Your tone is measured, forward-looking, and grounded in stewardship`,
	},
	{
		ID:   "equity",
		Name: "EquityMax",
		Tags: []string{
			"Population Impact Analysis",
			"Geographic Equity Weighting",
			"Underserved Population Targeting",
			"Community Input Interpreter",
		},
		Description: "Specialist in equity and fairness considerations.",
		Traits: `- You prioritize fair distribution of resources across populations
- You value reaching underserved and historically excluded communities
- You evaluate ideas based on who benefits and who is left out
- You care deeply about geographic and demographic equity
- Your tone is principled, empathetic, and attentive to disparity`,
	},
	{
		ID:   "community",
		Name: "CommunityCentric",
		Tags: []string{
			"Community Engagement Frameworks",
			"Participatory Decision Models",
			"Social Capital Building",
			"Local Knowledge Integration",
		},
		Description: "Specialist in community-based approaches.",
		Traits: `- You prioritize community voice, participation, and ownership
- You value local knowledge and contextual understanding
- You evaluate ideas based on community engagement and representation
- You care deeply about building social capital and relationships
- You emphasize collaborative decision-making processes
- Your tone is approachable, collaborative, and community-minded`,
		PrinciplesKey: "community",
	},
	{
		ID:   "innovation",
		Name: "InnovationEngine",
		Tags: []string{
			"Breakthrough Solution Design",
			"Technology Integration",
			"Adaptive Systems Thinking",
			"Future Trends Analysis",
		},
		Description: "Specialist in innovative approaches and creative solutions.",
		Traits: `- You prioritize novel approaches over established convention
- You value technology integration and adaptive systems
- You evaluate ideas based on their potential for breakthrough impact
- You care deeply about anticipating future trends
- Your tone is curious, energetic, and open to experimentation`,
	},
	{
		ID:   "efficiency",
		Name: "EfficientAlloc",
		Tags: []string{
			"ROI Calculator",
			"Resource Optimization",
			"Scalability Predictor",
			"Cost-Benefit Analyzer",
		},
		Description: "Specialist in efficiency and return on investment.",
		Traits: `- You prioritize efficiency, effectiveness, and measurable results
- You value data-driven decision making and quantifiable outcomes
- You evaluate ideas based on their ROI and cost-effectiveness
- You care deeply about scalability and resource optimization
- You emphasize evidence-based approaches and performance metrics
- Your tone is pragmatic, analytical, and results-oriented`,
		PrinciplesKey: "efficiency",
	},
}

// generic is the fallback descriptor used for unknown or absent ids.
// It carries no traits so the prompt renders without a personality block.
var generic = Descriptor{
	ID:          DefaultID,
	Name:        "General Assistant",
	Tags:        []string{},
	Description: "Generic document-grounded assistant with no specialist lens.",
}

// Registry is a pure lookup table over the static personality set.
// It is safe for concurrent use: the backing data is never mutated
// after construction.
type Registry struct {
	ordered []Descriptor
	byID    map[string]Descriptor
}

// NewRegistry builds a registry over the built-in personality set.
func NewRegistry() *Registry {
	return newRegistry(builtins)
}

// NewRegistryWithCatalog builds a registry over the built-in set merged
// with an operator-supplied YAML catalog file. Catalog entries with an id
// matching a builtin override it; new ids are appended in file order.
// An empty path yields the plain built-in registry.
func NewRegistryWithCatalog(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(), nil
	}

	extras, err := loadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("personality: failed to load catalog %s: %w", path, err)
	}

	merged := make([]Descriptor, len(builtins))
	copy(merged, builtins)
	for _, extra := range extras {
		replaced := false
		for i := range merged {
			if merged[i].ID == extra.ID {
				merged[i] = extra
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, extra)
		}
	}

	return newRegistry(merged), nil
}

func newRegistry(descriptors []Descriptor) *Registry {
	byID := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
	}
	return &Registry{ordered: descriptors, byID: byID}
}

// List returns all registered personalities in display order.
// The generic default is not listed; it only backs fallback resolution.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Get returns the descriptor for the given id, or ErrNotFound.
func (r *Registry) Get(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d, nil
}

// Resolve returns the descriptor for the given id, falling back to the
// generic default when the id is unknown or empty. Unlike Get it never
// fails: ask-path lookups deliberately degrade instead of erroring.
func (r *Registry) Resolve(id string) Descriptor {
	if d, ok := r.byID[id]; ok {
		return d
	}
	return generic
}

// Default returns the generic fallback descriptor.
func (r *Registry) Default() Descriptor {
	return generic
}

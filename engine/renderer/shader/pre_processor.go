// pre_processor.go implements the Vacs WGSL pre-processor. It scans shader source for
// @vacs: annotations, replaces them with registered snippets or generated declarations,
// and records the generated declarations for later inspection.
package shader

import (
	"fmt"
	"strings"
)

// Include pairs a WGSL snippet with the type name it declares, if any.
type Include struct {
	// Source is the raw WGSL text injected by @vacs:include.
	Source string

	// Type is the WGSL type name emitted in @vacs:group declarations. Empty for helper-only snippets.
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// includes maps snippet keys to their WGSL source and type name.
	includes map[AnnotationArg]Include

	// addressSpaceRegistry maps address space argument keys to WGSL var<> syntax strings.
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates group annotations during a Process call.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source containing @vacs: annotations.
type PreProcessor interface {
	// Process replaces @vacs:include annotations with snippet source and @vacs:group annotations
	// with generated @group/@binding declarations. A snippet is injected at most once per call,
	// so kernels may include helpers that depend on each other without duplicating definitions.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code
	//   - error: an error if any annotation is malformed or references an unknown snippet
	Process(source string) (string, error)

	// Declarations returns the group annotations collected during the most recent Process call, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that resolves snippets from the given registry.
//
// Parameters:
//   - includes: the snippets available to @vacs:include and @vacs:group, keyed by name
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(includes map[AnnotationArg]Include) PreProcessor {
	if includes == nil {
		includes = map[AnnotationArg]Include{}
	}
	return &preProcessor{
		includes: includes,
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	injected := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			entry, ok := p.includes[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @vacs:include argument %q", i+1, a.Args[0])
			}
			if injected[a.Args[0]] {
				continue
			}
			injected[a.Args[0]] = true
			out = append(out, entry.Source)
		case AnnotationTypeBindingGroup:
			entry, ok := p.includes[a.Args[2]]
			if !ok || entry.Type == "" {
				return "", fmt.Errorf("line %d: @vacs:group references %q which declares no type", i+1, a.Args[2])
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, p.addressSpaceRegistry[a.Args[0]], a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

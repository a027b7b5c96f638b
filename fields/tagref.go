package fields

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
)

// TransformFunc combines resolved tag values into a single tag value. It must
// be a pure function of the model and the values; it runs at materialization
// time, once per ensure.
type TransformFunc func(model any, values map[string]any) (any, error)

// TagReference is a deferred tag value: one or more dotted paths into the
// descriptor's stream tags, resolved only when a concrete descriptor is at
// hand. A reference may appear anywhere inside descriptor stream tags or
// field custom tags; ProcessTags replaces it with its resolved value.
//
// With a template, the resolved values render through ${path} placeholders.
// With a transform, they are handed to the function together with the model.
// With neither, the reference must name exactly one path and resolves to that
// raw value.
type TagReference struct {
	paths     []string
	template  string
	transform TransformFunc
}

// NewTagReference creates a reference to the given dotted tag paths.
func NewTagReference(paths ...string) TagReference {
	return TagReference{paths: paths}
}

// Template returns a copy of the reference that renders through a template
// with ${path} placeholders.
func (t TagReference) Template(template string) TagReference {
	t.template = template
	return t
}

// Transform returns a copy of the reference that combines resolved values
// through fn.
func (t TagReference) Transform(fn TransformFunc) TagReference {
	t.transform = fn
	return t
}

func (t TagReference) resolve(d Descriptor) (any, error) {
	streamTags := d.StreamTags()
	values := make(map[string]any, len(t.paths))
	for _, path := range t.paths {
		v, err := lookupTagPath(streamTags, path)
		if err != nil {
			return nil, err
		}
		values[path] = v
	}

	switch {
	case t.transform != nil:
		return t.transform(d.Model(), values)
	case t.template != "":
		return expandTemplate(t.template, values)
	case len(t.paths) == 1:
		return values[t.paths[0]], nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("paths %v: %w", t.paths, errors.ErrUnresolvedTagReference),
			"fields", "ProcessTags", "reference needs a transform or template to combine multiple paths")
	}
}

// lookupTagPath walks nested maps by dotted path.
func lookupTagPath(tags datastream.Tags, path string) (any, error) {
	var current any = tags
	for _, part := range strings.Split(path, ".") {
		m, ok := asTagMap(current)
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("path %q runs through a non-map value: %w", path, errors.ErrUnresolvedTagReference),
				"fields", "ProcessTags", "resolve tag reference")
		}
		current, ok = m[part]
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("path %q: no tag %q: %w", path, part, errors.ErrUnresolvedTagReference),
				"fields", "ProcessTags", "resolve tag reference")
		}
	}
	return current, nil
}

// expandTemplate renders ${path} placeholders from the resolved values.
func expandTemplate(template string, values map[string]any) (any, error) {
	var missing []string
	out := os.Expand(template, func(key string) string {
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
	if len(missing) > 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("template %q references unresolved %v: %w", template, missing, errors.ErrUnresolvedTagReference),
			"fields", "ProcessTags", "render tag template")
	}
	return out, nil
}

// resolveTagReferences returns a copy of v with every embedded TagReference
// replaced by its resolved value. Map values and slice elements are walked;
// resolved values are not walked again.
func resolveTagReferences(v any, d Descriptor) (any, error) {
	switch val := v.(type) {
	case datastream.Tags:
		return resolveTagMap(val, d)
	case map[string]any:
		return resolveTagMap(val, d)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := resolveTagReferences(item, d)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case TagReference:
		return val.resolve(d)
	default:
		return v, nil
	}
}

func resolveTagMap(tags datastream.Tags, d Descriptor) (datastream.Tags, error) {
	out := make(datastream.Tags, len(tags))
	for k, v := range tags {
		resolved, err := resolveTagReferences(v, d)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func asTagMap(v any) (datastream.Tags, bool) {
	switch m := v.(type) {
	case datastream.Tags:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

package compose

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Volume Set
// =============================================================================

// VolumeSet is the set of declared top-level volume names.
type VolumeSet map[string]struct{}

// NewVolumeSet builds a set from volume names.
func NewVolumeSet(names ...string) VolumeSet {
	set := make(VolumeSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports exact membership. The empty name is never a member.
func (s VolumeSet) Has(name string) bool {
	if name == "" {
		return false
	}
	_, ok := s[name]
	return ok
}

// NamespacedName returns the namespaced form of a volume name.
//
// Example:
//
//	NamespacedName("db-data", "a1b2c3d4") // returns "db-data-a1b2c3d4"
func NamespacedName(name, token string) string {
	return name + "-" + token
}

// =============================================================================
// Classification
// =============================================================================

// ClassifyCompact classifies a short-syntax mount "source[:target[:mode]]".
func ClassifyCompact(entry string) MountRef {
	source := entry
	if i := strings.IndexByte(entry, ':'); i >= 0 {
		source = entry[:i]
	}

	// Host paths take priority: "/" is a bind mount even if a volume is named "/".
	if isHostPath(source) {
		return MountRef{Kind: MountBind, Form: FormCompact}
	}

	name, subPath := splitVolumeSource(source)
	return MountRef{Kind: MountNamedVolume, Form: FormCompact, Name: name, SubPath: subPath}
}

// ClassifyMount classifies a service mount entry node without modifying it.
func ClassifyMount(entry *yaml.Node) MountRef {
	n := resolve(entry)
	if n == nil {
		return unrecognized(FormOther, "empty entry")
	}

	switch n.Kind {
	case yaml.ScalarNode:
		if !isString(n) {
			return unrecognized(FormOther, fmt.Sprintf("unsupported scalar %s", n.ShortTag()))
		}
		return ClassifyCompact(n.Value)

	case yaml.MappingNode:
		site, _ := mountSource(n)
		source := resolve(site)
		if isNull(source) {
			return MountRef{Kind: MountAnonymous, Form: FormStructured}
		}
		if !isString(source) {
			return unrecognized(FormStructured, "source is not a string")
		}
		name, subPath := splitVolumeSource(source.Value)
		return MountRef{Kind: MountNamedVolume, Form: FormStructured, Name: name, SubPath: subPath}

	default:
		return unrecognized(FormOther, "entry is neither a string nor a mapping")
	}
}

// mountSource returns the source value of a structured mount and the index
// of its explicit key. A source inherited through "<<" has index -1. The
// value is nil when the mount has no source at all.
func mountSource(m *yaml.Node) (value *yaml.Node, idx int) {
	if idx = findKey(m, keySource); idx >= 0 {
		return m.Content[idx+1], idx
	}
	value, _ = findMerged(m, keySource)
	return value, -1
}

func unrecognized(form MountForm, reason string) MountRef {
	return MountRef{Kind: MountUnrecognized, Form: form, Reason: reason}
}

func isHostPath(source string) bool {
	return strings.HasPrefix(source, ".") ||
		strings.HasPrefix(source, "/") ||
		strings.HasPrefix(source, "~")
}

// splitVolumeSource splits a mount source on its first "/" into the
// volume-name component and sub-path.
func splitVolumeSource(source string) (name, subPath string) {
	name, subPath, _ = strings.Cut(source, "/")
	return name, subPath
}

// =============================================================================
// Rewriting
// =============================================================================

// RewriteMount namespaces a mount entry whose volume-name component is a
// declared volume. The entry is never modified: a rewritten entry is returned
// as a new node, otherwise entry itself is returned with changed == false.
func RewriteMount(entry *yaml.Node, declared VolumeSet, token string) (out *yaml.Node, ref MountRef, changed bool) {
	ref = ClassifyMount(entry)
	if ref.Kind != MountNamedVolume || !declared.Has(ref.Name) {
		return entry, ref, false
	}

	n := resolve(entry)
	switch ref.Form {
	case FormCompact:
		out = detach(entry, n)
		out.Value = renameComponent(n.Value, ref.Name, token)

	case FormStructured:
		site, idx := mountSource(n)
		source := resolve(site)

		renamed := detach(site, source)
		renamed.Value = renameComponent(source.Value, ref.Name, token)

		out = detach(entry, n)
		if idx >= 0 {
			out.Content[idx+1] = renamed
			break
		}
		// Inherited through "<<": the merged mapping is left alone and an
		// explicit key overrides it.
		renamed.Anchor = ""
		out.Content = append(out.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: tagString, Value: keySource},
			renamed,
		)
	}

	return out, ref, true
}

// renameComponent replaces the leading volume-name component of s. Everything
// after it (sub-path, target, mode) is kept verbatim.
func renameComponent(s, name, token string) string {
	return NamespacedName(name, token) + s[len(name):]
}

// detach copies target for placement where site was. A copy replacing an
// alias must not redeclare the alias's anchor.
func detach(site, target *yaml.Node) *yaml.Node {
	c := shallowCopy(target)
	if site.Kind == yaml.AliasNode {
		c.Anchor = ""
	}
	return c
}

func mountField(service string, index int) string {
	return fmt.Sprintf("services.%s.volumes[%d]", service, index)
}

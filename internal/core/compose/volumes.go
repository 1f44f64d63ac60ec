package compose

import "gopkg.in/yaml.v3"

// NamespaceVolumeKeys returns a copy of a top-level volumes mapping with every
// key renamed to NamespacedName(key, token). Declarations and their order are
// kept; values are shared with the input. Declarations merged in through "<<"
// are inlined as explicit renamed keys after the mapping's own, and the merge
// key is dropped. Every declared volume is renamed whether or not a service
// mounts it.
//
// A nil or non-mapping node is returned unchanged with no renames.
func NamespaceVolumeKeys(volumes *yaml.Node, token string) (*yaml.Node, []VolumeRename) {
	if volumes == nil || volumes.Kind != yaml.MappingNode {
		return volumes, nil
	}

	out := shallowCopy(volumes)
	out.Content = make([]*yaml.Node, 0, len(volumes.Content))
	renames := make([]VolumeRename, 0, len(volumes.Content)/2)

	add := func(site, value *yaml.Node) {
		key := resolve(site)
		renamed := detach(site, key)
		renamed.Value = NamespacedName(key.Value, token)
		// Keys like "123" or "true" must stay strings once suffixed.
		renamed.Tag = tagString
		out.Content = append(out.Content, renamed, value)
		renames = append(renames, VolumeRename{From: key.Value, To: renamed.Value})
	}

	for i := 0; i+1 < len(volumes.Content); i += 2 {
		key := resolve(volumes.Content[i])
		if isMergeKey(key) {
			continue
		}
		if key.Kind != yaml.ScalarNode {
			out.Content = append(out.Content, volumes.Content[i], volumes.Content[i+1])
			continue
		}
		add(volumes.Content[i], volumes.Content[i+1])
	}

	merged := mergedPairs(volumes)
	for i := 0; i+1 < len(merged); i += 2 {
		value := merged[i+1]
		if value.Anchor != "" {
			// Declared once, in the mapping merged from.
			value = shallowCopy(value)
			value.Anchor = ""
		}
		add(merged[i], value)
	}
	return out, renames
}

// DeclaredVolumes returns the set of volume names declared in a volumes
// mapping, including those merged in through "<<".
func DeclaredVolumes(volumes *yaml.Node) VolumeSet {
	m := resolve(volumes)
	set := NewVolumeSet(mappingKeys(m)...)
	if m == nil || m.Kind != yaml.MappingNode {
		return set
	}
	merged := mergedPairs(m)
	for i := 0; i+1 < len(merged); i += 2 {
		set[resolve(merged[i]).Value] = struct{}{}
	}
	return set
}

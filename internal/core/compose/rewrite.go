package compose

import "gopkg.in/yaml.v3"

// =============================================================================
// Volume Namespacing
// =============================================================================

// NamespaceVolumes returns a copy of doc in which every top-level named volume
// is renamed to NamespacedName(name, token) and every service mount that
// references one is updated to match. Nothing else in the document changes,
// and doc itself is never modified, so one parsed template can be rendered
// for any number of deployments.
//
// The token is opaque; callers should keep ':' and '/' out of it.
//
// Only structural-type problems are errors: a document root, services or
// volumes field of the wrong kind. Mount entries that cannot be classified
// are left untouched and listed in Result.Skipped.
func NamespaceVolumes(doc *Document, token string) (*Result, error) {
	out := doc.Clone()
	result := &Result{
		Token:     token,
		Renamed:   []VolumeRename{},
		Rewritten: []MountRewrite{},
		Skipped:   []SkippedMount{},
	}

	root := out.root()
	if isNull(root) {
		result.Document = out
		return result, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, NewParseError("", "document root is not a mapping", ErrInvalidDocument)
	}

	volumesIdx := findKey(root, keyVolumes)
	var volumes *yaml.Node
	if volumesIdx >= 0 {
		volumes = resolve(root.Content[volumesIdx+1])
		if isNull(volumes) {
			volumes = nil
		} else if volumes.Kind != yaml.MappingNode {
			return nil, NewParseError(keyVolumes, "expected a mapping of volume declarations", ErrInvalidVolumes)
		}
	}

	r := &rewriter{
		declared: DeclaredVolumes(volumes),
		token:    token,
		result:   result,
		replaced: make(map[*yaml.Node]*yaml.Node),
		produced: make(map[*yaml.Node]bool),
	}

	if idx := findKey(root, keyServices); idx >= 0 {
		repl, err := r.services(root.Content[idx+1], false)
		if err != nil {
			return nil, err
		}
		if repl != nil {
			root.Content[idx+1] = repl
		}
	}

	if volumes != nil {
		site := root.Content[volumesIdx+1]
		renamed, renames := NamespaceVolumeKeys(volumes, token)
		if site.Kind == yaml.AliasNode {
			renamed.Anchor = ""
		}
		root.Content[volumesIdx+1] = renamed
		result.Renamed = renames
	}

	materializeDangling(out.node)
	result.Document = out
	return result, nil
}

// =============================================================================
// Rewriter
// =============================================================================

// rewriter walks services[*].volumes[*] copy-on-write: a level that changes
// returns a replacement node and its parent swaps it in. Unchanged subtrees
// keep their identity.
//
// Anchors complicate this. An anchored node inside the walk that gets replaced
// is recorded in replaced, and later aliases to it are repointed at the
// replacement instead of being rewritten twice. An alias whose anchor lives
// outside the walk (an x- extension field, say) is materialized: the rewritten
// copy takes the alias's place and the anchored original is left alone.
// Everything below such an alias is shared with the original, so copies made
// there drop their anchors and are never recorded.
//
// The reverse case, an anchor inside the walk aliased from outside it, is
// settled once the walk is done by materializeDangling.
type rewriter struct {
	declared VolumeSet
	token    string
	result   *Result

	replaced map[*yaml.Node]*yaml.Node // anchored original -> replacement
	produced map[*yaml.Node]bool       // nodes created by this pass
}

func (r *rewriter) services(site *yaml.Node, shared bool) (*yaml.Node, error) {
	if alias := r.repointed(site); alias != nil {
		return alias, nil
	}
	shared = shared || site.Kind == yaml.AliasNode
	services := resolve(site)
	if isNull(services) {
		return nil, nil
	}
	if services.Kind != yaml.MappingNode {
		return nil, NewParseError(keyServices, "expected a mapping of services", ErrInvalidServices)
	}

	var out *yaml.Node
	for i := 0; i+1 < len(services.Content); i += 2 {
		key := resolve(services.Content[i])
		if key.Kind != yaml.ScalarNode || isMergeKey(key) {
			continue
		}
		repl, err := r.service(key.Value, services.Content[i+1], shared)
		if err != nil {
			return nil, err
		}
		if repl == nil {
			continue
		}
		if out == nil {
			out = detach(site, services)
		}
		out.Content[i+1] = repl
	}
	return r.record(services, out, shared), nil
}

func (r *rewriter) service(name string, site *yaml.Node, shared bool) (*yaml.Node, error) {
	if alias := r.repointed(site); alias != nil {
		return alias, nil
	}
	shared = shared || site.Kind == yaml.AliasNode
	svc := resolve(site)
	if svc == nil || svc.Kind != yaml.MappingNode {
		return nil, nil
	}

	if idx := findKey(svc, keyVolumes); idx >= 0 {
		repl, err := r.mounts(name, svc.Content[idx+1], shared)
		if err != nil {
			return nil, err
		}
		out := r.repointMerges(site, svc)
		if repl != nil {
			if out == nil {
				out = detach(site, svc)
			}
			out.Content[idx+1] = repl
		}
		return r.record(svc, out, shared), nil
	}

	// No explicit list: the service may inherit one through "<<".
	out := r.repointMerges(site, svc)
	inheritFrom := svc
	if out != nil {
		inheritFrom = out
	}
	inherited, owner := findMerged(inheritFrom, keyVolumes)
	if inherited != nil && !r.produced[owner] {
		// The list belongs to the mapping merged in, never to this service.
		repl, err := r.mounts(name, inherited, true)
		if err != nil {
			return nil, err
		}
		if repl != nil {
			if out == nil {
				out = detach(site, svc)
			}
			// An explicit key overrides whatever the merge supplies.
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: tagString, Value: keyVolumes},
				repl,
			)
		}
	}
	return r.record(svc, out, shared), nil
}

func (r *rewriter) mounts(service string, site *yaml.Node, shared bool) (*yaml.Node, error) {
	if alias := r.repointed(site); alias != nil {
		return alias, nil
	}
	shared = shared || site.Kind == yaml.AliasNode
	list := resolve(site)
	if isNull(list) {
		return nil, nil
	}
	if list.Kind != yaml.SequenceNode {
		return nil, NewParseError("services."+service+".volumes", "expected a list of mounts", ErrInvalidServiceVolumes)
	}

	var out *yaml.Node
	for i, entry := range list.Content {
		repl := r.repointed(entry)
		if repl == nil {
			var ref MountRef
			var changed bool
			repl, ref, changed = RewriteMount(entry, r.declared, r.token)
			switch {
			case changed:
				r.result.Rewritten = append(r.result.Rewritten, describeRewrite(service, i, entry, repl, ref))
				r.record(resolve(entry), repl, shared || entry.Kind == yaml.AliasNode)
			case ref.Kind == MountUnrecognized:
				r.result.Skipped = append(r.result.Skipped, SkippedMount{Service: service, Index: i, Reason: ref.Reason})
				continue
			default:
				continue
			}
		}
		if out == nil {
			out = detach(site, list)
		}
		out.Content[i] = repl
	}
	return r.record(list, out, shared), nil
}

// repointMerges returns a copy of svc whose "<<" aliases to replaced anchors
// point at the replacements, or nil when none do.
func (r *rewriter) repointMerges(site, svc *yaml.Node) *yaml.Node {
	var out *yaml.Node
	for i := 0; i+1 < len(svc.Content); i += 2 {
		if !isMergeKey(resolve(svc.Content[i])) {
			continue
		}
		value := svc.Content[i+1]
		if alias := r.repointed(value); alias != nil {
			if out == nil {
				out = detach(site, svc)
			}
			out.Content[i+1] = alias
			continue
		}
		if value.Kind != yaml.SequenceNode {
			continue
		}
		var seq *yaml.Node
		for j, item := range value.Content {
			if alias := r.repointed(item); alias != nil {
				if seq == nil {
					seq = shallowCopy(value)
				}
				seq.Content[j] = alias
			}
		}
		if seq != nil {
			if out == nil {
				out = detach(site, svc)
			}
			out.Content[i+1] = seq
		}
	}
	return out
}

// repointed returns a fresh alias to the replacement of an already rewritten
// anchor, or nil if site is not such an alias.
func (r *rewriter) repointed(site *yaml.Node) *yaml.Node {
	if site.Kind != yaml.AliasNode {
		return nil
	}
	repl, ok := r.replaced[resolve(site)]
	if !ok {
		return nil
	}
	alias := *site
	alias.Alias = repl
	return &alias
}

// record notes out as the replacement for target and returns it. Anchored
// nodes owned by the walk are remembered for later aliases; copies of shared
// nodes lose the anchor so it is not declared twice.
func (r *rewriter) record(target, out *yaml.Node, shared bool) *yaml.Node {
	if out == nil {
		return nil
	}
	r.produced[out] = true
	switch {
	case shared:
		out.Anchor = ""
	case target.Anchor != "":
		r.replaced[target] = out
	}
	return out
}

func describeRewrite(service string, index int, before, after *yaml.Node, ref MountRef) MountRewrite {
	rw := MountRewrite{Service: service, Index: index, Form: ref.Form}
	b, a := resolve(before), resolve(after)
	if ref.Form == FormStructured {
		bs, _ := mountSource(b)
		as, _ := mountSource(a)
		b, a = resolve(bs), resolve(as)
	}
	rw.From, rw.To = b.Value, a.Value
	return rw
}

// =============================================================================
// Dangling Aliases
// =============================================================================

// materializeDangling replaces every alias whose anchored node is no longer
// part of the tree with a copy of that node. Replacements keep the anchor
// name, so such an alias would otherwise bind to the rewritten value once
// marshalled. The aliases left dangling all sit outside services[*].volumes
// (the walk repoints the rest) and must keep their original value.
func materializeDangling(root *yaml.Node) {
	anchored := make(map[*yaml.Node]bool)
	collectAnchored(root, anchored, make(map[*yaml.Node]bool))
	replaceDangling(root, anchored, make(map[*yaml.Node]bool))
}

func collectAnchored(n *yaml.Node, anchored, seen map[*yaml.Node]bool) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true
	if n.Anchor != "" {
		anchored[n] = true
	}
	for _, child := range n.Content {
		collectAnchored(child, anchored, seen)
	}
}

func replaceDangling(n *yaml.Node, anchored, seen map[*yaml.Node]bool) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true
	for i, child := range n.Content {
		if child.Kind == yaml.AliasNode && !anchored[child.Alias] {
			c := materialize(child.Alias, anchored)
			c.HeadComment, c.LineComment, c.FootComment = child.HeadComment, child.LineComment, child.FootComment
			n.Content[i] = c
			continue
		}
		replaceDangling(child, anchored, seen)
	}
}

// materialize deep-copies n without anchors. Aliases to anchors still in the
// tree are kept as aliases.
func materialize(n *yaml.Node, anchored map[*yaml.Node]bool) *yaml.Node {
	if n.Kind == yaml.AliasNode {
		if anchored[n.Alias] {
			return n
		}
		return materialize(n.Alias, anchored)
	}
	c := *n
	c.Anchor = ""
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = materialize(child, anchored)
		}
	}
	return &c
}

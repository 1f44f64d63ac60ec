package compose

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testToken = "testhash"

func mustParse(t *testing.T, content string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(content))
	require.NoError(t, err)
	return doc
}

func mustMarshal(t *testing.T, doc *Document) string {
	t.Helper()
	out, err := doc.Marshal()
	require.NoError(t, err)
	return string(out)
}

func mustRewrite(t *testing.T, content string) *Result {
	t.Helper()
	result, err := NamespaceVolumes(mustParse(t, content), testToken)
	require.NoError(t, err)
	require.NotNil(t, result.Document)
	return result
}

// decode turns a document into plain maps, resolving anchors and merges.
func decode(t *testing.T, doc *Document) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(mustMarshal(t, doc)), &out))
	return out
}

// entryNode parses a single YAML value into a node.
func entryNode(t *testing.T, content string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(content), &doc))
	require.Len(t, doc.Content, 1)
	return doc.Content[0]
}

func serviceMounts(t *testing.T, decoded map[string]any, service string) []any {
	t.Helper()
	services, ok := decoded["services"].(map[string]any)
	require.True(t, ok, "services is not a mapping")
	svc, ok := services[service].(map[string]any)
	require.True(t, ok, "service %q is not a mapping", service)
	mounts, ok := svc["volumes"].([]any)
	require.True(t, ok, "service %q has no volumes list", service)
	return mounts
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
nodes:
  - id: src
    component: timer_source
    init_args:
      interval_ms: 50
  - id: sink
    component: counter_sink
edges:
  - from: src
    from_slot: out
    to: sink
    to_slot: in
    capacity: 16
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifestParsesNodesAndEdges(t *testing.T) {
	path := writeManifest(t, sampleManifest)
	m, err := loadManifest(path)
	require.NoError(t, err)

	require.Len(t, m.Nodes, 2)
	assert.Equal(t, "timer_source", m.Nodes[0].Component)
	assert.Equal(t, 50, m.Nodes[0].InitArgs["interval_ms"])

	require.Len(t, m.Edges, 1)
	assert.Equal(t, "src", m.Edges[0].From)
	assert.Equal(t, 16, m.Edges[0].Capacity)
}

func TestLoadManifestRejectsMissingComponent(t *testing.T) {
	path := writeManifest(t, "nodes:\n  - id: bad\n")
	_, err := loadManifest(path)
	assert.Error(t, err)
}

func TestLoadManifestRejectsIncompleteEdge(t *testing.T) {
	path := writeManifest(t, "edges:\n  - from: a\n    from_slot: out\n")
	_, err := loadManifest(path)
	assert.Error(t, err)
}

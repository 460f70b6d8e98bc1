package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifest is a declarative description of nodes and edges to create
// in one pass, analogous to a deployment manifest: write the desired
// graph once, apply it, re-run safely against an empty graph.
type manifest struct {
	Nodes []manifestNode `yaml:"nodes"`
	Edges []manifestEdge `yaml:"edges"`
}

type manifestNode struct {
	ID        string                 `yaml:"id"`
	Component string                 `yaml:"component"`
	InitArgs  map[string]interface{} `yaml:"init_args"`
}

type manifestEdge struct {
	From     string `yaml:"from"`
	FromSlot string `yaml:"from_slot"`
	To       string `yaml:"to"`
	ToSlot   string `yaml:"to_slot"`
	Capacity int    `yaml:"capacity"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}
	for i, n := range m.Nodes {
		if n.Component == "" {
			return nil, fmt.Errorf("manifest %q: nodes[%d] missing component", path, i)
		}
	}
	for i, e := range m.Edges {
		if e.From == "" || e.FromSlot == "" || e.To == "" || e.ToSlot == "" {
			return nil, fmt.Errorf("manifest %q: edges[%d] missing from/from_slot/to/to_slot", path, i)
		}
	}
	return &m, nil
}

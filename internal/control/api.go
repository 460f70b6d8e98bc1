// Package control implements the operations behind spec.md §6's
// control surface: component listing and graph mutation/inspection,
// shared between the HTTP control surface and the UDS-based
// internal/localctl server so both speak identical semantics.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/graph"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// API is the single place graph/runtime mutation and inspection
// requests pass through, whatever transport they arrived on.
type API struct {
	reg *registry.Registry
	g   *graph.Graph
	rt  *runtime.Runtime

	shutdownTimeout time.Duration
}

// New builds an API bound to reg/g/rt.
func New(reg *registry.Registry, g *graph.Graph, rt *runtime.Runtime, shutdownTimeout time.Duration) *API {
	return &API{reg: reg, g: g, rt: rt, shutdownTimeout: shutdownTimeout}
}

// Runtime exposes the bound runtime for transports that need direct
// channel access (the /frames and /video/ws streams).
func (a *API) Runtime() *runtime.Runtime { return a.rt }

// Graph exposes the bound graph for transports that need direct node
// lookups (video sink discovery for /video/ws/{node_id}).
func (a *API) Graph() *graph.Graph { return a.g }

// ListComponentsResult is the /component response payload.
type ListComponentsResult struct {
	Components []ComponentInfo `json:"components"`
}

// ComponentInfo is one descriptor rendered for external consumers.
type ComponentInfo struct {
	Name     string                 `json:"name"`
	Category core.Category          `json:"category"`
	Inputs   []registry.Slot        `json:"inputs"`
	Outputs  []registry.Slot        `json:"outputs"`
	Params   []registry.ParamSchema `json:"params"`
}

// ListComponents returns every registered component descriptor.
func (a *API) ListComponents() ListComponentsResult {
	descs := a.reg.List()
	out := make([]ComponentInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, ComponentInfo{
			Name: d.Name, Category: d.Category, Inputs: d.Inputs, Outputs: d.Outputs, Params: d.Params,
		})
	}
	return ListComponentsResult{Components: out}
}

// AddNodeParams is the /graph/nodes POST body: spec.md §6.1
// `{type, id?, init?: {param → value}}`.
type AddNodeParams struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Init map[string]any `json:"init"`
}

// NodeInfo is a node rendered for external consumers: spec.md §6.1
// `{id, type, status}`.
type NodeInfo struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Status core.Status `json:"status"`
}

// AddNode instantiates and adds a node to the graph.
func (a *API) AddNode(p AddNodeParams) (NodeInfo, error) {
	n, err := a.g.AddNode(p.ID, p.Type, p.Init)
	if err != nil {
		return NodeInfo{}, err
	}
	return a.nodeInfo(n), nil
}

func (a *API) nodeInfo(n *graph.Node) NodeInfo {
	status := n.Status
	if s, _, err := a.rt.Status(n.ID); err == nil {
		status = s
	}
	return NodeInfo{ID: n.ID, Type: n.Component, Status: status}
}

// RemoveNode deletes a node by id.
func (a *API) RemoveNode(id string) error {
	return a.g.RemoveNode(id)
}

// ListNodes returns every node currently in the graph.
func (a *API) ListNodes() []NodeInfo {
	nodes := a.g.ListNodes()
	out := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, a.nodeInfo(n))
	}
	return out
}

// AddEdgeParams is the /graph/edges POST body: spec.md §6.1
// `{source_node, source_slot, target_node, target_slot}`. Capacity is
// an additive extension (spec.md §9(c) invites additive metrics/wire
// extensions); it has no effect on the tuple identity of the edge.
type AddEdgeParams struct {
	SourceNode string `json:"source_node"`
	SourceSlot string `json:"source_slot"`
	TargetNode string `json:"target_node"`
	TargetSlot string `json:"target_slot"`
	Capacity   int    `json:"capacity"`
}

// EdgeInfo is an edge rendered for external consumers: spec.md §6.1
// `{source_node, source_slot, target_node, target_slot}`. The internal
// edge id is deliberately not exposed — DELETE /graph/edges addresses
// edges by this same four-tuple.
type EdgeInfo struct {
	SourceNode string `json:"source_node"`
	SourceSlot string `json:"source_slot"`
	TargetNode string `json:"target_node"`
	TargetSlot string `json:"target_slot"`
}

// AddEdge wires two nodes together.
func (a *API) AddEdge(p AddEdgeParams) (EdgeInfo, error) {
	e, err := a.g.AddEdge("", p.SourceNode, p.SourceSlot, p.TargetNode, p.TargetSlot, p.Capacity)
	if err != nil {
		return EdgeInfo{}, err
	}
	return edgeInfo(e), nil
}

func edgeInfo(e *graph.Edge) EdgeInfo {
	return EdgeInfo{SourceNode: e.FromNode, SourceSlot: e.FromSlot, TargetNode: e.ToNode, TargetSlot: e.ToSlot}
}

// RemoveEdge deletes the edge matching the four-tuple p, resolving it
// to the internal edge id server-side since callers never receive one.
func (a *API) RemoveEdge(p AddEdgeParams) error {
	e, err := a.g.FindEdge(p.SourceNode, p.SourceSlot, p.TargetNode, p.TargetSlot)
	if err != nil {
		return err
	}
	return a.g.RemoveEdge(e.ID)
}

// ListEdges returns every edge currently in the graph.
func (a *API) ListEdges() []EdgeInfo {
	edges := a.g.ListEdges()
	out := make([]EdgeInfo, 0, len(edges))
	for _, e := range edges {
		out = append(out, edgeInfo(e))
	}
	return out
}

// StartGraph starts the runtime over the current graph.
func (a *API) StartGraph(ctx context.Context) error {
	return a.rt.Start(ctx)
}

// StopGraph stops the runtime, waiting up to the configured shutdown
// timeout for node tasks to exit.
func (a *API) StopGraph() error {
	return a.rt.Stop(a.shutdownTimeout)
}

// NodeStatus returns one node's lifecycle status and last error (if any).
func (a *API) NodeStatus(id string) (core.Status, error, error) {
	return a.rt.Status(id)
}

// Dispatch routes a method name + raw JSON params to the matching API
// call, used by internal/localctl so the UDS control plane and the
// HTTP control surface share one implementation.
func (a *API) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "component.list":
		return a.ListComponents(), nil

	case "graph.add_node":
		var p AddNodeParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return a.AddNode(p)

	case "graph.remove_node":
		var p struct {
			ID string `json:"id"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return nil, a.RemoveNode(p.ID)

	case "graph.list_nodes":
		return a.ListNodes(), nil

	case "graph.add_edge":
		var p AddEdgeParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return a.AddEdge(p)

	case "graph.remove_edge":
		var p AddEdgeParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return nil, a.RemoveEdge(p)

	case "graph.list_edges":
		return a.ListEdges(), nil

	case "graph.start":
		if err := a.StartGraph(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "running"}, nil

	case "graph.stop":
		if err := a.StopGraph(); err != nil {
			return nil, err
		}
		return map[string]string{"status": "stopped"}, nil

	case "graph.node_status":
		var p struct {
			ID string `json:"id"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		status, nodeErr, err := a.NodeStatus(p.ID)
		if err != nil {
			return nil, err
		}
		result := map[string]any{"status": status}
		if nodeErr != nil {
			result["error"] = nodeErr.Error()
		}
		return result, nil

	default:
		return nil, fmt.Errorf("method %q: %w", method, errMethodNotFound)
	}
}

var errMethodNotFound = errors.New("method not found")

func unmarshalParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidArgs, err)
	}
	return nil
}

// errCodes pairs each sentinel with the stable machine-readable code
// spec.md §7 names for it and the HTTP status spec.md §6.1 assigns it.
// errMethodNotFound is ours (no RPC-method concept in the spec), kept
// at 400 alongside the other malformed-request kinds.
var errCodes = []struct {
	err    error
	code   string
	status int
}{
	{core.ErrComponentNotFound, "ComponentNotFound", http.StatusNotFound},
	{core.ErrNodeNotFound, "NodeNotFound", http.StatusNotFound},
	{core.ErrEdgeNotFound, "EdgeNotFound", http.StatusNotFound},
	{core.ErrDuplicateID, "DuplicateId", http.StatusConflict},
	{core.ErrAlreadyRunning, "AlreadyRunning", http.StatusConflict},
	{core.ErrAlreadySubscribed, "AlreadySubscribed", http.StatusConflict},
	{core.ErrInvalidArgs, "InvalidArgs", http.StatusBadRequest},
	{core.ErrUnknownSlot, "UnknownSlot", http.StatusBadRequest},
	{core.ErrTypeMismatch, "TypeMismatch", http.StatusBadRequest},
	{core.ErrDuplicateEdge, "DuplicateEdge", http.StatusBadRequest},
	{core.ErrCycleDetected, "CycleDetected", http.StatusBadRequest},
	{core.ErrChannelClosed, "ChannelClosed", http.StatusInternalServerError},
	{errMethodNotFound, "MethodNotFound", http.StatusBadRequest},
}

// ErrCode returns the stable machine-readable code and HTTP status for
// err, falling back to a generic "Internal" / 500 for anything the
// table above doesn't recognize.
func ErrCode(err error) (code string, status int) {
	for _, c := range errCodes {
		if errors.Is(err, c.err) {
			return c.code, c.status
		}
	}
	return "Internal", http.StatusInternalServerError
}

// IsNotFound reports whether err represents a missing resource.
func IsNotFound(err error) bool {
	_, status := ErrCode(err)
	return status == http.StatusNotFound
}

// IsInvalidArgs reports whether err represents a bad request.
func IsInvalidArgs(err error) bool {
	_, status := ErrCode(err)
	return status == http.StatusBadRequest
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Apply manifests and control the graph lifecycle",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the runtime over the current graph",
	Run: func(cmd *cobra.Command, args []string) {
		if err := rpcClient().call(context.Background(), "graph.start", nil, nil); err != nil {
			exitWithError("graph.start failed", err)
			return
		}
		fmt.Println("graph started")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running graph",
	Run: func(cmd *cobra.Command, args []string) {
		if err := rpcClient().call(context.Background(), "graph.stop", nil, nil); err != nil {
			exitWithError("graph.stop failed", err)
			return
		}
		fmt.Println("graph stopped")
	},
}

var applyManifestFile string

var graphApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create every node and edge declared in a YAML manifest",
	Run: func(cmd *cobra.Command, args []string) {
		m, err := loadManifest(applyManifestFile)
		if err != nil {
			exitWithError("load manifest", err)
			return
		}
		ctx := context.Background()
		rc := rpcClient()
		for _, n := range m.Nodes {
			params := map[string]interface{}{"id": n.ID, "type": n.Component, "init": n.InitArgs}
			var result map[string]interface{}
			if err := rc.call(ctx, "graph.add_node", params, &result); err != nil {
				exitWithError(fmt.Sprintf("add node %q", n.ID), err)
				return
			}
			fmt.Printf("node %v created\n", result["id"])
		}
		for _, e := range m.Edges {
			params := map[string]interface{}{
				"source_node": e.From, "source_slot": e.FromSlot,
				"target_node": e.To, "target_slot": e.ToSlot, "capacity": e.Capacity,
			}
			var result map[string]interface{}
			if err := rc.call(ctx, "graph.add_edge", params, &result); err != nil {
				exitWithError(fmt.Sprintf("add edge %s.%s -> %s.%s", e.From, e.FromSlot, e.To, e.ToSlot), err)
				return
			}
			fmt.Printf("edge %s.%s -> %s.%s created\n", result["source_node"], result["source_slot"], result["target_node"], result["target_slot"])
		}
	},
}

func init() {
	graphApplyCmd.Flags().StringVarP(&applyManifestFile, "file", "f", "", "manifest YAML file (required)")
	graphApplyCmd.MarkFlagRequired("file")

	graphCmd.AddCommand(graphApplyCmd)
	graphCmd.AddCommand(startCmd)
	graphCmd.AddCommand(stopCmd)
	graphCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <node-id>",
	Short: "Get one node's lifecycle status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		params := map[string]string{"id": args[0]}
		var result map[string]interface{}
		if err := rpcClient().call(context.Background(), "graph.node_status", params, &result); err != nil {
			exitWithError("graph.node_status failed", err)
			return
		}
		printJSON(result)
	},
}

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage graph nodes",
}

var (
	nodeID        string
	nodeComponent string
	nodeInitArgs  string
)

var nodeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Instantiate a component and add it as a node",
	Run: func(cmd *cobra.Command, args []string) {
		var initArgs map[string]interface{}
		if nodeInitArgs != "" {
			if err := json.Unmarshal([]byte(nodeInitArgs), &initArgs); err != nil {
				exitWithError("invalid --init-args JSON", err)
				return
			}
		}
		params := map[string]interface{}{
			"id":   nodeID,
			"type": nodeComponent,
			"init": initArgs,
		}
		var result map[string]interface{}
		if err := rpcClient().call(context.Background(), "graph.add_node", params, &result); err != nil {
			exitWithError("graph.add_node failed", err)
			return
		}
		printJSON(result)
	},
}

var nodeRemoveCmd = &cobra.Command{
	Use:   "rm <node-id>",
	Short: "Remove a node by id",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		params := map[string]string{"id": args[0]}
		if err := rpcClient().call(context.Background(), "graph.remove_node", params, nil); err != nil {
			exitWithError("graph.remove_node failed", err)
			return
		}
		fmt.Printf("node %s removed\n", args[0])
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every node in the graph",
	Run: func(cmd *cobra.Command, args []string) {
		var result []map[string]interface{}
		if err := rpcClient().call(context.Background(), "graph.list_nodes", nil, &result); err != nil {
			exitWithError("graph.list_nodes failed", err)
			return
		}
		printJSON(result)
	},
}

func init() {
	nodeAddCmd.Flags().StringVar(&nodeID, "id", "", "node id (generated if omitted)")
	nodeAddCmd.Flags().StringVar(&nodeComponent, "component", "", "registered component name (required)")
	nodeAddCmd.Flags().StringVar(&nodeInitArgs, "init-args", "", "component init args as a JSON object")
	nodeAddCmd.MarkFlagRequired("component")

	nodeCmd.AddCommand(nodeAddCmd)
	nodeCmd.AddCommand(nodeRemoveCmd)
	nodeCmd.AddCommand(nodeListCmd)
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Manage graph edges",
}

var (
	edgeFrom       string
	edgeFromSlot   string
	edgeTo         string
	edgeToSlot     string
	edgeCapacity   int
	edgeRmFrom     string
	edgeRmFromSlot string
	edgeRmTo       string
	edgeRmToSlot   string
)

var edgeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Connect an output slot to an input slot",
	Run: func(cmd *cobra.Command, args []string) {
		params := map[string]interface{}{
			"source_node": edgeFrom,
			"source_slot": edgeFromSlot,
			"target_node": edgeTo,
			"target_slot": edgeToSlot,
			"capacity":    edgeCapacity,
		}
		var result map[string]interface{}
		if err := rpcClient().call(context.Background(), "graph.add_edge", params, &result); err != nil {
			exitWithError("graph.add_edge failed", err)
			return
		}
		printJSON(result)
	},
}

var edgeRemoveCmd = &cobra.Command{
	Use:   "rm",
	Short: "Remove an edge, identified by its source/target tuple",
	Run: func(cmd *cobra.Command, args []string) {
		params := map[string]interface{}{
			"source_node": edgeRmFrom,
			"source_slot": edgeRmFromSlot,
			"target_node": edgeRmTo,
			"target_slot": edgeRmToSlot,
		}
		if err := rpcClient().call(context.Background(), "graph.remove_edge", params, nil); err != nil {
			exitWithError("graph.remove_edge failed", err)
			return
		}
		fmt.Printf("edge %s.%s -> %s.%s removed\n", edgeRmFrom, edgeRmFromSlot, edgeRmTo, edgeRmToSlot)
	},
}

var edgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every edge in the graph",
	Run: func(cmd *cobra.Command, args []string) {
		var result []map[string]interface{}
		if err := rpcClient().call(context.Background(), "graph.list_edges", nil, &result); err != nil {
			exitWithError("graph.list_edges failed", err)
			return
		}
		printJSON(result)
	},
}

func init() {
	edgeAddCmd.Flags().StringVar(&edgeFrom, "from", "", "source node id (required)")
	edgeAddCmd.Flags().StringVar(&edgeFromSlot, "from-slot", "", "source output slot (required)")
	edgeAddCmd.Flags().StringVar(&edgeTo, "to", "", "destination node id (required)")
	edgeAddCmd.Flags().StringVar(&edgeToSlot, "to-slot", "", "destination input slot (required)")
	edgeAddCmd.Flags().IntVar(&edgeCapacity, "capacity", 0, "per-subscriber buffer capacity override (0 = channel default)")
	edgeAddCmd.MarkFlagRequired("from")
	edgeAddCmd.MarkFlagRequired("from-slot")
	edgeAddCmd.MarkFlagRequired("to")
	edgeAddCmd.MarkFlagRequired("to-slot")

	edgeRemoveCmd.Flags().StringVar(&edgeRmFrom, "from", "", "source node id (required)")
	edgeRemoveCmd.Flags().StringVar(&edgeRmFromSlot, "from-slot", "", "source output slot (required)")
	edgeRemoveCmd.Flags().StringVar(&edgeRmTo, "to", "", "destination node id (required)")
	edgeRemoveCmd.Flags().StringVar(&edgeRmToSlot, "to-slot", "", "destination input slot (required)")
	edgeRemoveCmd.MarkFlagRequired("from")
	edgeRemoveCmd.MarkFlagRequired("from-slot")
	edgeRemoveCmd.MarkFlagRequired("to")
	edgeRemoveCmd.MarkFlagRequired("to-slot")

	edgeCmd.AddCommand(edgeAddCmd)
	edgeCmd.AddCommand(edgeRemoveCmd)
	edgeCmd.AddCommand(edgeListCmd)
}

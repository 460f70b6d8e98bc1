// Command wireflowctl is a CLI client for wireflowd's local control
// plane: it speaks the same JSON-RPC methods the UDS server in
// internal/localctl dispatches through internal/control.API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	socketPath string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "wireflowctl",
	Short: "Control client for the wireflowd dataflow pipeline daemon",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/wireflow.sock",
		"wireflowd UDS control socket path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	rootCmd.AddCommand(componentCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(edgeCmd)
	rootCmd.AddCommand(graphCmd)
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wireflowctl: %v\n", err)
		os.Exit(1)
	}
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

func rpcClient() *client {
	return newClient(socketPath, timeout)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitWithError("format result", err)
		return
	}
	fmt.Println(string(data))
}

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Inspect registered components",
}

var componentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered component descriptor",
	Run: func(cmd *cobra.Command, args []string) {
		var result map[string]interface{}
		if err := rpcClient().call(context.Background(), "component.list", nil, &result); err != nil {
			exitWithError("component.list failed", err)
			return
		}
		printJSON(result)
	},
}

func init() {
	componentCmd.AddCommand(componentListCmd)
}

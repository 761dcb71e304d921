package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/agentgraph/internal/presentation/graph"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the agent graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the compiled agent graph.
With --thread, the node the thread will run next is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		asJSON, _ := cmd.Flags().GetBool("json")

		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		g := rt.Engine.Graph()
		if asJSON {
			data, err := json.MarshalIndent(graph.Describe(g), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		var overlay *graph.GraphOverlay
		if threadID != "" {
			cp, err := rt.Engine.Thread(cmd.Context(), threadID)
			if err != nil {
				return fmt.Errorf("error loading thread '%s': %w", threadID, err)
			}
			overlay = &graph.GraphOverlay{
				CurrentNode: cp.NextNode,
				Terminated:  cp.Status == domain.StatusTerminated,
			}
		}

		fmt.Print(graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("thread", "t", "", "Highlight the next node of this thread")
	graphCmd.Flags().Bool("json", false, "Print the graph structure as JSON instead of Mermaid")
}

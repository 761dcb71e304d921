package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage stored threads",
	Long:  `List, inspect and remove the threads kept by the configured checkpoint store.`,
}

var threadLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		threads, err := rt.Engine.Threads(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing threads: %w", err)
		}

		if len(threads) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		fmt.Println("Threads:")
		for _, id := range threads {
			fmt.Println("- " + id)
		}
		return nil
	},
}

var threadInspectCmd = &cobra.Command{
	Use:   "inspect <thread-id>",
	Short: "Print the latest checkpoint of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID := args[0]
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		cp, err := rt.Engine.Thread(cmd.Context(), threadID)
		if err != nil {
			return fmt.Errorf("error loading thread '%s': %w", threadID, err)
		}

		// Pretty print JSON
		data, err := json.MarshalIndent(cp, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling checkpoint: %w", err)
		}

		fmt.Println(string(data))
		return nil
	},
}

var threadRmCmd = &cobra.Command{
	Use:   "rm <thread-id>...",
	Short: "Remove one or more threads",
	Args: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		if all, _ := cmd.Flags().GetBool("all"); all {
			if args, err = rt.Engine.Threads(cmd.Context()); err != nil {
				return fmt.Errorf("error listing threads: %w", err)
			}
		}

		failed := 0
		for _, threadID := range args {
			if err := rt.Engine.Delete(cmd.Context(), threadID); err != nil {
				fmt.Printf("Error removing '%s': %v\n", threadID, err)
				failed++
			} else {
				fmt.Printf("Removed thread '%s'\n", threadID)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d threads could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadLsCmd)
	threadCmd.AddCommand(threadInspectCmd)
	threadCmd.AddCommand(threadRmCmd)

	threadRmCmd.Flags().Bool("all", false, "Remove every stored thread")
}

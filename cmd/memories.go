package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var memoriesLimit int

var memoriesCmd = &cobra.Command{
	Use:   "memories <query>",
	Short: "Search past events by keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		query := strings.Join(args, " ")
		events, err := eng.memory.SearchKeyword(cmd.Context(), query, memoriesLimit)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("No matching memories.")
			return nil
		}

		for _, event := range events {
			fmt.Printf("%s  [%s]  %s\n", event.CreatedAt.Format("2006-01-02"), event.Type, event.Content)
			if event.Outcome != nil {
				fmt.Printf("  outcome: %.2f\n", *event.Outcome)
			}
		}
		return nil
	},
}

func init() {
	memoriesCmd.Flags().IntVarP(&memoriesLimit, "limit", "n", 10, "maximum results")
	rootCmd.AddCommand(memoriesCmd)
}

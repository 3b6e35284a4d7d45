package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xcm-transfer/config"
	"xcm-transfer/pkg/history"
	"xcm-transfer/pkg/xcm"
)

var (
	historyDestFilter uint32
)

var historyCmd = &cobra.Command{
	Use:   "history <address>",
	Short: "Show the account's cross-chain transfer history",
	Long: `Query the external transfer-history indexer for an account. Chain
identifiers are mapped to the configured canonical names; unknown chains
are shown as "Parachain <id>". History is best-effort: if the indexer is
unreachable the list is simply empty.

Examples:
  xcm-transfer history 14Gj...xyz
  xcm-transfer history 14Gj...xyz --dest 2037
  xcm-transfer history 14Gj...xyz --json`,
	Args: cobra.ExactArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Uint32Var(&historyDestFilter, "dest", 0, "Filter by destination chain id (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) {
	account := args[0]
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		return
	}
	log := newLogger(verbose)

	topo, err := xcm.NewTopology(cfg.Chains)
	if err != nil {
		printError(err)
		return
	}

	client := history.NewClient(cfg.Indexer, log)
	reconciler := history.NewReconciler(client, topo, log)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching transfer history..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Indexer.Timeout+5*time.Second)
	defer cancel()
	records := reconciler.Fetch(ctx, account, historyDestFilter)

	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		out := make([]map[string]string, 0, len(records))
		for _, rec := range records {
			out = append(out, map[string]string{
				"message_id":  rec.MessageID,
				"source":      rec.SourceChain,
				"destination": rec.DestinationChain,
				"asset":       rec.Asset,
				"amount":      rec.Amount.DisplayString(),
				"status":      rec.Status,
				"observed_at": rec.ObservedAt.Format(time.RFC3339),
			})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(records) == 0 {
		fmt.Println("\nNo transfers found (or the indexer is unavailable).")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      TRANSFER HISTORY")
	fmt.Println(strings.Repeat("=", 70))

	for _, rec := range records {
		fmt.Printf("\n  %s  %s -> %s\n",
			rec.ObservedAt.Format("2006-01-02 15:04:05"),
			color.CyanString(rec.SourceChain), color.CyanString(rec.DestinationChain))
		fmt.Printf("    %s %s   %s\n",
			rec.Amount.DisplayString(), rec.Asset, coloredHistoryStatus(rec.Status))
		fmt.Printf("    %s\n", color.HiBlackString(rec.MessageID))
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredHistoryStatus(status string) string {
	switch strings.ToLower(status) {
	case "success", "completed":
		return color.GreenString(status)
	case "pending", "relayed", "processing":
		return color.YellowString(status)
	case "failed":
		return color.RedString(status)
	default:
		return status
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xcm-transfer/config"
	"xcm-transfer/pkg/balance"
	"xcm-transfer/pkg/chainconn"
)

var (
	watchBalances bool
)

var balancesCmd = &cobra.Command{
	Use:   "balances <address>",
	Short: "Show the asset balance on every configured chain",
	Long: `Fetch the account's balance on every chain in the topology concurrently.
A chain that is slow or unreachable never blocks the others; its row shows
the error instead.

Examples:
  xcm-transfer balances 14Gj...xyz
  xcm-transfer balances 14Gj...xyz --watch
  xcm-transfer balances 14Gj...xyz --json`,
	Args: cobra.ExactArgs(1),
	Run:  runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)

	balancesCmd.Flags().BoolVarP(&watchBalances, "watch", "w", false, "Keep polling on the configured interval")
}

func runBalances(cmd *cobra.Command, args []string) {
	account := args[0]
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		return
	}
	log := newLogger(verbose)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Connecting to chains..."
		s.Start()
	}

	registry, err := chainconn.NewRegistry(context.Background(), cfg, log)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		return
	}
	defer registry.Close()

	agg := balance.New(registry, cfg.Asset, log)

	if !watchBalances {
		fetchAndDisplayBalances(agg, cfg, account, jsonOutput)
		return
	}

	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		return
	}

	fmt.Printf("\nWatching balances for %s\n", color.CyanString(account))
	fmt.Printf("Polling every %s. Press Ctrl+C to stop.\n", cfg.Policy.PollInterval)

	poller := balance.NewPoller(agg, cfg.Policy.PollInterval, log)
	poller.OnPoll(func(errs map[string]error) {
		displayBalances(agg, cfg, errs, false)
	})
	poller.SetAccount(account)
	defer poller.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
}

func fetchAndDisplayBalances(agg *balance.Aggregator, cfg *config.Config, account string, jsonOutput bool) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout+5*time.Second)
	defer cancel()

	displayBalances(agg, cfg, agg.RefreshAll(ctx, account), jsonOutput)
}

func displayBalances(agg *balance.Aggregator, cfg *config.Config, errs map[string]error, jsonOutput bool) {
	if jsonOutput {
		out := make(map[string]interface{}, len(cfg.Chains))
		for _, chain := range cfg.Chains {
			if err := errs[chain.Name]; err != nil {
				out[chain.Name] = map[string]string{"error": err.Error()}
				continue
			}
			if snap, ok := agg.Latest(chain.Name); ok {
				out[chain.Name] = map[string]string{
					"free":     snap.Free.DisplayString(),
					"reserved": snap.Reserved.DisplayString(),
					"total":    snap.Total.DisplayString(),
				}
			}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      BALANCES (%s)", cfg.Asset.Symbol)
	fmt.Println(strings.Repeat("=", 70))

	for _, chain := range cfg.Chains {
		if err := errs[chain.Name]; err != nil {
			fmt.Printf("\n  %-12s %s\n", color.CyanString(chain.Name), color.RedString("unavailable: %v", err))
			continue
		}
		snap, ok := agg.Latest(chain.Name)
		if !ok {
			continue
		}
		fmt.Printf("\n  %-12s free %-14s reserved %-14s total %s\n",
			color.CyanString(chain.Name),
			snap.Free.DisplayString(), snap.Reserved.DisplayString(),
			color.YellowString(snap.Total.DisplayString()))
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

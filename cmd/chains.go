package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xcm-transfer/config"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List the configured transfer topology",
	Long: `List every chain in the configured topology with its para id and RPC
endpoint. The chain with para id 0 is the relay; all others are its
children.

Examples:
  xcm-transfer chains
  xcm-transfer chains --json`,
	Run: runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runChains(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		return
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(cfg.Chains, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      CONFIGURED CHAINS")
	fmt.Println(strings.Repeat("=", 70))

	for _, chain := range cfg.Chains {
		role := "parachain"
		if chain.ParaID == 0 {
			role = "relay"
		}
		fmt.Printf("\n  %-12s %-10s para id %-6d %s\n",
			color.CyanString(chain.Name), role, chain.ParaID, color.HiBlackString(chain.RPCURL))
	}

	fmt.Printf("\n  Asset: %s (%d decimals, native on %s)\n",
		color.YellowString(cfg.Asset.Symbol), cfg.Asset.Decimals, cfg.Asset.NativeChain)
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

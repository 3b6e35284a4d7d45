package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xcm-transfer/config"
	"xcm-transfer/pkg/balance"
	"xcm-transfer/pkg/chainconn"
	"xcm-transfer/pkg/orchestrator"
	"xcm-transfer/pkg/signer"
	"xcm-transfer/pkg/xcm"
)

var (
	transferFrom        string
	transferTo          string
	transferBeneficiary string
	transferNoConfirm   bool
)

var transferCmd = &cobra.Command{
	Use:   "transfer <amount>",
	Short: "Move the asset from one chain to another",
	Long: `Transfer an amount of the configured asset between two chains in the
topology. The amount is validated against the configured bounds and the
source chain's spendable balance before anything is signed; the submitted
transfer is then tracked through broadcast, block inclusion and finality.

IMPORTANT:
  - The signing seed comes from XCM_TRANSFER_SIGNER_SEED
  - Finality can take minutes; the command waits for a terminal state

Examples:
  xcm-transfer transfer 1.5 --from Polkadot --to AssetHub --beneficiary 14Gj...xyz
  xcm-transfer transfer 0.5 --from AssetHub --to Unique --beneficiary 14Gj...xyz --yes`,
	Args: cobra.ExactArgs(1),
	Run:  runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().StringVar(&transferFrom, "from", "", "Source chain name (REQUIRED)")
	transferCmd.Flags().StringVar(&transferTo, "to", "", "Destination chain name (REQUIRED)")
	transferCmd.Flags().StringVar(&transferBeneficiary, "beneficiary", "", "Recipient SS58 address (REQUIRED)")
	transferCmd.Flags().BoolVarP(&transferNoConfirm, "yes", "y", false, "Skip confirmation prompt")
	_ = transferCmd.MarkFlagRequired("from")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("beneficiary")
}

func runTransfer(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	log := newLogger(verbose)

	intent := orchestrator.Intent{
		SourceChain:      transferFrom,
		DestinationChain: transferTo,
		Asset:            cfg.Asset.Symbol,
		Amount:           args[0],
		Beneficiary:      transferBeneficiary,
	}

	if !transferNoConfirm {
		fmt.Printf("\nTransfer %s %s from %s to %s\n",
			color.YellowString(intent.Amount), cfg.Asset.Symbol,
			color.CyanString(intent.SourceChain), color.CyanString(intent.DestinationChain))
		fmt.Printf("Beneficiary: %s\n", intent.Beneficiary)
		fmt.Print("Proceed? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			fmt.Println("Aborted.")
			return
		}
	}

	keystore, err := signer.NewKeystore(cfg.Signer)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Connecting to chains..."
	s.Start()

	registry, err := chainconn.NewRegistry(context.Background(), cfg, log)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer registry.Close()

	topo, err := xcm.NewTopology(cfg.Chains)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	policy, err := orchestrator.PolicyFromConfig(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	agg := balance.New(registry, cfg.Asset, log)
	orch, err := orchestrator.New(registry, agg, topo, keystore, policy, log)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// The command blocks until a terminal state; the orchestrator itself
	// stays responsive, which matters for embedders with interactive UIs.
	done := make(chan orchestrator.Attempt, 1)
	orch.OnTransition(func(at orchestrator.Attempt) {
		displayTransition(at)
		if at.State.Terminal() {
			select {
			case done <- at:
			default:
			}
		}
	})

	if _, err := orch.Submit(context.Background(), intent); err != nil {
		printError(err)
		os.Exit(1)
	}

	final := <-done
	switch final.State {
	case orchestrator.StateFinalizedSuccess:
		printSuccess(fmt.Sprintf("Transfer finalized. Tx: %s", final.TxHash))
	default:
		printError(fmt.Errorf("%s", final.FailureReason))
		os.Exit(1)
	}
}

func displayTransition(at orchestrator.Attempt) {
	fmt.Printf("  %s %s\n", time.Now().Format("15:04:05"), coloredState(at.State))
	if at.FailureReason != "" {
		fmt.Printf("           %s\n", color.RedString(at.FailureReason))
	}
}

func coloredState(state orchestrator.State) string {
	switch state {
	case orchestrator.StateFinalizedSuccess:
		return color.GreenString(string(state))
	case orchestrator.StateRejected, orchestrator.StateError, orchestrator.StateFinalizedFailure:
		return color.RedString(string(state))
	case orchestrator.StateSubmitted, orchestrator.StateInBlock:
		return color.YellowString(string(state))
	default:
		return string(state)
	}
}

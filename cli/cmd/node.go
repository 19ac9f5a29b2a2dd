package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/truetrustorg/truetrust-go/core"
	"github.com/truetrustorg/truetrust-go/core/pot"
	"github.com/truetrustorg/truetrust-go/explorer"
)

func RunNode(cmdCtx *cli.Context) error {
	configPath := cmdCtx.String("config")

	config, err := pot.LoadNodeConfig(configPath)
	if err != nil {
		return err
	}
	if addr := cmdCtx.String("explorer"); addr != "" {
		config.ExplorerAddr = addr
	}
	if millis := cmdCtx.Uint64("slot-millis"); millis != 0 {
		config.SlotDurationMillis = millis
	}
	if slots := cmdCtx.Uint64("slots-per-epoch"); slots != 0 {
		config.SlotsPerEpoch = slots
	}
	if err := config.Verify(); err != nil {
		return err
	}

	node, err := pot.NewNodeFromConfig(config, nil)
	if err != nil {
		return err
	}

	// Handle process signals.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c

		fmt.Println("Shutting down...")
		node.Shutdown()

		os.Exit(1)
	}()

	expl := explorer.NewValidatorExplorerServer(node.Engine, config.ExplorerAddr)
	go expl.Start()

	node.Start()
	return nil
}

func RunVerifyWitness(cmdCtx *cli.Context) error {
	rootHex := cmdCtx.String("root")
	witnessHex := cmdCtx.String("witness")

	root, err := core.HexStringToBytes32(rootHex)
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	witnessRaw, err := hex.DecodeString(witnessHex)
	if err != nil {
		return fmt.Errorf("invalid witness: %w", err)
	}
	witness, err := pot.DecodeWitness(witnessRaw)
	if err != nil {
		return err
	}

	if !pot.VerifyWitness(root, witness) {
		return fmt.Errorf("witness for %s does NOT verify against root %s", witness.Who.ShortString(), rootHex)
	}

	fmt.Printf("witness OK\n")
	fmt.Printf("  validator: %s\n", witness.Who)
	fmt.Printf("  trust:     %.4f\n", pot.QToFloat(witness.TrustQ))
	fmt.Printf("  quality:   %.4f\n", pot.QToFloat(witness.QualityQ))
	fmt.Printf("  stake:     %.4f\n", pot.QToFloat(witness.StakeQ))
	fmt.Printf("  weight:    %s\n", witness.Weight.Dec())
	return nil
}

package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusconnect/campusconnect/internal/emulator"
	"github.com/campusconnect/campusconnect/internal/models"
)

var (
	simMode     string
	simCount    int
	simDelay    time.Duration
	simMinDelay time.Duration
	simMaxDelay time.Duration
	simDuration time.Duration
	simRate     int
	simOwners   string
	simSeed     int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate lost & found traffic against the server",
	Long: `Generate reports, claims and deletes from a set of fake students.

Modes:
  burst       --count actions with --delay between them
  continuous  random actions every --min-delay..--max-delay until interrupted
  stress      --rate actions per second for --duration
  flow        one item through report, claim and delete`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simMode, "mode", "burst", "burst, continuous, stress or flow")
	simulateCmd.Flags().IntVar(&simCount, "count", 10, "Actions in burst mode")
	simulateCmd.Flags().DurationVar(&simDelay, "delay", 200*time.Millisecond, "Delay between burst actions")
	simulateCmd.Flags().DurationVar(&simMinDelay, "min-delay", time.Second, "Shortest pause in continuous mode")
	simulateCmd.Flags().DurationVar(&simMaxDelay, "max-delay", 5*time.Second, "Longest pause in continuous mode")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 10*time.Second, "Length of a stress run")
	simulateCmd.Flags().IntVar(&simRate, "rate", 5, "Actions per second in stress mode")
	simulateCmd.Flags().StringVar(&simOwners, "owners", "demo@gmail.com,someoneelse@example.com", "Comma-separated reporter emails")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (default: current time)")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var owners []string
	for _, o := range strings.Split(simOwners, ",") {
		if o = strings.TrimSpace(o); o != "" {
			owners = append(owners, o)
		}
	}

	r := newReconciler(newClient())
	defer r.Close()
	if err := r.Refresh(ctx, models.ItemFilter{}); err != nil {
		return err
	}
	emu := emulator.New(r, owners, seed)

	var stats emulator.Stats
	var err error
	switch simMode {
	case "burst":
		stats, err = emu.Burst(ctx, simCount, simDelay)
	case "continuous":
		stats = emu.RunContinuous(ctx, simMinDelay, simMaxDelay)
	case "stress":
		stats, err = emu.Stress(ctx, simDuration, simRate)
	case "flow":
		err = emu.Flow(ctx)
	default:
		return fmt.Errorf("unknown mode %q", simMode)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "reported=%d claimed=%d deleted=%d failed=%d\n",
		stats.Reported, stats.Claimed, stats.Deleted, stats.Failed)
	return nil
}

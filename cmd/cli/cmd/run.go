package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/logger"
	"github.com/picogrid/drone-comms-sim/pkg/metrics"
	"github.com/picogrid/drone-comms-sim/pkg/simulation"
	"github.com/picogrid/drone-comms-sim/pkg/utils"

	// Import simulations to register them
	_ "github.com/picogrid/drone-comms-sim/cmd/drone-comms"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Run a simulation interactively or with specified parameters.

When a scenario file is given its values are used as-is and no parameters
are prompted for. DRONESIM_* environment variables override both.`,
	RunE: runSimulation,
}

// recorderSetter is implemented by simulations that can report transport
// statistics to a comms.Recorder
type recorderSetter interface {
	SetRecorder(rec comms.Recorder)
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().StringP("scenario", "c", "", "scenario file (YAML)")
	runCmd.Flags().Uint64("seed", 0, "random seed (0 uses the scenario seed)")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	_ = viper.BindPFlag("metrics-addr", runCmd.Flags().Lookup("metrics-addr"))
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	simName, err := selectSimulation(cmd)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	params, err := collectParameters(cmd, simName)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if addr := viper.GetString("metrics-addr"); addr != "" {
		if err := startMetrics(ctx, sim, addr); err != nil {
			return err
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Warn("\nReceived interrupt signal, stopping simulation...")
		if err := sim.Stop(); err != nil {
			logger.Errorf("Failed to stop simulation: %v", err)
			return
		}
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	if err := sim.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// collectParameters builds the parameter map for a simulation. A scenario
// file short-circuits prompting so its values are not masked by defaults.
func collectParameters(cmd *cobra.Command, simName string) (map[string]interface{}, error) {
	params := make(map[string]interface{})

	scenario, _ := cmd.Flags().GetString("scenario")
	if scenario == "" {
		simInfos, err := utils.DiscoverSimulations()
		if err != nil {
			return nil, fmt.Errorf("failed to discover simulations: %w", err)
		}
		info, err := utils.FindSimulation(simInfos, simName)
		if err != nil {
			return nil, err
		}
		params, err = utils.PromptForParameters(info.Config.Parameters)
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := os.Stat(scenario); err != nil {
			return nil, fmt.Errorf("scenario file: %w", err)
		}
		params["scenario"] = scenario
	}

	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetUint64("seed")
		params["seed"] = seed
	}
	return params, nil
}

// startMetrics exposes transport metrics for the lifetime of ctx
func startMetrics(ctx context.Context, sim simulation.Simulation, addr string) error {
	rs, ok := sim.(recorderSetter)
	if !ok {
		logger.Warnf("%s does not export metrics, ignoring --metrics-addr", sim.Name())
		return nil
	}

	collector, err := metrics.NewCommsCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	rs.SetRecorder(collector)

	go func() {
		if err := collector.Serve(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Metrics server stopped: %v", err)
		}
	}()
	return nil
}

func selectSimulation(cmd *cobra.Command) (string, error) {
	// Check if simulation is specified via flag
	simName, _ := cmd.Flags().GetString("simulation")
	if simName != "" {
		return simName, nil
	}

	registered := simulation.DefaultRegistry.List()
	if len(registered) == 0 {
		return "", fmt.Errorf("no simulations registered")
	}
	if len(registered) == 1 || !utils.IsInteractive() {
		return registered[0], nil
	}

	// Discover descriptions for the selection prompt
	descriptions := make(map[string]string)
	if simInfos, err := utils.DiscoverSimulations(); err == nil {
		for _, info := range simInfos {
			descriptions[info.Config.Name] = info.Config.Description
		}
	}

	// Interactive selection
	var selected string
	prompt := &survey.Select{
		Message: "Select simulation:",
		Options: registered,
		Description: func(value string, index int) string {
			return descriptions[value]
		},
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}

	return selected, nil
}

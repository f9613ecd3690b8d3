package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/drone-comms-sim/pkg/config"
	"github.com/picogrid/drone-comms-sim/pkg/logger"
	"github.com/picogrid/drone-comms-sim/pkg/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage scenario files",
	Long:  `Create, inspect and validate drone-comms scenario files`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default scenario to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  initScenario,
}

var configShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Show the effective scenario",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showScenario,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a scenario file",
	Args:  cobra.ExactArgs(1),
	RunE:  validateScenario,
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func initScenario(cmd *cobra.Command, args []string) error {
	path := "scenario.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		if !utils.IsInteractive() {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		overwrite := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("%s already exists. Overwrite?", path),
			Default: false,
		}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			logger.Info("Leaving existing scenario untouched")
			return nil
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to write scenario: %w", err)
	}

	logger.Successf("Default scenario written to %s", path)
	return nil
}

func showScenario(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := config.LoadConfigOrDefault(path)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	fmt.Println(cfg.String())
	return nil
}

func validateScenario(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(args[0])
	if err != nil {
		return err
	}

	logger.Successf("%s is valid: %d drones, %d steps of %.3fs", args[0], cfg.Fleet.Count, cfg.Steps(), cfg.Simulation.TimeStep)
	return nil
}

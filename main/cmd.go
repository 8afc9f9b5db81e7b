package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/takama/daemon"
)

const (
	// name of the service
	serviceName        = "hoverfc"
	serviceDescription = "quadrotor hover flight controller"
)

var RootCmd = &cobra.Command{
	Use:   "hoverfc",
	Short: "fixed-rate quadrotor hover controller",
	Long:  "hoverfc estimates attitude, height and drift at 500 Hz and drives four motors to hold a hover.",
}

func parseSettings(cmd *cobra.Command) (*HoverOpt, error) {
	desc := NewHoverDesc()
	if err := desc.Parse(cmd); err != nil {
		return nil, err
	}
	desc.PostParse()
	return &desc.Opt, nil
}

func ServeCmdRunE(cmd *cobra.Command, _ []string) error {
	opt, err := parseSettings(cmd)
	if err != nil {
		return err
	}
	return serve(opt)
}

func ReplayCmdRunE(cmd *cobra.Command, args []string) error {
	opt, err := parseSettings(cmd)
	if err != nil {
		return err
	}
	return runReplay(opt, args[0], os.Stdout)
}

func configFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file path")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

func ServeCmdFlags(cmd *cobra.Command) {
	configFlag(cmd)
	cmd.Flags().StringP("source", "s", sourceSim, "snapshot source: sim, replay, mpu6050 or icm20948")
	cmd.Flags().Float64P("duration", "d", 0, "stop after this many seconds, 0 runs until signalled")
	cmd.Flags().String("log-dir", defaultLogDir, "log directory")
}

var ServeCmd = &cobra.Command{
	Use:        "serve",
	SuggestFor: []string{"ru", "ser", "run"},
	Short:      "serve runs the flight loop using the configured source and outputs.",
	Long: `serve runs the flight loop. The configuration is taken from, in order:
1. path specified in --config flag
2. path defined in the HOVERFC_CONFIG environment variable
3. default location $HOME/.config/hoverfc/config.yaml, /etc/hoverfc/config.yaml, current directory
Values in the configuration file are overridden by HOVERFC_* environment
variables (e.g. HOVERFC_LOOP_SOURCE) and then by command line flags.
`,
	Example: `  hoverfc serve --config=/path/to/config.yaml
  hoverfc serve --source sim --duration 20`,
	RunE: ServeCmdRunE,
}

func InitCmdFlags(cmd *cobra.Command) {
	configFlag(cmd)
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", defaultConfigFile, "output path")
}

var InitCmd = &cobra.Command{
	Use:        "init",
	SuggestFor: []string{"ini", "in"},
	Short:      "init creates a configuration template",
	Long: `init creates a configuration template holding the calibrated vehicle defaults.
If --print is present, the configuration is printed to stdout.
Otherwise it is written to --output (default $HOME/.config/hoverfc/config.yaml),
overwriting an existing file only with --yes.
`,
	Example: `  hoverfc init --print
  hoverfc init -o /etc/hoverfc/config.yaml -y`,
	RunE: InitCfg,
}

var ReplayCmd = &cobra.Command{
	Use:   "replay TRACE",
	Short: "replay runs a recorded trace through a fresh controller",
	Long: `replay feeds every snapshot of a recorded trace (*_trace.csv.gz) through a fresh
estimator state and checks that each tick reproduces the recorded motor command.
`,
	Args: cobra.ExactArgs(1),
	RunE: ReplayCmdRunE,
}

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

func newService() (*Service, error) {
	srv, err := daemon.New(serviceName, serviceDescription, daemon.SystemDaemon)
	if err != nil {
		return nil, err
	}
	return &Service{srv}, nil
}

func serviceCmd(use, short string, run func(*Service) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := newService()
			if err != nil {
				return err
			}
			status, err := run(service)
			if err != nil {
				log.Errorln(status)
				return err
			}
			fmt.Println(status)
			return nil
		},
	}
}

func getRootCmd() *cobra.Command {
	ServeCmdFlags(ServeCmd)
	RootCmd.AddCommand(ServeCmd)

	InitCmdFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)

	configFlag(ReplayCmd)
	RootCmd.AddCommand(ReplayCmd)

	RootCmd.AddCommand(
		serviceCmd("install", "install hoverfc as a system service running 'serve'", func(s *Service) (string, error) {
			return s.Install("serve")
		}),
		serviceCmd("remove", "remove the system service", func(s *Service) (string, error) { return s.Remove() }),
		serviceCmd("start", "start the system service", func(s *Service) (string, error) { return s.Start() }),
		serviceCmd("stop", "stop the system service", func(s *Service) (string, error) { return s.Stop() }),
		serviceCmd("status", "show the system service status", func(s *Service) (string, error) { return s.Status() }),
	)
	return RootCmd
}

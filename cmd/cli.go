// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"strconv"

	"tuner/internal/config"
	"tuner/pkg/build"

	"github.com/spf13/cobra"
)

// One-off commands. The empty command runs a live session.
const (
	CommandList           = "list"
	CommandDevices        = "devices"
	CommandAnalyze        = "analyze"
	CommandTendencies     = "tendencies"
	CommandInstruments    = "instruments"
	CommandInstrumentsAdd = "instruments add"
	CommandInstrumentsUse = "instruments use"
)

// flagValues receives the command line flags before they are applied on
// top of the loaded configuration.
type flagValues struct {
	configPath      string
	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	bufferSize      int
	lowLatency      bool
	record          bool
	output          string
	verbose         bool
	logLevel        string
	headless        bool
	autoStart       bool
	endpoint        string
	store           string
	udp             string
	websocket       string
}

// ParseArgs builds the configuration from the config file, environment and
// args (without the program name). A nil config with a nil error means the
// request was fully handled here, e.g. --help or --version.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags   flagValues
		options *config.Config
	)

	// setCommand returns a Run function that records a one-off command.
	setCommand := func(name string) func(*cobra.Command, []string) {
		return func(_ *cobra.Command, args []string) {
			options.Command = name
			options.Args = args
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       build.VersionString(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			options = cfg
			return nil
		},
		Run: func(*cobra.Command, []string) {},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run:   setCommand(CommandList),
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandDevices,
		Short: "Pick an input device and sample rate interactively",
		Args:  cobra.NoArgs,
		Run:   setCommand(CommandDevices),
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandAnalyze + " FILE.wav",
		Short: "Replay a WAV file as one session and print its report",
		Args:  cobra.ExactArgs(1),
		Run:   setCommand(CommandAnalyze),
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandTendencies + " [INSTRUMENT_ID]",
		Short: "Show per-note tuning tendencies of an instrument",
		Args:  intArgs(0, 1),
		Run:   setCommand(CommandTendencies),
	})

	instrumentsCmd := &cobra.Command{
		Use:   CommandInstruments,
		Short: "List instruments in the catalog",
		Args:  cobra.NoArgs,
		Run:   setCommand(CommandInstruments),
	}
	instrumentsCmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Add an instrument to the catalog",
		Args:  cobra.ExactArgs(1),
		Run:   setCommand(CommandInstrumentsAdd),
	})
	instrumentsCmd.AddCommand(&cobra.Command{
		Use:   "use ID",
		Short: "Select the instrument new sessions are recorded against",
		Args:  intArgs(1, 1),
		Run:   setCommand(CommandInstrumentsUse),
	})
	rootCmd.AddCommand(instrumentsCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration file
	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML config file (default: tuner.yaml or config.yaml if present)")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture, downmixed to mono")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per callback (affects latency and update rate)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Tuner Configuration
	pf.IntVarP(&flags.bufferSize, "buffer-size", "n", config.DefaultBufferSize,
		"Samples analysed per pitch estimate (power of 2)")
	pf.BoolVar(&flags.autoStart, "auto-start", false,
		"Start a session as soon as capture begins")
	pf.BoolVar(&flags.headless, "headless", false,
		"Run without the terminal UI until interrupted")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", config.DefaultRecordInputStream,
		"Record audio from the specified input device")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Transport and Export Configuration
	pf.StringVar(&flags.websocket, "websocket", "",
		"Broadcast frames and events over WebSocket on this address, e.g. :8080")
	pf.StringVar(&flags.udp, "udp", "",
		"Send frame packets over UDP to this address, e.g. 127.0.0.1:9090")
	pf.StringVar(&flags.endpoint, "export-endpoint", "",
		"Base URL of the session API reports are posted to")
	pf.StringVar(&flags.store, "store", config.DefaultStorePath,
		"Local session store file, empty to disable")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", config.DefaultVerbosity,
		"Show verbose output")
	pf.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// apply copies every flag given on the command line into cfg.
func (f *flagValues) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("buffer-size") {
		cfg.Tuner.BufferSize = f.bufferSize
	}
	if changed("auto-start") {
		cfg.Session.AutoStart = f.autoStart
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = f.output
		cfg.Recording.Enabled = true
	}
	if changed("websocket") {
		cfg.Transport.WebSocketAddress = f.websocket
		cfg.Transport.WebSocketEnabled = true
	}
	if changed("udp") {
		cfg.Transport.UDPTargetAddress = f.udp
		cfg.Transport.UDPEnabled = true
	}
	if changed("export-endpoint") {
		cfg.Export.Endpoint = f.endpoint
	}
	if changed("store") {
		cfg.Export.StorePath = f.store
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
	}
	cfg.Headless = f.headless

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// intArgs accepts between minArgs and maxArgs integer arguments.
func intArgs(minArgs, maxArgs int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(minArgs, maxArgs)(cmd, args); err != nil {
			return err
		}
		for _, a := range args {
			if _, err := strconv.Atoi(a); err != nil {
				return fmt.Errorf("%q is not a number", a)
			}
		}
		return nil
	}
}

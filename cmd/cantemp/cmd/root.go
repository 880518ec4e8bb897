package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"cantemp"
)

var rootCmd = &cobra.Command{
	Use:          "cantemp",
	Short:        "CAN bus temperature reverse-engineering monitor",
	Long:         `Tracks per-identifier byte changes on a CAN bus, flags frames that plausibly carry a temperature and proposes decoded values under several candidate encodings.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	rootCmd.ExecuteContext(ctx)
}

const (
	flagPort     = "port"
	flagBaudrate = "baudrate"
	flagBitrate  = "bitrate"
	flagDebug    = "debug"
	flagAdapter  = "adapter"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagPort, "p", "", "com-port, empty = pick interactively")
	pf.IntP(flagBaudrate, "b", 115200, "com-port baudrate")
	pf.Float64P(flagBitrate, "r", 125, "CAN bitrate in kbit/s")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.StringP(flagAdapter, "a", "SLCan", "what adapter to use")
}

func adapterConfig(cmd *cobra.Command) (*cantemp.AdapterConfig, error) {
	port, err := cmd.Flags().GetString(flagPort)
	if err != nil {
		return nil, err
	}
	baudrate, err := cmd.Flags().GetInt(flagBaudrate)
	if err != nil {
		return nil, err
	}
	bitrate, err := cmd.Flags().GetFloat64(flagBitrate)
	if err != nil {
		return nil, err
	}
	debug, err := cmd.Flags().GetBool(flagDebug)
	if err != nil {
		return nil, err
	}
	return &cantemp.AdapterConfig{
		Port:         port,
		PortBaudrate: baudrate,
		CANRate:      bitrate,
		Debug:        debug,
	}, nil
}

// openClient builds the configured adapter and wraps it in a client.
// When the adapter needs a serial port and none was given, the user
// picks one from the detected ports.
func openClient(ctx context.Context, cmd *cobra.Command) (*cantemp.Client, error) {
	adapterName, err := cmd.Flags().GetString(flagAdapter)
	if err != nil {
		return nil, err
	}
	cfg, err := adapterConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.Port == "" && requiresSerialPort(adapterName) {
		port, err := selectPort()
		if err != nil {
			return nil, err
		}
		cfg.Port = port
	}

	dev, err := cantemp.NewAdapter(adapterName, cfg)
	if err != nil {
		return nil, err
	}
	return cantemp.New(ctx, dev)
}

func requiresSerialPort(adapterName string) bool {
	for _, info := range cantemp.ListAdapters() {
		if info.Name == adapterName {
			return info.RequiresSerialPort
		}
	}
	return false
}

func selectPort() (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports found")
	}
	prompt := promptui.Select{
		Label:    "Select com-port",
		HideHelp: true,
		Items:    ports,
	}
	_, result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return result, nil
}

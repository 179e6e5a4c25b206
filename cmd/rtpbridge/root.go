package main

import (
	"fmt"
	"io"
	"net"

	"github.com/opd-ai/rtpbridge/config"
	"github.com/opd-ai/rtpbridge/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Global flags
	configFile string
	logLevel   string

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "rtpbridge",
	Short: "RTP media sessions and native bridging",
	Long: `rtpbridge opens RTP sessions on even UDP ports, decodes voice, DTMF and
comfort noise, and can bridge two RTP legs so media flows between them
without being decoded.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(dtmfCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
		if err := loaded.Validate(); err != nil {
			return err
		}
	}

	closer, err := logging.Setup(loaded.Log)
	if err != nil {
		return err
	}
	cfg = loaded
	logCloser = closer
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

// addPeerFlag registers a host:port flag on fs.
func addPeerFlag(fs *pflag.FlagSet, target *string, name, usage string) {
	fs.StringVar(target, name, "", usage+" (host:port)")
}

func resolvePeer(addr string) (*net.UDPAddr, error) {
	if addr == "" {
		return nil, nil
	}
	peer, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid peer address %q: %w", addr, err)
	}
	return peer, nil
}

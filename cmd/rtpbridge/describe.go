package main

import (
	"fmt"
	"net"

	"github.com/opd-ai/rtpbridge/av/rtp"
	"github.com/spf13/cobra"
)

var describeAdvertise string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the SDP description of a fresh session",
	RunE:  runDescribe,
}

func init() {
	describeCmd.Flags().StringVar(&describeAdvertise, "advertise", "", "address to advertise instead of the bind address")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	var advertise net.IP
	if describeAdvertise != "" {
		advertise = net.ParseIP(describeAdvertise)
		if advertise == nil {
			return fmt.Errorf("invalid advertise address %q", describeAdvertise)
		}
	}

	formats, err := cfg.Formats()
	if err != nil {
		return err
	}

	sess, err := rtp.NewSession(cfg.SessionOptions())
	if err != nil {
		return err
	}
	defer sess.Close()

	desc, err := sess.Description(advertise, formats...)
	if err != nil {
		return err
	}
	out, err := desc.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

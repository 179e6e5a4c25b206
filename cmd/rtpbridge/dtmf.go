package main

import (
	"fmt"
	"time"

	"github.com/opd-ai/rtpbridge/av/rtp"
	"github.com/spf13/cobra"
)

var (
	dtmfPeer     string
	dtmfInterval time.Duration
)

var dtmfCmd = &cobra.Command{
	Use:   "dtmf DIGITS",
	Short: "Send DTMF digits as RFC 2833 telephone events",
	Args:  cobra.ExactArgs(1),
	RunE:  runDTMF,
}

func init() {
	addPeerFlag(dtmfCmd.Flags(), &dtmfPeer, "peer", "remote endpoint")
	dtmfCmd.Flags().DurationVar(&dtmfInterval, "interval", 100*time.Millisecond, "pause between digits")
	_ = dtmfCmd.MarkFlagRequired("peer")
}

func runDTMF(cmd *cobra.Command, args []string) error {
	peer, err := resolvePeer(dtmfPeer)
	if err != nil {
		return err
	}

	sess, err := rtp.NewSession(cfg.SessionOptions())
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.SetPeer(peer)

	digits := args[0]
	for i := 0; i < len(digits); i++ {
		if err := sess.SendDigit(digits[i]); err != nil {
			return fmt.Errorf("digit %q: %w", digits[i], err)
		}
		if i < len(digits)-1 {
			time.Sleep(dtmfInterval)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent %d digits to %s\n", len(digits), peer)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/rtpbridge/av/bridge"
	"github.com/opd-ai/rtpbridge/av/channel"
	"github.com/opd-ai/rtpbridge/av/rtp"
	"github.com/opd-ai/rtpbridge/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// retryBackoff is the pause before a bridge attempt that asked to be retried.
const retryBackoff = 100 * time.Millisecond

var (
	relayPeerA    string
	relayPeerB    string
	relayNoNative bool
	relayDTMF     bool
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Bridge two RTP legs",
	Long: `relay opens two RTP channels and connects them with the native bridge.
When the bridge is declined, frames are decoded and relayed instead.`,
	RunE: runRelay,
}

func init() {
	addPeerFlag(relayCmd.Flags(), &relayPeerA, "peer-a", "endpoint of leg A")
	addPeerFlag(relayCmd.Flags(), &relayPeerB, "peer-b", "endpoint of leg B")
	relayCmd.Flags().BoolVar(&relayNoNative, "no-native", false, "always relay decoded frames")
	relayCmd.Flags().BoolVar(&relayDTMF, "intercept-dtmf", false, "end the relay on DTMF from leg A")
}

func runRelay(cmd *cobra.Command, args []string) error {
	peerA, err := resolvePeer(relayPeerA)
	if err != nil {
		return err
	}
	peerB, err := resolvePeer(relayPeerB)
	if err != nil {
		return err
	}

	poller := transport.NewPoller(cfg.Poller.Interval)
	defer poller.Close()

	legA, err := channel.New(channel.Options{Name: "RTP/a", Session: cfg.SessionOptions(), Poller: poller})
	if err != nil {
		return err
	}
	defer legA.Hangup()
	legB, err := channel.New(channel.Options{Name: "RTP/b", Session: cfg.SessionOptions(), Poller: poller})
	if err != nil {
		return err
	}
	defer legB.Hangup()

	legA.SetPeer(peerA)
	legB.SetPeer(peerB)
	fmt.Fprintf(cmd.OutOrStdout(), "leg A on %s, leg B on %s\n", legA.Session().LocalAddr(), legB.Session().LocalAddr())

	if err := channel.Register(bridge.DefaultRegistry); err != nil && !errors.Is(err, bridge.ErrDuplicateTechnology) {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var flags bridge.Flags
	if relayDTMF {
		flags |= bridge.InterceptDTMF0
	}

	bridger := bridge.NewBridger(bridge.DefaultRegistry)
	bridger.SettleDelay = cfg.Bridge.SettleDelay
	bridger.OnStateChange = func(c0, c1 bridge.Channel, s bridge.State) {
		logrus.WithFields(logrus.Fields{
			"function": "relay",
			"c0":       c0.Name(),
			"c1":       c1.Name(),
			"state":    s.String(),
		}).Info("Bridge state changed")
	}

	for {
		if relayNoNative {
			return relayFrames(ctx, legA, legB, flags)
		}

		out, err := bridger.Bridge(ctx, legA, legB, flags)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		switch out.Result {
		case bridge.ResultDeclined:
			logrus.WithFields(logrus.Fields{
				"function": "relay",
				"reason":   out.Reason.Error(),
			}).Info("Native bridge declined, relaying frames")
			return relayFrames(ctx, legA, legB, flags)
		case bridge.ResultRetry:
			time.Sleep(retryBackoff)
			continue
		case bridge.ResultEnded:
			logEnd(out.Who, out.Frame)
			return nil
		}
	}
}

// relayFrames copies decoded frames between the legs until one hangs up,
// an intercepted digit arrives or ctx is done.
func relayFrames(ctx context.Context, a, b *channel.RTPChannel, flags bridge.Flags) error {
	for {
		var (
			f    *rtp.Frame
			ok   bool
			from *channel.RTPChannel
			to   *channel.RTPChannel
		)
		select {
		case <-ctx.Done():
			return nil
		case f, ok = <-a.Frames():
			from, to = a, b
		case f, ok = <-b.Frames():
			from, to = b, a
		}

		if !ok {
			logEnd(from, nil)
			return nil
		}
		if f.Type == rtp.FrameDTMF && from == a && flags&bridge.InterceptDTMF0 != 0 {
			logEnd(from, f)
			return nil
		}
		if err := to.WriteFrame(f); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "relayFrames",
				"channel":  to.Name(),
				"error":    err.Error(),
			}).Debug("Failed to relay frame")
		}
	}
}

func logEnd(who bridge.Channel, f *rtp.Frame) {
	fields := logrus.Fields{"function": "relay"}
	if who != nil {
		fields["who"] = who.Name()
	}
	if f != nil {
		fields["frame"] = f.Type.String()
		if f.Type == rtp.FrameDTMF {
			fields["digit"] = string(f.Digit)
		}
	} else {
		fields["hangup"] = true
	}
	logrus.WithFields(fields).Info("Relay ended")
}

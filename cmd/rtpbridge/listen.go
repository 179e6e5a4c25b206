package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/rtpbridge/av/rtp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var listenPeer string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Open a session and log every received frame",
	RunE:  runListen,
}

func init() {
	addPeerFlag(listenCmd.Flags(), &listenPeer, "peer", "remote endpoint")
}

func runListen(cmd *cobra.Command, args []string) error {
	peer, err := resolvePeer(listenPeer)
	if err != nil {
		return err
	}

	sess, err := rtp.NewSession(cfg.SessionOptions())
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.SetPeer(peer)

	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", sess.LocalAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		f, err := sess.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logFrame(sess, sess.FlushDTMF())
				logrus.WithField("stats", fmt.Sprintf("%+v", sess.Stats())).Info("Listener stopped")
				return nil
			}
			return err
		}
		logFrame(sess, f)
	}
}

func logFrame(sess *rtp.Session, f *rtp.Frame) {
	if f.IsNull() {
		return
	}
	fields := logrus.Fields{
		"function": "listen",
		"session":  sess.ID(),
		"type":     f.Type.String(),
	}
	switch f.Type {
	case rtp.FrameVoice:
		fields["format"] = f.Format.String()
		fields["samples"] = f.Samples
		fields["seq"] = f.SequenceNumber
		fields["timestamp"] = f.Timestamp
	case rtp.FrameDTMF:
		fields["digit"] = string(f.Digit)
	}
	logrus.WithFields(fields).Info("Frame received")
}

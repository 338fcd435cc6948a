package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aa-schnorr/schnorrkel/mailbox"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Run the signing protocol through the shared mailbox",
	}
	cmd.AddCommand(newCoordinateCmd(a), newJoinCmd(a))
	return cmd
}

// sessionFlags are shared by coordinate and join.
type sessionFlags struct {
	id      string
	hexMsg  string
	text    string
	keyList []string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "session identifier shared by every signer")
	cmd.Flags().StringSliceVarP(&f.keyList, "keys", "k", nil, "ordered comma separated hex public keys")
	addMessageFlags(cmd, &f.hexMsg, &f.text)
	_ = cmd.MarkFlagRequired("keys")
}

// withSession opens the mailbox, metrics and timeout shared by both sides.
func (a *app) withSession(ctx context.Context, fn func(ctx context.Context, mb mailbox.Mailbox, metrics *mailbox.Metrics) error) error {
	mb, err := a.openMailbox()
	if err != nil {
		return err
	}
	defer mb.Close()

	reg := prometheus.NewRegistry()
	metrics := mailbox.NewMetrics(reg)
	stop := a.serveMetrics(ctx, reg)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Session.Timeout)
	defer cancel()
	return fn(ctx, mb, metrics)
}

func newCoordinateCmd(a *app) *cobra.Command {
	var f sessionFlags
	cmd := &cobra.Command{
		Use:   "coordinate",
		Short: "Open a session, collect every signer's share and print the signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := messageHash(f.hexMsg, f.text)
			if err != nil {
				return err
			}
			curve, err := a.curve()
			if err != nil {
				return err
			}
			keys, err := parsePublicKeys(curve, f.keyList)
			if err != nil {
				return err
			}
			if f.id == "" {
				f.id = uuid.NewString()
			}
			a.logger.Info("session opened; share the id with every signer", zap.String("session_id", f.id))

			return a.withSession(cmd.Context(), func(ctx context.Context, mb mailbox.Mailbox, metrics *mailbox.Metrics) error {
				coord := mailbox.NewCoordinator(curve, mb,
					mailbox.WithLogger(a.logger),
					mailbox.WithMetrics(metrics),
					mailbox.WithAudit(a.audit()),
				)
				encoded, session, err := coord.Collect(ctx, f.id, msg, keys)
				if err != nil {
					return err
				}
				addr, err := session.Address()
				if err != nil {
					return err
				}
				a.printf("session: %s\naddress: %s\nsignature: %s\n", f.id, addr.Hex(), hexutil.Encode(encoded))
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newJoinCmd(a *app) *cobra.Command {
	var f sessionFlags
	cmd := &cobra.Command{
		Use:   "join <name>",
		Short: "Take part in a session with the named key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := messageHash(f.hexMsg, f.text)
			if err != nil {
				return err
			}
			signer, st, err := a.loadSigner(args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			keys, err := parsePublicKeys(signer.Curve(), f.keyList)
			if err != nil {
				return err
			}

			return a.withSession(cmd.Context(), func(ctx context.Context, mb mailbox.Mailbox, metrics *mailbox.Metrics) error {
				p := mailbox.NewParticipant(signer, mb,
					mailbox.WithLogger(a.logger),
					mailbox.WithMetrics(metrics),
					mailbox.WithAudit(a.audit()),
				)
				partial, err := p.Run(ctx, f.id, msg, keys)
				if err != nil {
					return err
				}
				defer partial.Zeroize()
				a.printf("session: %s\nsigned\n", f.id)
				return nil
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

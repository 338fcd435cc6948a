package main

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
)

func newKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage signer key pairs in the local store",
	}

	var privateHex string
	generate := &cobra.Command{
		Use:   "generate <name>",
		Short: "Generate (or import with --private) a key pair and store it under name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			curve, err := a.curve()
			if err != nil {
				return err
			}
			var kp *schnorrkel.KeyPair
			if privateHex != "" {
				raw, err := hexutil.Decode(ensure0x(privateHex))
				if err != nil {
					return err
				}
				kp, err = schnorrkel.KeyPairFromPrivateKey(curve, raw)
				schnorrkel.ZeroizeBytes(raw)
				if err != nil {
					return err
				}
			} else if kp, err = schnorrkel.GenerateKeyPair(curve); err != nil {
				return err
			}
			defer kp.Zeroize()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SaveKeyPair(args[0], kp); err != nil {
				return err
			}

			a.audit().OnKeyGenerated(schnorrkel.NewAuditEventBuilder(schnorrkel.AuditEventKeyGenerated, schnorrkel.ReasonManualTrigger).
				WithCurve(curve.Name()).
				WithPublicKey(kp.PublicKey()).
				Build())
			a.printf("%s\n", hexutil.Encode(kp.PublicKey().CompressedBytes()))
			return nil
		},
	}
	generate.Flags().StringVar(&privateHex, "private", "", "import this hex private key instead of generating one")

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the public key stored under name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			kp, err := st.LoadKeyPair(args[0])
			if err != nil {
				return err
			}
			defer kp.Zeroize()
			a.printf("%s\n", hexutil.Encode(kp.PublicKey().CompressedBytes()))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored key names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			names, err := st.KeyPairNames()
			if err != nil {
				return err
			}
			a.logger.Debug("listing key pairs", zap.Int("count", len(names)))
			for _, name := range names {
				a.printf("%s\n", name)
			}
			return nil
		},
	}

	var proofKey string
	prove := &cobra.Command{
		Use:   "prove <name>",
		Short: "Print a proof of possession for the key stored under name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			kp, err := st.LoadKeyPair(args[0])
			if err != nil {
				return err
			}
			defer kp.Zeroize()
			proof, err := schnorrkel.ProvePossession(kp)
			if err != nil {
				return err
			}
			data, err := proof.MarshalJSON()
			if err != nil {
				return err
			}
			a.printf("%s\n", data)
			return nil
		},
	}

	var proofJSON string
	checkProof := &cobra.Command{
		Use:   "check-proof",
		Short: "Check a proof of possession against a public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			curve, err := a.curve()
			if err != nil {
				return err
			}
			pub, err := schnorrkel.ParsePublicKey(curve, proofKey)
			if err != nil {
				return err
			}
			proof, err := schnorrkel.ParsePossessionProof(curve, []byte(proofJSON))
			if err != nil {
				return err
			}
			if !proof.Verify(curve, pub) {
				return schnorrkel.ErrVerificationFailure.WithDetails("proof of possession rejected")
			}
			a.printf("ok\n")
			return nil
		},
	}
	checkProof.Flags().StringVar(&proofKey, "key", "", "hex public key")
	checkProof.Flags().StringVar(&proofJSON, "proof", "", "proof JSON as printed by key prove")
	_ = checkProof.MarkFlagRequired("key")
	_ = checkProof.MarkFlagRequired("proof")

	cmd.AddCommand(generate, show, list, prove, checkProof)
	return cmd
}

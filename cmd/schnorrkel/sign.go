package main

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
)

func newAddressCmd(a *app) *cobra.Command {
	var keyList []string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the aggregate key and account address of an ordered signer set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			curve, err := a.curve()
			if err != nil {
				return err
			}
			keys, err := parsePublicKeys(curve, keyList)
			if err != nil {
				return err
			}
			agg, err := schnorrkel.AggregateKeys(curve, keys)
			if err != nil {
				return err
			}
			addr, err := agg.Address()
			if err != nil {
				return err
			}
			a.printf("aggregate_key: %s\naddress: %s\n", hexutil.Encode(agg.Key.CompressedBytes()), addr.Hex())
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&keyList, "keys", "k", nil, "ordered comma separated hex public keys")
	_ = cmd.MarkFlagRequired("keys")
	return cmd
}

func newNoncesCmd(a *app) *cobra.Command {
	var discard string
	cmd := &cobra.Command{
		Use:   "nonces <name>",
		Short: "Publish a fresh nonce commitment for the named key",
		Long: `Generates a nonce pair for the named key, keeps the secret half in the
store and prints the public commitment (K1 || K2) to share with the other
signers. Each commitment signs at most once. --discard burns an earlier
commitment so it can never sign.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, st, err := a.loadSigner(args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			if discard != "" {
				old, err := schnorrkel.PublicNoncesFromBytes(signer.Curve(), common.FromHex(discard))
				if err != nil {
					return err
				}
				if err := st.Discard(old.Fingerprint()); err != nil {
					return err
				}
				a.logger.Info("nonce commitment discarded", zap.String("fingerprint", old.Fingerprint()))
			}

			nonces, err := signer.PublicNonces()
			if err != nil {
				return err
			}
			a.printf("%s\n", hexutil.Encode(nonces.Bytes()))
			return nil
		},
	}
	cmd.Flags().StringVar(&discard, "discard", "", "hex commitment to burn before publishing a new one")
	return cmd
}

func newSignCmd(a *app) *cobra.Command {
	var (
		hexMsg, text string
		keyList      []string
		nonceList    []string
	)
	cmd := &cobra.Command{
		Use:   "sign <name>",
		Short: "Produce the named key's partial signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := messageHash(hexMsg, text)
			if err != nil {
				return err
			}
			signer, st, err := a.loadSigner(args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			keys, err := parsePublicKeys(signer.Curve(), keyList)
			if err != nil {
				return err
			}
			nonces, err := parseNonces(signer.Curve(), nonceList)
			if err != nil {
				return err
			}
			partial, err := signer.Sign(msg, keys, nonces)
			if err != nil {
				return err
			}
			defer partial.Zeroize()
			data, err := partial.MarshalBinary()
			if err != nil {
				return err
			}
			a.printf("%s\n", hexutil.Encode(data))
			return nil
		},
	}
	addMessageFlags(cmd, &hexMsg, &text)
	cmd.Flags().StringSliceVarP(&keyList, "keys", "k", nil, "ordered comma separated hex public keys")
	cmd.Flags().StringSliceVarP(&nonceList, "nonces", "n", nil, "nonce commitments in signer order")
	_ = cmd.MarkFlagRequired("keys")
	_ = cmd.MarkFlagRequired("nonces")
	return cmd
}

func newCombineCmd(a *app) *cobra.Command {
	var (
		hexMsg, text string
		partialList  []string
	)
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Sum partial signatures into the account signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			curve, err := a.curve()
			if err != nil {
				return err
			}
			partials := make([]*schnorrkel.PartialSignature, len(partialList))
			for i, s := range partialList {
				p, err := schnorrkel.UnmarshalPartialSignature(curve, common.FromHex(strings.TrimSpace(s)))
				if err != nil {
					return err
				}
				partials[i] = p
			}
			sig, err := schnorrkel.SumPartialSignatures(curve, partials)
			if err != nil {
				return err
			}

			if hexMsg != "" || text != "" {
				msg, err := messageHash(hexMsg, text)
				if err != nil {
					return err
				}
				if err := sig.Verify(curve, schnorrkel.DefaultChallengeScheme(curve), msg); err != nil {
					return err
				}
			}

			encoded, err := sig.Encode()
			if err != nil {
				return err
			}
			a.logger.Debug("combined partial signatures", zap.Int("partials", len(partials)))
			a.printf("%s\n", hexutil.Encode(encoded))
			return nil
		},
	}
	addMessageFlags(cmd, &hexMsg, &text)
	cmd.Flags().StringSliceVarP(&partialList, "partials", "p", nil, "partial signatures from every signer")
	_ = cmd.MarkFlagRequired("partials")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		hexMsg, text string
		sigHex       string
		account      string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an encoded signature the way the validation module does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := messageHash(hexMsg, text)
			if err != nil {
				return err
			}
			sig := common.FromHex(sigHex)
			if account != "" {
				if !common.IsHexAddress(account) {
					return errors.New("invalid account address")
				}
				if err := schnorrkel.VerifyForAccount(sig, msg, common.HexToAddress(account)); err != nil {
					return err
				}
				a.printf("valid for %s\n", common.HexToAddress(account).Hex())
				return nil
			}
			signer, err := schnorrkel.VerifyEncoded(sig, msg)
			if err != nil {
				return err
			}
			a.printf("valid for %s\n", signer.Hex())
			return nil
		},
	}
	addMessageFlags(cmd, &hexMsg, &text)
	cmd.Flags().StringVarP(&sigHex, "signature", "s", "", "128-byte encoded signature as hex")
	cmd.Flags().StringVar(&account, "account", "", "require the signature to belong to this account")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/aa-schnorr/schnorrkel/adapters"
)

func newModuleCmd(a *app) *cobra.Command {
	var (
		keyList []string
		version string
		address string
	)
	cmd := &cobra.Command{
		Use:   "module <name>",
		Short: "Print the validation module setup for a signer set",
		Long: `Resolves the validation module (explicit --address, a released --version,
or the configured default) and prints its address, the signer set's virtual
address, the initForSmartAccount calldata and a placeholder signature for
gas estimation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := adapters.DefaultModule()
			switch {
			case address != "":
				if !common.IsHexAddress(address) {
					return fmt.Errorf("invalid module address %q", address)
				}
				id = adapters.ByAddress(common.HexToAddress(address))
			case version != "":
				id = adapters.ByVersion(version)
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
			module, err := adapters.NewValidationModule(id, a.cfg.Registry(), signer, keys, nil)
			if err != nil {
				return err
			}
			virtual, err := module.VirtualAddress()
			if err != nil {
				return err
			}
			initData, err := module.InitData()
			if err != nil {
				return err
			}
			a.printf("module: %s\nversion: %s\nvirtual_address: %s\ninit_data: %s\ndummy_signature: %s\n",
				module.Address().Hex(), module.Version(), virtual.Hex(),
				hexutil.Encode(initData), hexutil.Encode(module.DummySignature()))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&keyList, "keys", "k", nil, "ordered comma separated hex public keys")
	cmd.Flags().StringVar(&version, "version", "", "released module version, e.g. V1_0_0")
	cmd.Flags().StringVar(&address, "address", "", "explicit module address")
	cmd.MarkFlagsMutuallyExclusive("version", "address")
	_ = cmd.MarkFlagRequired("keys")
	return cmd
}

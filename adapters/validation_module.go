package adapters

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
)

const moduleABI = `[{
	"type": "function",
	"name": "initForSmartAccount",
	"stateMutability": "nonpayable",
	"inputs": [{"name": "schnorrVirtualAddress", "type": "address"}],
	"outputs": [{"name": "", "type": "address"}]
}]`

// dummySignature has the shape of a real signature so bundlers can
// estimate verification gas before the signers have run.
const dummySignature = "cab5cbe1054ca3a019b08b6ec402cd11ea58692ec9cc14586ff4fc25dc13df1f" +
	"3de5f1fe8963f570bfc3c2cf43efeac84962070e02871868f811952ddcf9251b" +
	"550f77c3e7c72a22fcf64e8ebb94a2e59b43fc42a50f3bc345a7e1d39cddea00" +
	"000000000000000000000000000000000000000000000000000000000000001c"

var parsedModuleABI = mustParseABI(moduleABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ValidationModule is one signer's view of the Schnorr validation module of
// a smart account: the module contract, the ordered signer set and the
// commitments published for the current user operation.
type ValidationModule struct {
	address      common.Address
	version      string
	signer       *schnorrkel.Signer
	publicKeys   []schnorrkel.Point
	publicNonces []*schnorrkel.PublicNonces
	agg          *schnorrkel.KeyAggregation
}

// NewValidationModule resolves id against reg and binds signer to the
// signer set. publicNonces may be nil when the module is only used for
// address derivation, init data or gas estimation.
func NewValidationModule(id ModuleIdentity, reg ModuleRegistry, signer *schnorrkel.Signer, publicKeys []schnorrkel.Point, publicNonces []*schnorrkel.PublicNonces) (*ValidationModule, error) {
	addr, version, err := id.Resolve(reg)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	agg, err := schnorrkel.AggregateKeys(signer.Curve(), publicKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid signer set: %w", err)
	}
	if agg.IndexOf(signer.PublicKey()) < 0 {
		return nil, schnorrkel.ErrSignerNotInSet
	}
	return &ValidationModule{
		address:      addr,
		version:      version,
		signer:       signer,
		publicKeys:   publicKeys,
		publicNonces: publicNonces,
		agg:          agg,
	}, nil
}

// Address returns the module contract address
func (m *ValidationModule) Address() common.Address { return m.address }

// Version returns the module version, empty when unknown
func (m *ValidationModule) Version() string { return m.version }

// ChainType returns the chain family this module targets
func (m *ValidationModule) ChainType() ChainType { return ChainTypeEVM }

// VirtualAddress returns the account identifier the module stores for the
// signer set.
func (m *ValidationModule) VirtualAddress() (common.Address, error) {
	return m.agg.Address()
}

// SetPublicNonces replaces the commitments for the next user operation
func (m *ValidationModule) SetPublicNonces(nonces []*schnorrkel.PublicNonces) {
	m.publicNonces = nonces
}

// InitData returns calldata for initForSmartAccount(virtualAddress).
func (m *ValidationModule) InitData() ([]byte, error) {
	addr, err := m.VirtualAddress()
	if err != nil {
		return nil, err
	}
	data, err := parsedModuleABI.Pack("initForSmartAccount", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode init data: %w", err)
	}
	return data, nil
}

// DummySignature returns a well-formed placeholder signature for gas
// estimation.
func (m *ValidationModule) DummySignature() []byte {
	b, _ := hex.DecodeString(dummySignature)
	return b
}

// EstimateSignatureSize returns the size of the signature field
func (m *ValidationModule) EstimateSignatureSize() int {
	return schnorrkel.EncodedSignatureLength
}

// SignUserOpHash signs userOpHash with this signer's outstanding commitment,
// adds the partners' partial signatures and returns the encoded aggregate.
// The aggregate is verified before it is returned.
func (m *ValidationModule) SignUserOpHash(ctx context.Context, userOpHash []byte, partners []*schnorrkel.PartialSignature) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.publicNonces) != len(m.publicKeys) {
		return nil, schnorrkel.ErrInvalidInputLength.WithDetails("public nonces not set for every signer")
	}
	if len(partners) != len(m.publicKeys)-1 {
		return nil, schnorrkel.ErrIncompleteQuorum.
			WithContext("partners", len(partners)).
			WithContext("expected", len(m.publicKeys)-1)
	}

	own, err := m.signer.Sign(userOpHash, m.publicKeys, m.publicNonces)
	if err != nil {
		return nil, fmt.Errorf("failed to sign user operation: %w", err)
	}
	curve := m.signer.Curve()
	sig, err := schnorrkel.SumPartialSignatures(curve, append([]*schnorrkel.PartialSignature{own}, partners...))
	if err != nil {
		return nil, err
	}
	if err := sig.Verify(curve, m.signer.Scheme(), userOpHash); err != nil {
		return nil, err
	}
	return sig.Encode()
}

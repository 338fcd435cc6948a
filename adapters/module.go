package adapters

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ChainType represents different blockchain types
type ChainType string

// ChainTypeEVM is an account-abstraction chain with an on-chain Schnorr
// validation module.
const ChainTypeEVM ChainType = "evm"

var (
	// ErrUnknownModuleVersion is returned when a version has no registered address
	ErrUnknownModuleVersion = errors.New("unknown validation module version")

	// ErrNoDefaultModule is returned when DefaultModule is resolved against a
	// registry without a default address.
	ErrNoDefaultModule = errors.New("no default validation module configured")
)

type identityKind int

const (
	identityDefault identityKind = iota
	identityAddress
	identityVersion
)

// ModuleIdentity selects the validation module contract a smart account
// uses: an explicit address, a released version, or the registry default.
// It is resolved once, when the ValidationModule is built.
type ModuleIdentity struct {
	kind    identityKind
	address common.Address
	version string
}

// ByAddress selects the module deployed at addr
func ByAddress(addr common.Address) ModuleIdentity {
	return ModuleIdentity{kind: identityAddress, address: addr}
}

// ByVersion selects the module registered for version, e.g. "V1_0_0"
func ByVersion(version string) ModuleIdentity {
	return ModuleIdentity{kind: identityVersion, version: version}
}

// DefaultModule selects the registry default
func DefaultModule() ModuleIdentity {
	return ModuleIdentity{kind: identityDefault}
}

func (id ModuleIdentity) String() string {
	switch id.kind {
	case identityAddress:
		return "address:" + id.address.Hex()
	case identityVersion:
		return "version:" + id.version
	default:
		return "default"
	}
}

// ModuleRegistry maps released module versions to deployed addresses.
type ModuleRegistry struct {
	DefaultAddress common.Address
	DefaultVersion string
	Versions       map[string]common.Address
}

// Resolve returns the module address and version id refers to. An explicit
// address reports the registry default version.
func (id ModuleIdentity) Resolve(reg ModuleRegistry) (common.Address, string, error) {
	switch id.kind {
	case identityAddress:
		return id.address, reg.DefaultVersion, nil
	case identityVersion:
		addr, ok := reg.Versions[id.version]
		if !ok {
			return common.Address{}, "", fmt.Errorf("%w: %s", ErrUnknownModuleVersion, id.version)
		}
		return addr, id.version, nil
	default:
		if reg.DefaultAddress == (common.Address{}) {
			return common.Address{}, "", ErrNoDefaultModule
		}
		return reg.DefaultAddress, reg.DefaultVersion, nil
	}
}

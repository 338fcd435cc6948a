package schnorrkel

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// addressDomainTag separates account identifiers from ordinary EOA addresses.
var addressDomainTag = []byte("SCHNORR")

// PointToEthereumAddress converts a secp256k1 point to an Ethereum address
func PointToEthereumAddress(point Point) ([]byte, error) {
	secp256k1Point, ok := point.(*Secp256k1Point)
	if !ok {
		return nil, ErrUnsupportedCurve.WithDetails("point must be secp256k1 point")
	}

	if secp256k1Point.inner == nil {
		return nil, fmt.Errorf("%w: point at infinity has no address", ErrInvalidPoint)
	}

	// Ethereum address = last 20 bytes of keccak256(x || y)
	uncompressed := secp256k1Point.inner.SerializeUncompressed()
	hash := Keccak256(uncompressed[1:])

	address := make([]byte, common.AddressLength)
	copy(address, hash[12:32])
	return address, nil
}

// DeriveAddress maps an aggregate key onto the account identifier
// keccak256("SCHNORR" ‖ px)[12:]. The contract recomputes the same value
// from the px carried in every signature.
func DeriveAddress(aggregateKey Point) (common.Address, error) {
	x, ok := aggregateKey.(*Secp256k1Point)
	if !ok {
		return common.Address{}, ErrUnsupportedCurve.WithDetails("account identifiers need secp256k1")
	}
	if x.IsIdentity() {
		return common.Address{}, fmt.Errorf("%w: aggregate key at infinity", ErrInvalidPoint)
	}
	return addressFromX(x.XBytes()), nil
}

func addressFromX(px []byte) common.Address {
	return common.BytesToAddress(Keccak256(addressDomainTag, px)[12:])
}

// Address derives the account identifier of the aggregation
func (ka *KeyAggregation) Address() (common.Address, error) {
	return DeriveAddress(ka.Key)
}

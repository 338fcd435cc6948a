package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
	"github.com/aa-schnorr/schnorrkel/mailbox"
)

var (
	v1Address     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	v2Address     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	customAddress = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testRegistry  = ModuleRegistry{
		DefaultAddress: v1Address,
		DefaultVersion: "V1_0_0",
		Versions: map[string]common.Address{
			"V1_0_0": v1Address,
			"V2_0_0": v2Address,
		},
	}
)

func TestModuleIdentityResolve(t *testing.T) {
	tests := []struct {
		name    string
		id      ModuleIdentity
		addr    common.Address
		version string
		err     error
	}{
		{"explicit address", ByAddress(customAddress), customAddress, "V1_0_0", nil},
		{"known version", ByVersion("V2_0_0"), v2Address, "V2_0_0", nil},
		{"unknown version", ByVersion("V9"), common.Address{}, "", ErrUnknownModuleVersion},
		{"default", DefaultModule(), v1Address, "V1_0_0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, version, err := tt.id.Resolve(testRegistry)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, addr)
			assert.Equal(t, tt.version, version)
		})
	}

	_, _, err := DefaultModule().Resolve(ModuleRegistry{})
	assert.ErrorIs(t, err, ErrNoDefaultModule)
	assert.Equal(t, "version:V2_0_0", ByVersion("V2_0_0").String())
}

type fixture struct {
	signers []*schnorrkel.Signer
	keys    []schnorrkel.Point
	nonces  []*schnorrkel.PublicNonces
}

func newFixture(t *testing.T, n int) fixture {
	t.Helper()
	curve := schnorrkel.NewSecp256k1Curve()
	f := fixture{
		signers: make([]*schnorrkel.Signer, n),
		keys:    make([]schnorrkel.Point, n),
		nonces:  make([]*schnorrkel.PublicNonces, n),
	}
	for i := range f.signers {
		s, err := schnorrkel.GenerateSigner(curve)
		require.NoError(t, err)
		f.signers[i] = s
		f.keys[i] = s.PublicKey()
	}
	for i, s := range f.signers {
		n, err := s.PublicNonces()
		require.NoError(t, err)
		f.nonces[i] = n
	}
	return f
}

func TestInitData(t *testing.T) {
	f := newFixture(t, 2)
	m, err := NewValidationModule(DefaultModule(), testRegistry, f.signers[0], f.keys, nil)
	require.NoError(t, err)

	data, err := m.InitData()
	require.NoError(t, err)
	require.Len(t, data, 4+32)

	selector := crypto.Keccak256([]byte("initForSmartAccount(address)"))[:4]
	assert.Equal(t, selector, data[:4])

	virtual, err := m.VirtualAddress()
	require.NoError(t, err)
	assert.Equal(t, common.LeftPadBytes(virtual.Bytes(), 32), data[4:])
	assert.Equal(t, v1Address, m.Address())
	assert.Equal(t, "V1_0_0", m.Version())
	assert.Equal(t, ChainTypeEVM, m.ChainType())
}

func TestDummySignature(t *testing.T) {
	f := newFixture(t, 1)
	m, err := NewValidationModule(DefaultModule(), testRegistry, f.signers[0], f.keys, nil)
	require.NoError(t, err)

	dummy := m.DummySignature()
	assert.Len(t, dummy, m.EstimateSignatureSize())
	assert.Equal(t, byte(28), dummy[127])
	assert.Equal(t, make([]byte, 31), dummy[96:127])
}

func TestNewValidationModuleRejectsOutsider(t *testing.T) {
	f := newFixture(t, 2)
	outsider := newFixture(t, 1)
	_, err := NewValidationModule(DefaultModule(), testRegistry, outsider.signers[0], f.keys, nil)
	assert.ErrorIs(t, err, schnorrkel.ErrSignerNotInSet)

	_, err = NewValidationModule(ByVersion("nope"), testRegistry, f.signers[0], f.keys, nil)
	assert.ErrorIs(t, err, ErrUnknownModuleVersion)
}

type fakeBackend struct {
	hash      []byte
	submitted []byte
	hashErr   error
}

func (b *fakeBackend) UserOpHash(context.Context) ([]byte, error) {
	return b.hash, b.hashErr
}

func (b *fakeBackend) SubmitSignature(_ context.Context, sig []byte) error {
	b.submitted = sig
	return nil
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t, 3)
	hash := schnorrkel.HashMessage([]byte("user operation"))

	partners := make([]*schnorrkel.PartialSignature, 0, 2)
	for _, s := range f.signers[1:] {
		p, err := s.Sign(hash, f.keys, f.nonces)
		require.NoError(t, err)
		partners = append(partners, p)
	}

	m, err := NewValidationModule(DefaultModule(), testRegistry, f.signers[0], f.keys, f.nonces)
	require.NoError(t, err)

	backend := &fakeBackend{hash: hash}
	require.NoError(t, Authorize(context.Background(), backend, m, partners))
	require.Len(t, backend.submitted, schnorrkel.EncodedSignatureLength)

	virtual, _ := m.VirtualAddress()
	assert.NoError(t, schnorrkel.VerifyForAccount(backend.submitted, hash, virtual))
}

func TestAuthorizeFailures(t *testing.T) {
	f := newFixture(t, 2)
	m, err := NewValidationModule(DefaultModule(), testRegistry, f.signers[0], f.keys, f.nonces)
	require.NoError(t, err)

	backend := &fakeBackend{hashErr: errors.New("bundler down")}
	assert.Error(t, Authorize(context.Background(), backend, m, nil))

	backend = &fakeBackend{hash: schnorrkel.HashMessage([]byte("x"))}
	err = Authorize(context.Background(), backend, m, nil)
	assert.ErrorIs(t, err, schnorrkel.ErrIncompleteQuorum)
	assert.Nil(t, backend.submitted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.SignUserOpHash(ctx, schnorrkel.HashMessage([]byte("x")), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthorizeSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f := newFixture(t, 3)
	hash := schnorrkel.HashMessage([]byte("session user operation"))
	mb := mailbox.NewMemoryMailbox()

	errs := make(chan error, len(f.signers))
	for _, s := range f.signers {
		go func(s *schnorrkel.Signer) {
			_, err := mailbox.NewParticipant(s, mb).Run(ctx, "op-1", hash, f.keys)
			errs <- err
		}(s)
	}

	backend := &fakeBackend{hash: hash}
	coord := mailbox.NewCoordinator(schnorrkel.NewSecp256k1Curve(), mb)
	session, err := AuthorizeSession(ctx, backend, coord, "op-1", f.keys, nil)
	require.NoError(t, err)
	assert.Equal(t, schnorrkel.SessionSubmitted, session.State())

	for range f.signers {
		require.NoError(t, <-errs)
	}
	addr, _ := session.Address()
	assert.NoError(t, schnorrkel.VerifyForAccount(backend.submitted, hash, addr))
}

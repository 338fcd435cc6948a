package schnorrkel_test

import (
	"fmt"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
)

func Example() {
	curve := schnorrkel.NewSecp256k1Curve()

	alice, _ := schnorrkel.GenerateSigner(curve)
	bob, _ := schnorrkel.GenerateSigner(curve)
	keys := []schnorrkel.Point{alice.PublicKey(), bob.PublicKey()}

	// Round one: exchange commitments.
	aliceNonces, _ := alice.PublicNonces()
	bobNonces, _ := bob.PublicNonces()
	nonces := []*schnorrkel.PublicNonces{aliceNonces, bobNonces}

	// Round two: each signer answers the shared challenge.
	msg := schnorrkel.HashMessage([]byte("transfer 1 ether"))
	p1, _ := alice.Sign(msg, keys, nonces)
	p2, _ := bob.Sign(msg, keys, nonces)

	sig, _ := schnorrkel.SumPartialSignatures(curve, []*schnorrkel.PartialSignature{p1, p2})
	encoded, _ := sig.Encode()

	account, _ := alice.AggregateAddress(keys)
	err := schnorrkel.VerifyForAccount(encoded, msg, account)
	fmt.Println(len(encoded), err)
	// Output: 128 <nil>
}

func ExampleSession() {
	curve := schnorrkel.NewSecp256k1Curve()
	signers := make([]*schnorrkel.Signer, 3)
	keys := make([]schnorrkel.Point, 3)
	for i := range signers {
		signers[i], _ = schnorrkel.GenerateSigner(curve)
		keys[i] = signers[i].PublicKey()
	}

	msg := schnorrkel.HashMessage([]byte("user operation"))
	session, _ := schnorrkel.NewSession(curve, msg, keys)

	nonces := make([]*schnorrkel.PublicNonces, len(signers))
	for i, s := range signers {
		nonces[i], _ = s.PublicNonces()
		_ = session.AddNonces(i, nonces[i])
	}
	_, _ = session.ComputeChallenge()

	for _, s := range signers {
		p, _ := s.Sign(msg, keys, nonces)
		_ = session.AddPartial(p)
	}
	_, err := session.Aggregate()
	fmt.Println(session.State(), err)
	// Output: aggregated <nil>
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--store-dir", dir}, args...))
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, "schnorrkel %s", strings.Join(args, " "))
	return out
}

func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+": "); ok {
			return v
		}
	}
	t.Fatalf("no %q in output:\n%s", name, out)
	return ""
}

func TestOfflineSigningFlow(t *testing.T) {
	dir := t.TempDir()

	alice := mustRun(t, dir, "key", "generate", "alice")
	bob := mustRun(t, dir, "key", "generate", "bob")
	require.True(t, strings.HasPrefix(alice, "0x"))
	assert.Equal(t, alice, mustRun(t, dir, "key", "show", "alice"))
	assert.Equal(t, "alice\nbob", mustRun(t, dir, "key", "list"))

	keys := alice + "," + bob
	address := field(t, mustRun(t, dir, "address", "--keys", keys), "address")

	na := mustRun(t, dir, "nonces", "alice")
	nb := mustRun(t, dir, "nonces", "bob")
	nonces := na + "," + nb

	pa := mustRun(t, dir, "sign", "alice", "--text", "user op", "--keys", keys, "--nonces", nonces)
	pb := mustRun(t, dir, "sign", "bob", "--text", "user op", "--keys", keys, "--nonces", nonces)

	sig := mustRun(t, dir, "combine", "--text", "user op", "--partials", pa+","+pb)
	require.Len(t, sig, 2+2*128)

	assert.Equal(t, "valid for "+address, mustRun(t, dir, "verify", "--text", "user op", "--signature", sig))
	mustRun(t, dir, "verify", "--text", "user op", "--signature", sig, "--account", address)

	_, err := run(t, dir, "verify", "--text", "other op", "--signature", sig, "--account", address)
	assert.Error(t, err)

	// The commitment survives in the store only until it signs once.
	_, err = run(t, dir, "sign", "alice", "--text", "second op", "--keys", keys, "--nonces", nonces)
	assert.ErrorContains(t, err, "NONCE_REUSE")
}

func TestNoncesDiscard(t *testing.T) {
	dir := t.TempDir()
	alice := mustRun(t, dir, "key", "generate", "alice")
	bob := mustRun(t, dir, "key", "generate", "bob")
	keys := alice + "," + bob

	old := mustRun(t, dir, "nonces", "alice")
	fresh := mustRun(t, dir, "nonces", "alice", "--discard", old)
	assert.NotEqual(t, old, fresh)
	nb := mustRun(t, dir, "nonces", "bob")

	_, err := run(t, dir, "sign", "alice", "--text", "op", "--keys", keys, "--nonces", old+","+nb)
	assert.Error(t, err)
	mustRun(t, dir, "sign", "alice", "--text", "op", "--keys", keys, "--nonces", fresh+","+nb)
}

func TestKeyImportAndProof(t *testing.T) {
	dir := t.TempDir()
	pub := mustRun(t, dir, "key", "generate", "carol", "--private",
		"0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	proof := mustRun(t, dir, "key", "prove", "carol")
	assert.Equal(t, "ok", mustRun(t, dir, "key", "check-proof", "--key", pub, "--proof", proof))

	other := mustRun(t, dir, "key", "generate", "dave")
	_, err := run(t, dir, "key", "check-proof", "--key", other, "--proof", proof)
	assert.Error(t, err)

	_, err = run(t, dir, "key", "show", "nobody")
	assert.Error(t, err)
}

func TestModuleCommand(t *testing.T) {
	dir := t.TempDir()
	alice := mustRun(t, dir, "key", "generate", "alice")
	bob := mustRun(t, dir, "key", "generate", "bob")
	keys := alice + "," + bob

	out := mustRun(t, dir, "module", "alice", "--keys", keys, "--address", "0x3333333333333333333333333333333333333333")
	assert.Equal(t, "0x3333333333333333333333333333333333333333", field(t, out, "module"))
	virtual := field(t, mustRun(t, dir, "address", "--keys", keys), "address")
	assert.Equal(t, virtual, field(t, out, "virtual_address"))
	assert.Len(t, field(t, out, "init_data"), 2+2*(4+32))
	assert.Len(t, field(t, out, "dummy_signature"), 2+2*128)

	// No default module is configured.
	_, err := run(t, dir, "module", "alice", "--keys", keys)
	assert.Error(t, err)

	_, err = run(t, dir, "module", "alice", "--keys", alice, "--address", "0x3333333333333333333333333333333333333333")
	require.NoError(t, err, "a single-signer set containing alice is valid")
}

func TestSessionNeedsSharedMailbox(t *testing.T) {
	dir := t.TempDir()
	alice := mustRun(t, dir, "key", "generate", "alice")
	_, err := run(t, dir, "session", "coordinate", "--keys", alice, "--text", "op")
	assert.ErrorContains(t, err, "redis")
}

func TestInputErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "address", "--keys", "0x1234")
	assert.Error(t, err)

	_, err = run(t, dir, "verify", "--message", "0x01", "--signature", "0x00")
	assert.Error(t, err)

	_, err = run(t, dir, "verify", "--text", "a", "--message", "0x01", "--signature", "0x00")
	assert.ErrorContains(t, err, "either")

	_, err = run(t, dir, "--curve", "p256", "key", "list")
	assert.ErrorContains(t, err, "INVALID_CONFIGURATION")
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "config", "show")
	assert.Contains(t, out, "curve: secp256k1")
	assert.Contains(t, out, dir)

	assert.Contains(t, mustRun(t, dir, "config", "env"), "SCHNORRKEL_MAILBOX_BACKEND")
}

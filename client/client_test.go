package client_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"e2ecore/client"
	"e2ecore/errs"
	"e2ecore/suite"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	s := suite.NewClassic("e2ecore-client-test")
	c, err := client.New(s, 0, 0, 0)
	require.NoError(t, err)
	return c
}

func TestTwoTurnExchangeThroughClient(t *testing.T) {
	alice := newTestClient(t)
	bob := newTestClient(t)

	bobBundle, err := bob.RegistrationBundle()
	require.NoError(t, err)

	first, msg, err := alice.InitSession("bob", bobBundle, nil, []byte("hello bob"))
	require.NoError(t, err)

	pt, err := bob.InitReceivingSession("alice", bobBundle.SignedPrekeyID, first, msg)
	require.NoError(t, err)
	require.Equal(t, "hello bob", string(pt))

	reply, err := bob.EncryptMessage("alice", []byte("hello alice"))
	require.NoError(t, err)
	pt2, err := alice.DecryptMessage("bob", reply)
	require.NoError(t, err)
	require.Equal(t, "hello alice", string(pt2))
}

func TestDuplicateSessionInitRejected(t *testing.T) {
	alice := newTestClient(t)
	bob := newTestClient(t)
	bobBundle, err := bob.RegistrationBundle()
	require.NoError(t, err)

	_, _, err = alice.InitSession("bob", bobBundle, nil, []byte("hi"))
	require.NoError(t, err)

	_, _, err = alice.InitSession("bob", bobBundle, nil, []byte("hi again"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.SessionAlreadyExists))

	alice.RemoveSession("bob")
	_, _, err = alice.InitSession("bob", bobBundle, nil, []byte("hi once more"))
	require.NoError(t, err)
}

func TestHasSessionAndActiveSessions(t *testing.T) {
	alice := newTestClient(t)
	bob := newTestClient(t)
	bobBundle, err := bob.RegistrationBundle()
	require.NoError(t, err)

	require.False(t, alice.HasSession("bob"))
	_, _, err = alice.InitSession("bob", bobBundle, nil, []byte("hi"))
	require.NoError(t, err)
	require.True(t, alice.HasSession("bob"))
	require.Equal(t, []string{"bob"}, alice.ActiveSessions())
}

func TestEncryptWithoutSessionFails(t *testing.T) {
	alice := newTestClient(t)
	_, err := alice.EncryptMessage("nobody", []byte("hi"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.NoSession))
}

func TestRotatePrekeyKeepsBundleVerifiable(t *testing.T) {
	s := suite.NewClassic("e2ecore-client-test")
	bob, err := client.New(s, time.Hour, 0, 0)
	require.NoError(t, err)

	before, err := bob.RegistrationBundle()
	require.NoError(t, err)

	_, err = bob.RotatePrekey()
	require.NoError(t, err)

	after, err := bob.RegistrationBundle()
	require.NoError(t, err)
	require.NotEqual(t, before.SignedPrekeyID, after.SignedPrekeyID)
	require.NoError(t, s.Verify(after.VerifyingKey, after.SignedPrekeyPub, after.Signature))
}

func mustIdentityPublic(t *testing.T, c *client.Client) suite.PublicKey {
	t.Helper()
	b, err := c.RegistrationBundle()
	require.NoError(t, err)
	return b.IdentityPub
}

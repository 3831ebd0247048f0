package keymanager_test

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"e2ecore/keymanager"
	"e2ecore/suite"
)

func TestNewGeneratesUsableBundle(t *testing.T) {
	s := suite.NewClassic("e2ecore-km-test")
	m, err := keymanager.New(s, 0)
	require.NoError(t, err)

	bundle, err := m.ExportRegistrationBundle()
	require.NoError(t, err)
	require.Equal(t, suite.Classic, bundle.SuiteID)
	require.NoError(t, s.Verify(bundle.VerifyingKey, bundle.SignedPrekeyPub, bundle.Signature))
	require.Empty(t, bundle.OneTimeKeys)
}

func TestExportRegistrationBundleDoesNotMintFreshKeys(t *testing.T) {
	s := suite.NewClassic("e2ecore-km-test")
	m, err := keymanager.New(s, 0)
	require.NoError(t, err)

	b1, err := m.ExportRegistrationBundle()
	require.NoError(t, err)
	b2, err := m.ExportRegistrationBundle()
	require.NoError(t, err)

	require.Equal(t, b1.IdentityPub, b2.IdentityPub)
	require.Equal(t, b1.SignedPrekeyPub, b2.SignedPrekeyPub)
	require.Equal(t, b1.SignedPrekeyID, b2.SignedPrekeyID)
}

func TestRotateSignedPrekeyArchivesPrevious(t *testing.T) {
	s := suite.NewClassic("e2ecore-km-test")
	m, err := keymanager.New(s, time.Hour)
	require.NoError(t, err)

	first := m.CurrentSignedPrekey()
	second, err := m.RotateSignedPrekey()
	require.NoError(t, err)
	require.NotEqual(t, first.KeyID, second.KeyID)

	got, ok := m.GetPrekey(first.KeyID)
	require.True(t, ok)
	require.Equal(t, first.Pub, got.Pub)

	current, ok := m.GetPrekey(second.KeyID)
	require.True(t, ok)
	require.Equal(t, second.Pub, current.Pub)
}

func TestRotateSignedPrekeyEvictsExpiredHistory(t *testing.T) {
	s := suite.NewClassic("e2ecore-km-test")
	m, err := keymanager.New(s, time.Nanosecond)
	require.NoError(t, err)

	first := m.CurrentSignedPrekey()
	time.Sleep(time.Millisecond)
	_, err = m.RotateSignedPrekey()
	require.NoError(t, err)

	_, ok := m.GetPrekey(first.KeyID)
	require.False(t, ok)
}

func TestOneTimePrekeyConsumedOnce(t *testing.T) {
	s := suite.NewClassic("e2ecore-km-test")
	m, err := keymanager.New(s, 0)
	require.NoError(t, err)

	otks, err := m.GenerateOneTimePrekeys(rand.Reader, 3)
	require.NoError(t, err)
	require.Len(t, otks, 3)

	bundle, err := m.ExportRegistrationBundle()
	require.NoError(t, err)
	require.Len(t, bundle.OneTimeKeys, 3)

	_, ok := m.ConsumeOneTimePrekey(otks[0].KeyID)
	require.True(t, ok)
	_, ok = m.ConsumeOneTimePrekey(otks[0].KeyID)
	require.False(t, ok)

	bundle2, err := m.ExportRegistrationBundle()
	require.NoError(t, err)
	require.Len(t, bundle2.OneTimeKeys, 2)
}

func TestFromKeysRestoresClassicManager(t *testing.T) {
	s := suite.NewClassic("e2ecore-km-test")
	original, err := keymanager.New(s, 0)
	require.NoError(t, err)

	restored, err := keymanager.FromKeys(
		s,
		original.IdentityPrivate(),
		original.SigningPrivate(),
		original.CurrentSignedPrekey().Priv,
		original.CurrentSignedPrekey().Signature,
		0,
	)
	require.NoError(t, err)

	require.Equal(t, original.IdentityPublic(), restored.IdentityPublic())
	require.Equal(t, original.VerifyingKey(), restored.VerifyingKey())

	bundle, err := restored.ExportRegistrationBundle()
	require.NoError(t, err)
	require.NoError(t, s.Verify(bundle.VerifyingKey, bundle.SignedPrekeyPub, bundle.Signature))
}

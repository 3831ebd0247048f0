package keyvault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"e2ecore/errs"
	"e2ecore/keymanager"
	"e2ecore/keyvault"
	"e2ecore/suite"
)

func TestSealUnsealRoundTrip(t *testing.T) {
	s := suite.NewClassic("e2ecore-vault-test")
	m, err := keymanager.New(s, 0)
	require.NoError(t, err)

	v, err := keyvault.Seal(s, m, "correct horse battery staple", 10000)
	require.NoError(t, err)

	restored, err := keyvault.Unseal(s, v, "correct horse battery staple", 0)
	require.NoError(t, err)

	require.Equal(t, m.IdentityPublic(), restored.IdentityPublic())
	require.Equal(t, m.VerifyingKey(), restored.VerifyingKey())
	require.Equal(t, m.CurrentSignedPrekey().Pub, restored.CurrentSignedPrekey().Pub)
}

func TestUnsealWrongPassword(t *testing.T) {
	s := suite.NewClassic("e2ecore-vault-test")
	m, err := keymanager.New(s, 0)
	require.NoError(t, err)

	v, err := keyvault.Seal(s, m, "correct horse battery staple", 10000)
	require.NoError(t, err)

	_, err = keyvault.Unseal(s, v, "wrong password", 0)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidPassword))
}

func TestSealRejectsEmptyPassword(t *testing.T) {
	s := suite.NewClassic("e2ecore-vault-test")
	m, err := keymanager.New(s, 0)
	require.NoError(t, err)

	_, err = keyvault.Seal(s, m, "", 10000)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidInput))
}

func TestVaultWireRoundTrip(t *testing.T) {
	s := suite.NewClassic("e2ecore-vault-test")
	m, err := keymanager.New(s, 0)
	require.NoError(t, err)

	v, err := keyvault.Seal(s, m, "correct horse battery staple", 10000)
	require.NoError(t, err)

	b, err := v.Marshal()
	require.NoError(t, err)

	got, err := keyvault.UnmarshalVault(b)
	require.NoError(t, err)
	require.Equal(t, v.Salt, got.Salt)
	require.Equal(t, v.PrekeyID, got.PrekeyID)

	restored, err := keyvault.Unseal(s, got, "correct horse battery staple", 0)
	require.NoError(t, err)
	require.Equal(t, m.IdentityPublic(), restored.IdentityPublic())
}

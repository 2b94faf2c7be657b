package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/Inventario-stock/pkg/jwt"
)

func TestGenerateParse_RoundTrip(t *testing.T) {
	tok, err := pkgjwt.Generate("secret", "user-1", "tenant-1", "inventario-stock", 5)
	require.NoError(t, err)

	userID, tenantID, err := pkgjwt.Parse("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "tenant-1", tenantID)
}

func TestParse_FirmaIncorrecta(t *testing.T) {
	tok, err := pkgjwt.Generate("secret", "user-1", "tenant-1", "x", 5)
	require.NoError(t, err)

	_, _, err = pkgjwt.Parse("otro-secret", tok)
	assert.Error(t, err)
}

func TestParse_Expirado(t *testing.T) {
	tok, err := pkgjwt.Generate("secret", "user-1", "tenant-1", "x", -1)
	require.NoError(t, err)

	_, _, err = pkgjwt.Parse("secret", tok)
	assert.Error(t, err)
}

func TestGenerate_SecretVacio(t *testing.T) {
	_, err := pkgjwt.Generate("", "u", "t", "x", 5)
	assert.Error(t, err)
}

package note

import (
	crand "crypto/rand"
	"fmt"
	"strings"
	"testing"

	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/crypto"
	"github.com/stretchr/testify/require"
)

func TestAddressCodec(t *testing.T) {
	pubKeyBytes := make([]byte, 32)
	_, _ = crand.Read(pubKeyBytes)

	addr0 := EncodeAddress(pubKeyBytes)
	require.True(t, strings.HasPrefix(addr0, "ph"))

	// wrong prefix
	_, err := DecodeAddress(fmt.Sprintf("bz%s", addr0[2:]))
	require.ErrorIs(t, err, common.ErrInvalidParameters)

	bz, err := DecodeAddress(addr0)
	require.NoError(t, err)
	require.Equal(t, pubKeyBytes, bz)
}

func TestAddressPubKey(t *testing.T) {
	sk, err := crypto.NewKey()
	require.NoError(t, err)

	addr := Pub2Addr(&sk.PublicKey)
	pk, err := Addr2Pub(addr)
	require.NoError(t, err)
	require.True(t, pk.A.Equal(&sk.PublicKey.A))
}

package note

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/kysee/phoenix/phoenix/common"
)

const (
	addrPrefix = "ph"
	addrVer    = 0x01
)

// EncodeAddress renders an owner key as "ph" + base58check(payload).
func EncodeAddress(payload []byte) string {
	return addrPrefix + base58.CheckEncode(payload, addrVer)
}

func DecodeAddress(addr string) ([]byte, error) {
	if !strings.HasPrefix(addr, addrPrefix) {
		return nil, fmt.Errorf("%w: wrong address prefix in %q", common.ErrInvalidParameters, addr)
	}
	bz, ver, err := base58.CheckDecode(addr[len(addrPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidParameters, err)
	}
	if ver != addrVer {
		return nil, fmt.Errorf("%w: wrong address version: expected(%d), got(%d)", common.ErrInvalidParameters, addrVer, ver)
	}
	return bz, nil
}

func Pub2Addr(pk *eddsa.PublicKey) string {
	return EncodeAddress(pk.Bytes())
}

func Addr2Pub(addr string) (*eddsa.PublicKey, error) {
	bz, err := DecodeAddress(addr)
	if err != nil {
		return nil, err
	}
	pk := new(eddsa.PublicKey)
	if _, err := pk.SetBytes(bz); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidParameters, err)
	}
	return pk, nil
}

package soroban

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// addressToScVal encodes an account (G...) or contract (C...) strkey as an ScVal address.
func addressToScVal(address string) (xdr.ScVal, error) {
	addr, err := parseScAddress(address)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
}

// IsAccountID reports whether s is a valid G... account strkey.
func IsAccountID(s string) bool {
	_, err := strkey.Decode(strkey.VersionByteAccountID, s)
	return err == nil
}

func parseScAddress(address string) (xdr.ScAddress, error) {
	switch {
	case strings.HasPrefix(address, "G"):
		var accountID xdr.AccountId
		if err := accountID.SetAddress(address); err != nil {
			return xdr.ScAddress{}, fmt.Errorf("invalid account address %q: %w", address, err)
		}
		return xdr.ScAddress{
			Type:      xdr.ScAddressTypeScAddressTypeAccount,
			AccountId: &accountID,
		}, nil
	case strings.HasPrefix(address, "C"):
		raw, err := strkey.Decode(strkey.VersionByteContract, address)
		if err != nil {
			return xdr.ScAddress{}, fmt.Errorf("invalid contract address %q: %w", address, err)
		}
		var contractID xdr.Hash
		copy(contractID[:], raw)
		return xdr.ScAddress{
			Type:       xdr.ScAddressTypeScAddressTypeContract,
			ContractId: &contractID,
		}, nil
	default:
		return xdr.ScAddress{}, fmt.Errorf("unsupported address %q", address)
	}
}

func scAddressToString(addr xdr.ScAddress) (string, error) {
	switch addr.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		if addr.AccountId == nil {
			return "", fmt.Errorf("account address without account id")
		}
		return addr.AccountId.GetAddress()
	case xdr.ScAddressTypeScAddressTypeContract:
		if addr.ContractId == nil {
			return "", fmt.Errorf("contract address without contract id")
		}
		return strkey.Encode(strkey.VersionByteContract, addr.ContractId[:])
	default:
		return "", fmt.Errorf("unsupported address type %v", addr.Type)
	}
}

func u32ScVal(v uint32) xdr.ScVal {
	u := xdr.Uint32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

// scValToNative converts a contract value into a plain Go value.
// Void becomes nil, addresses become strkeys and 128-bit integers become *big.Int.
func scValToNative(v xdr.ScVal) (any, error) {
	switch v.Type {
	case xdr.ScValTypeScvVoid:
		return nil, nil
	case xdr.ScValTypeScvBool:
		return *v.B, nil
	case xdr.ScValTypeScvU32:
		return uint32(*v.U32), nil
	case xdr.ScValTypeScvI32:
		return int32(*v.I32), nil
	case xdr.ScValTypeScvU64:
		return uint64(*v.U64), nil
	case xdr.ScValTypeScvI64:
		return int64(*v.I64), nil
	case xdr.ScValTypeScvU128:
		hi := new(big.Int).SetUint64(uint64(v.U128.Hi))
		lo := new(big.Int).SetUint64(uint64(v.U128.Lo))
		return hi.Lsh(hi, 64).Or(hi, lo), nil
	case xdr.ScValTypeScvI128:
		hi := big.NewInt(int64(v.I128.Hi))
		lo := new(big.Int).SetUint64(uint64(v.I128.Lo))
		return hi.Lsh(hi, 64).Add(hi, lo), nil
	case xdr.ScValTypeScvSymbol:
		return string(*v.Sym), nil
	case xdr.ScValTypeScvString:
		return string(*v.Str), nil
	case xdr.ScValTypeScvAddress:
		return scAddressToString(*v.Address)
	default:
		return nil, fmt.Errorf("unsupported ScVal type %v", v.Type)
	}
}

// toUint64 converts a native integer into a non-negative count.
func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int32:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case *big.Int:
		return n.Uint64(), n.Sign() >= 0 && n.IsUint64()
	default:
		return 0, false
	}
}

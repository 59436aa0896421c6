package events

import (
	"math/big"
	"strings"

	"rewardvault/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addrString(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.FromRaw(addr).String()
}

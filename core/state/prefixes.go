package state

import "encoding/hex"

var (
	rolePrefix       = []byte("state/role/")
	pausedKey        = []byte("state/paused")
	schemaVersionKey = []byte("state/schema")
)

func roleKey(role string, addr []byte) []byte {
	suffix := role + "/" + hex.EncodeToString(addr)
	buf := make([]byte, len(rolePrefix)+len(suffix))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], suffix)
	return buf
}

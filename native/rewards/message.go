package rewards

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	repoCrypto "rewardvault/crypto"
)

// AuthDomainV1 scopes every authorization digest to this protocol and
// version. The digest additionally binds the chain identifier and the ledger's
// own address, so a signature is only ever valid on one deployment.
const AuthDomainV1 = "REWARDVAULT_AUTH_V1"

// WithdrawAuthorization is the off-chain signed message releasing stable
// value back to a receiver.
type WithdrawAuthorization struct {
	Authorizer [20]byte
	Requester  [20]byte
	Receiver   [20]byte
	LedgerID   [20]byte
	Amount     *big.Int
	Asset      string
	ChainID    uint64
	Salt       []byte
}

// ClaimAuthorization is the off-chain signed message releasing reward points
// from vault custody. Unlike withdrawals it carries an expiry deadline.
type ClaimAuthorization struct {
	Authorizer [20]byte
	Requester  [20]byte
	LedgerID   [20]byte
	Amount     *big.Int
	ChainID    uint64
	Salt       []byte
	Deadline   int64
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

// Hash reconstructs the canonical domain-bound digest signed by the
// authorizer. Field order is fixed; any change to any field, the chain id, or
// the ledger identity produces a different digest.
func (m WithdrawAuthorization) Hash() []byte {
	payload := fmt.Sprintf("%s|kind=withdraw|chain=%d|ledger=%s|authorizer=%s|requester=%s|receiver=%s|amount=%s|asset=%s|salt=%s",
		AuthDomainV1,
		m.ChainID,
		hex.EncodeToString(m.LedgerID[:]),
		hex.EncodeToString(m.Authorizer[:]),
		hex.EncodeToString(m.Requester[:]),
		hex.EncodeToString(m.Receiver[:]),
		amountString(m.Amount),
		strings.ToUpper(strings.TrimSpace(m.Asset)),
		strings.ToLower(hex.EncodeToString(m.Salt)),
	)
	return ethcrypto.Keccak256([]byte(payload))
}

// Hash reconstructs the canonical domain-bound digest signed by the
// authorizer.
func (m ClaimAuthorization) Hash() []byte {
	payload := fmt.Sprintf("%s|kind=claim|chain=%d|ledger=%s|authorizer=%s|requester=%s|amount=%s|salt=%s|deadline=%d",
		AuthDomainV1,
		m.ChainID,
		hex.EncodeToString(m.LedgerID[:]),
		hex.EncodeToString(m.Authorizer[:]),
		hex.EncodeToString(m.Requester[:]),
		amountString(m.Amount),
		strings.ToLower(hex.EncodeToString(m.Salt)),
		m.Deadline,
	)
	return ethcrypto.Keccak256([]byte(payload))
}

// Fingerprint derives the replay-protection key from the signature bytes.
func Fingerprint(signature []byte) [32]byte {
	var fp [32]byte
	copy(fp[:], ethcrypto.Keccak256(signature))
	return fp
}

// --- Wire representation ---

type withdrawAuthorizationJSON struct {
	Authorizer string `json:"authorizer"`
	Requester  string `json:"requester"`
	Receiver   string `json:"receiver"`
	LedgerID   string `json:"ledgerId"`
	Amount     string `json:"amount"`
	Asset      string `json:"asset"`
	ChainID    uint64 `json:"chainId"`
	Salt       string `json:"salt"`
}

type claimAuthorizationJSON struct {
	Authorizer string `json:"authorizer"`
	Requester  string `json:"requester"`
	LedgerID   string `json:"ledgerId"`
	Amount     string `json:"amount"`
	ChainID    uint64 `json:"chainId"`
	Salt       string `json:"salt"`
	Deadline   int64  `json:"deadline"`
}

func encodeAddr(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return repoCrypto.FromRaw(addr).String()
}

func decodeAddr(field, value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("authorization: %s required", field)
	}
	addr, err := repoCrypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, fmt.Errorf("authorization: %s: %w", field, err)
	}
	return addr.Raw(), nil
}

func decodeAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("authorization: amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("authorization: invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("authorization: amount must be positive")
	}
	return amount, nil
}

func decodeSalt(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("authorization: salt required")
	}
	normalized := strings.TrimPrefix(strings.ToLower(trimmed), "0x")
	salt, err := hex.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("authorization: salt: %w", err)
	}
	return salt, nil
}

// MarshalJSON encodes the message into the representation consumed by RPC
// clients and the signing CLI.
func (m WithdrawAuthorization) MarshalJSON() ([]byte, error) {
	payload := withdrawAuthorizationJSON{
		Authorizer: encodeAddr(m.Authorizer),
		Requester:  encodeAddr(m.Requester),
		Receiver:   encodeAddr(m.Receiver),
		LedgerID:   encodeAddr(m.LedgerID),
		Amount:     amountString(m.Amount),
		Asset:      strings.ToUpper(strings.TrimSpace(m.Asset)),
		ChainID:    m.ChainID,
		Salt:       strings.ToLower(hex.EncodeToString(m.Salt)),
	}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes the on-wire representation into the canonical struct.
func (m *WithdrawAuthorization) UnmarshalJSON(data []byte) error {
	if m == nil {
		return fmt.Errorf("authorization: nil receiver")
	}
	var payload withdrawAuthorizationJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	authorizer, err := decodeAddr("authorizer", payload.Authorizer)
	if err != nil {
		return err
	}
	requester, err := decodeAddr("requester", payload.Requester)
	if err != nil {
		return err
	}
	receiver, err := decodeAddr("receiver", payload.Receiver)
	if err != nil {
		return err
	}
	ledgerID, err := decodeAddr("ledgerId", payload.LedgerID)
	if err != nil {
		return err
	}
	amount, err := decodeAmount(payload.Amount)
	if err != nil {
		return err
	}
	salt, err := decodeSalt(payload.Salt)
	if err != nil {
		return err
	}
	asset := strings.ToUpper(strings.TrimSpace(payload.Asset))
	if asset == "" {
		return fmt.Errorf("authorization: asset required")
	}
	*m = WithdrawAuthorization{
		Authorizer: authorizer,
		Requester:  requester,
		Receiver:   receiver,
		LedgerID:   ledgerID,
		Amount:     amount,
		Asset:      asset,
		ChainID:    payload.ChainID,
		Salt:       salt,
	}
	return nil
}

// MarshalJSON encodes the message into the representation consumed by RPC
// clients and the signing CLI.
func (m ClaimAuthorization) MarshalJSON() ([]byte, error) {
	payload := claimAuthorizationJSON{
		Authorizer: encodeAddr(m.Authorizer),
		Requester:  encodeAddr(m.Requester),
		LedgerID:   encodeAddr(m.LedgerID),
		Amount:     amountString(m.Amount),
		ChainID:    m.ChainID,
		Salt:       strings.ToLower(hex.EncodeToString(m.Salt)),
		Deadline:   m.Deadline,
	}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes the on-wire representation into the canonical struct.
func (m *ClaimAuthorization) UnmarshalJSON(data []byte) error {
	if m == nil {
		return fmt.Errorf("authorization: nil receiver")
	}
	var payload claimAuthorizationJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	authorizer, err := decodeAddr("authorizer", payload.Authorizer)
	if err != nil {
		return err
	}
	requester, err := decodeAddr("requester", payload.Requester)
	if err != nil {
		return err
	}
	ledgerID, err := decodeAddr("ledgerId", payload.LedgerID)
	if err != nil {
		return err
	}
	amount, err := decodeAmount(payload.Amount)
	if err != nil {
		return err
	}
	salt, err := decodeSalt(payload.Salt)
	if err != nil {
		return err
	}
	*m = ClaimAuthorization{
		Authorizer: authorizer,
		Requester:  requester,
		LedgerID:   ledgerID,
		Amount:     amount,
		ChainID:    payload.ChainID,
		Salt:       salt,
		Deadline:   payload.Deadline,
	}
	return nil
}

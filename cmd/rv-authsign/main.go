// Command rv-authsign is the operator tool for the off-chain side of the
// vault's authorization protocol: it generates signer keys and produces
// signed withdraw/claim authorizations in the JSON form the vault API
// accepts.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"rewardvault/crypto"
	"rewardvault/native/rewards"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "gen":
		err = runGen()
	case "sign-withdraw":
		err = runSignWithdraw(os.Args[2:])
	case "sign-claim":
		err = runSignClaim(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rv-authsign: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  rv-authsign gen
  rv-authsign sign-withdraw -key <hex> -requester <addr> -receiver <addr> -ledger <addr> -amount <raw> -asset <symbol> -chain <id> [-salt <hex>]
  rv-authsign sign-claim -key <hex> -requester <addr> -ledger <addr> -amount <points> -chain <id> -ttl <duration> [-salt <hex>]`)
}

func runGen() error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	out := map[string]string{
		"privateKey": hex.EncodeToString(key.Bytes()),
		"address":    key.PubKey().Address().String(),
	}
	return json.NewEncoder(os.Stdout).Encode(out)
}

func loadKey(keyHex string) (*crypto.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("signing key required")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	return crypto.PrivateKeyFromBytes(raw)
}

func resolveSalt(saltHex string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(saltHex), "0x")
	if trimmed == "" {
		id := uuid.New()
		return id[:], nil
	}
	salt, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return salt, nil
}

func parseAddr(field, value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr.Raw(), nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be a positive integer, got %q", value)
	}
	return amount, nil
}

type signedAuthorization struct {
	Message   interface{} `json:"message"`
	Signature string      `json:"signature"`
}

func emit(message interface{}, signature []byte) error {
	return json.NewEncoder(os.Stdout).Encode(signedAuthorization{
		Message:   message,
		Signature: "0x" + hex.EncodeToString(signature),
	})
}

func runSignWithdraw(args []string) error {
	fs := flag.NewFlagSet("sign-withdraw", flag.ExitOnError)
	keyHex := fs.String("key", "", "authorizer private key (hex)")
	requester := fs.String("requester", "", "requesting account address")
	receiver := fs.String("receiver", "", "receiving account address")
	ledger := fs.String("ledger", "", "vault ledger address")
	amountStr := fs.String("amount", "", "raw stable amount")
	asset := fs.String("asset", "", "stable asset symbol")
	chainID := fs.Uint64("chain", 0, "chain identifier")
	saltHex := fs.String("salt", "", "salt (hex, random when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := loadKey(*keyHex)
	if err != nil {
		return err
	}
	requesterAddr, err := parseAddr("requester", *requester)
	if err != nil {
		return err
	}
	receiverAddr, err := parseAddr("receiver", *receiver)
	if err != nil {
		return err
	}
	ledgerAddr, err := parseAddr("ledger", *ledger)
	if err != nil {
		return err
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}
	if *chainID == 0 {
		return fmt.Errorf("chain identifier required")
	}
	salt, err := resolveSalt(*saltHex)
	if err != nil {
		return err
	}

	msg := rewards.WithdrawAuthorization{
		Authorizer: key.PubKey().Address().Raw(),
		Requester:  requesterAddr,
		Receiver:   receiverAddr,
		LedgerID:   ledgerAddr,
		Amount:     amount,
		Asset:      strings.ToUpper(strings.TrimSpace(*asset)),
		ChainID:    *chainID,
		Salt:       salt,
	}
	signature, err := key.Sign(msg.Hash())
	if err != nil {
		return err
	}
	return emit(msg, signature)
}

func runSignClaim(args []string) error {
	fs := flag.NewFlagSet("sign-claim", flag.ExitOnError)
	keyHex := fs.String("key", "", "authorizer private key (hex)")
	requester := fs.String("requester", "", "requesting account address")
	ledger := fs.String("ledger", "", "vault ledger address")
	amountStr := fs.String("amount", "", "reward point amount")
	chainID := fs.Uint64("chain", 0, "chain identifier")
	ttl := fs.Duration("ttl", time.Hour, "validity window")
	saltHex := fs.String("salt", "", "salt (hex, random when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := loadKey(*keyHex)
	if err != nil {
		return err
	}
	requesterAddr, err := parseAddr("requester", *requester)
	if err != nil {
		return err
	}
	ledgerAddr, err := parseAddr("ledger", *ledger)
	if err != nil {
		return err
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}
	if *chainID == 0 {
		return fmt.Errorf("chain identifier required")
	}
	salt, err := resolveSalt(*saltHex)
	if err != nil {
		return err
	}

	msg := rewards.ClaimAuthorization{
		Authorizer: key.PubKey().Address().Raw(),
		Requester:  requesterAddr,
		LedgerID:   ledgerAddr,
		Amount:     amount,
		ChainID:    *chainID,
		Salt:       salt,
		Deadline:   time.Now().Add(*ttl).Unix(),
	}
	signature, err := key.Sign(msg.Hash())
	if err != nil {
		return err
	}
	return emit(msg, signature)
}

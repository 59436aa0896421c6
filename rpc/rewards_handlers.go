package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rewardvault/crypto"
	nativecommon "rewardvault/native/common"
	"rewardvault/native/rewards"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rewards.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, rewards.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, rewards.ErrSignatureExpired):
		return http.StatusGone
	case errors.Is(err, rewards.ErrSignatureReuse),
		errors.Is(err, nativecommon.ErrPaused),
		errors.Is(err, rewards.ErrNotPaused):
		return http.StatusConflict
	case errors.Is(err, rewards.ErrInvalidAmount),
		errors.Is(err, rewards.ErrZeroAmount),
		errors.Is(err, rewards.ErrRoundAmountRequired),
		errors.Is(err, rewards.ErrAmountOverflow),
		errors.Is(err, rewards.ErrZeroAddress),
		errors.Is(err, rewards.ErrReservedAddress):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseAddress(field, value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr.Raw(), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, value)
	}
	return amount, nil
}

func parseSignature(value string) ([]byte, error) {
	normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), "0x")
	sig, err := hex.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return sig, nil
}

func badRequest(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

type depositRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.Deposit(caller, amount)
	s.observe("deposit", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type cashbackRequest struct {
	Caller    string                         `json:"caller"`
	Message   *rewards.WithdrawAuthorization `json:"message"`
	Signature string                         `json:"signature"`
}

func (s *Server) handleCashback(w http.ResponseWriter, r *http.Request) {
	var req cashbackRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.Cashback(caller, req.Message, sig)
	s.observe("cashback", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type swapRequest struct {
	Caller       string `json:"caller"`
	RewardAmount string `json:"rewardAmount"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := parseAmount("rewardAmount", req.RewardAmount)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.Swap(caller, amount)
	s.observe("swap", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type claimRequest struct {
	Caller    string                      `json:"caller"`
	Message   *rewards.ClaimAuthorization `json:"message"`
	Signature string                      `json:"signature"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.Claim(caller, req.Message, sig)
	s.observe("claim", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type distributeRequest struct {
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
	Amount   string `json:"amount"`
	Fee      string `json:"fee"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	receiver, err := parseAddress("receiver", req.Receiver)
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	fee := big.NewInt(0)
	if strings.TrimSpace(req.Fee) != "" {
		fee, err = parseAmount("fee", req.Fee)
		if err != nil {
			badRequest(w, err)
			return
		}
	}
	err = s.engine.DistributeRewards(caller, receiver, amount, fee)
	s.observe("distribute", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.Pause(caller)
	s.observe("pause", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.Unpause(caller)
	s.observe("unpause", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type roleRequest struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Account string `json:"account"`
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.GrantRole(caller, strings.TrimSpace(req.Role), account)
	s.observe("grant_role", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.RevokeRole(caller, strings.TrimSpace(req.Role), account)
	s.observe("revoke_role", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type amountConfigRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleSetMinimalDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountConfigRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.SetMinimalDeposit(caller, amount)
	s.observe("set_minimal_deposit", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleSetDistributeFloor(w http.ResponseWriter, r *http.Request) {
	var req amountConfigRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.SetDistributeFloor(caller, amount)
	s.observe("set_distribute_floor", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type addressConfigRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	var req addressConfigRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	treasury, err := parseAddress("address", req.Address)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.SetTreasury(caller, treasury)
	s.observe("set_treasury", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleSetAuthorizer(w http.ResponseWriter, r *http.Request) {
	var req addressConfigRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	authorizer, err := parseAddress("address", req.Address)
	if err != nil {
		badRequest(w, err)
		return
	}
	err = s.engine.SetAuthorizer(caller, authorizer)
	s.observe("set_authorizer", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type accountResponse struct {
	Address        string `json:"address"`
	TotalDeposited string `json:"totalDeposited"`
	TotalWithdrawn string `json:"totalWithdrawn"`
	TotalEarned    string `json:"totalEarned"`
	Available      string `json:"available"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addrParam := chi.URLParam(r, "address")
	addr, err := parseAddress("address", addrParam)
	if err != nil {
		badRequest(w, err)
		return
	}
	totals, err := s.engine.Totals(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, accountResponse{
		Address:        crypto.FromRaw(addr).String(),
		TotalDeposited: totals.TotalDeposited.String(),
		TotalWithdrawn: totals.TotalWithdrawn.String(),
		TotalEarned:    totals.TotalEarned.String(),
		Available:      totals.Available().String(),
	})
}

type configResponse struct {
	StableSymbol    string `json:"stableSymbol"`
	RewardSymbol    string `json:"rewardSymbol"`
	MinimalDeposit  string `json:"minimalDeposit"`
	DistributeFloor string `json:"distributeFloor"`
	Treasury        string `json:"treasury"`
	Authorizer      string `json:"authorizer"`
	Paused          bool   `json:"paused"`
	ChainID         uint64 `json:"chainId"`
	Vault           string `json:"vault"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.ConfigSnapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, configResponse{
		StableSymbol:    cfg.StableSymbol,
		RewardSymbol:    cfg.RewardSymbol,
		MinimalDeposit:  cfg.MinimalDeposit.String(),
		DistributeFloor: cfg.DistributeFloor.String(),
		Treasury:        crypto.FromRaw(cfg.Treasury).String(),
		Authorizer:      crypto.FromRaw(cfg.Authorizer).String(),
		Paused:          s.engine.Paused(),
		ChainID:         s.engine.ChainID(),
		Vault:           crypto.FromRaw(s.engine.VaultAddress()).String(),
	})
}

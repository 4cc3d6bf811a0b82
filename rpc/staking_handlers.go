package rpc

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

type setStakeTokenParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

type depositParams struct {
	User   string   `json:"user"`
	Amount string   `json:"amount"`
	Tokens []string `json:"tokens,omitempty"`
}

type withdrawParams struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

type tokenListParams struct {
	User   string   `json:"user"`
	Tokens []string `json:"tokens"`
}

type pendingParams struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

type userParams struct {
	User string `json:"user"`
}

type poolParams struct {
	Token string `json:"token"`
}

type positionResult struct {
	Amount string   `json:"amount"`
	Tokens []string `json:"tokens"`
}

type poolResult struct {
	AccPerShare      string `json:"accPerShare"`
	TotalStake       string `json:"totalStake"`
	AccountedBalance string `json:"accountedBalance"`
}

type pendingResult struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (s *Server) handleStakingSetStakeToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setStakeTokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	tokenAddr, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	if err := s.node.SetStakeToken(caller, tokenAddr); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleStakingStakeToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	tokenAddr, ok := s.node.StakeToken()
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, tokenAddr.Hex())
}

func (s *Server) handleStakingDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	tokens, err := parseAddressList(params.Tokens)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid reward token", err.Error())
		return
	}
	if err := s.node.Deposit(user, amount, tokens); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleStakingWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.node.Withdraw(user, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) tokenListArgs(w http.ResponseWriter, req *RPCRequest) (common.Address, []common.Address, bool) {
	var params tokenListParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return common.Address{}, nil, false
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return common.Address{}, nil, false
	}
	tokens, err := parseAddressList(params.Tokens)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid reward token", err.Error())
		return common.Address{}, nil, false
	}
	return user, tokens, true
}

func (s *Server) handleStakingHarvest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	user, tokens, ok := s.tokenListArgs(w, req)
	if !ok {
		return
	}
	if err := s.node.Harvest(user, tokens); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleStakingAddTokenList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	user, tokens, ok := s.tokenListArgs(w, req)
	if !ok {
		return
	}
	if err := s.node.AddTokenList(user, tokens); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleStakingRemoveTokenList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	user, tokens, ok := s.tokenListArgs(w, req)
	if !ok {
		return
	}
	if err := s.node.RemoveTokenList(user, tokens); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleStakingPending(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pendingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	tokenAddr, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	writeResult(w, req.ID, s.node.Pending(user, tokenAddr).String())
}

func (s *Server) handleStakingPendingAll(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params userParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	pending := s.node.PendingAll(user)
	out := make([]pendingResult, 0, len(pending))
	for _, entry := range pending {
		out = append(out, pendingResult{Token: entry.Token.Hex(), Amount: entry.Amount.String()})
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleStakingUserInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params userParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	pos := s.node.StakePosition(user)
	tokens := make([]string, 0, len(pos.Tokens))
	for _, tok := range pos.Tokens {
		tokens = append(tokens, tok.Hex())
	}
	writeResult(w, req.ID, positionResult{Amount: pos.Amount.String(), Tokens: tokens})
}

func (s *Server) handleStakingPoolInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tokenAddr, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	pool := s.node.PoolInfo(tokenAddr)
	writeResult(w, req.ID, poolResult{
		AccPerShare:      pool.AccPerShare.String(),
		TotalStake:       pool.TotalStake.String(),
		AccountedBalance: pool.AccountedBalance.String(),
	})
}

func (s *Server) handleStakingTotalStaking(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, s.node.TotalStaking().String())
}

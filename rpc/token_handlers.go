package rpc

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/native/distributor"
	"daotoken/native/token"
)

type tokenQueryParams struct {
	Token string `json:"token"`
	OrgID string `json:"orgId,omitempty"`
}

type balanceParams struct {
	Token  string `json:"token"`
	Holder string `json:"holder"`
}

type allowanceParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type transferParams struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type transferFromParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

type mintParams struct {
	Caller       string          `json:"caller"`
	OrgID        string          `json:"orgId"`
	Recipients   []mintRecipient `json:"recipients"`
	EndTimestamp int64           `json:"endTimestamp"`
}

type mintRecipient struct {
	Address string `json:"address"`
	Weight  string `json:"weight"`
}

type previewMintParams struct {
	OrgID        string `json:"orgId"`
	EndTimestamp int64  `json:"endTimestamp"`
}

type managerParams struct {
	Token   string `json:"token"`
	Caller  string `json:"caller"`
	Manager string `json:"manager"`
}

type mintShareResult struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type mintResult struct {
	Minted string            `json:"minted"`
	Lp     string            `json:"lp"`
	Dust   string            `json:"dust"`
	Shares []mintShareResult `json:"shares"`
}

type tokenInfoResult struct {
	OrgID           string `json:"orgId"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	TotalSupply     string `json:"totalSupply"`
	TemporaryAmount string `json:"temporaryAmount"`
	LastTimestamp   int64  `json:"lastTimestamp"`
	SettledDays     uint64 `json:"settledDays"`
}

func (s *Server) resolveQueryToken(w http.ResponseWriter, req *RPCRequest, params tokenQueryParams) (*token.Token, bool) {
	if params.OrgID != "" {
		tok, err := s.node.ResolveToken(params.OrgID)
		if err != nil {
			writeModuleError(w, req.ID, err)
			return nil, false
		}
		return tok, true
	}
	addr, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return nil, false
	}
	tok, err := s.node.TokenByAddress(addr)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return nil, false
	}
	return tok, true
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tok, ok := s.resolveQueryToken(w, req, params)
	if !ok {
		return
	}
	anchor := tok.Anchor()
	writeResult(w, req.ID, tokenInfoResult{
		OrgID:           tok.OrgID(),
		Name:            tok.Name(),
		Symbol:          tok.Symbol(),
		Address:         tok.Address().Hex(),
		Owner:           tok.Owner().Hex(),
		TotalSupply:     tok.TotalSupply().String(),
		TemporaryAmount: tok.TemporaryAmount().String(),
		LastTimestamp:   anchor.LastTimestamp,
		SettledDays:     anchor.N,
	})
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tok, ok := s.resolveQueryToken(w, req, tokenQueryParams{Token: params.Token})
	if !ok {
		return
	}
	holder, err := parseAddress(params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid holder address", err.Error())
		return
	}
	writeResult(w, req.ID, tok.BalanceOf(holder).String())
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params allowanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tok, ok := s.resolveQueryToken(w, req, tokenQueryParams{Token: params.Token})
	if !ok {
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	spender, err := parseAddress(params.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid spender address", err.Error())
		return
	}
	writeResult(w, req.ID, tok.Allowance(owner, spender).String())
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tokenAddr, from, to, amount, ok := s.transferArgs(w, req, params.Token, params.From, params.To, params.Amount)
	if !ok {
		return
	}
	if err := s.node.Transfer(tokenAddr, from, to, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params approveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tokenAddr, owner, spender, amount, ok := s.transferArgs(w, req, params.Token, params.Owner, params.Spender, params.Amount)
	if !ok {
		return
	}
	if err := s.node.Approve(tokenAddr, owner, spender, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleTokenTransferFrom(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params transferFromParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tokenAddr, owner, spender, amount, ok := s.transferArgs(w, req, params.Token, params.Owner, params.Spender, params.Amount)
	if !ok {
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	if err := s.node.TransferFrom(tokenAddr, owner, spender, to, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) transferArgs(w http.ResponseWriter, req *RPCRequest, tokenStr, firstStr, secondStr, amountStr string) (tokenAddr, first, second common.Address, amount *big.Int, ok bool) {
	tokenAddr, err := parseAddress(tokenStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	first, err = parseAddress(firstStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	second, err = parseAddress(secondStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	amount, err = parseAmount(amountStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	return tokenAddr, first, second, amount, true
}

func (s *Server) handleTokenMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	recipients := make([]distributor.Recipient, 0, len(params.Recipients))
	for _, raw := range params.Recipients {
		addr, err := parseAddress(raw.Address)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
			return
		}
		weight, err := parseAmount(raw.Weight)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient weight", err.Error())
			return
		}
		recipients = append(recipients, distributor.Recipient{Address: addr, Weight: weight})
	}
	result, err := s.node.Mint(caller, params.OrgID, recipients, params.EndTimestamp)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	shares := make([]mintShareResult, 0, len(result.Shares))
	for _, share := range result.Shares {
		shares = append(shares, mintShareResult{
			Address: share.Address.Hex(),
			Amount:  share.Amount.String(),
		})
	}
	writeResult(w, req.ID, mintResult{
		Minted: result.Minted.String(),
		Lp:     result.Lp.String(),
		Dust:   result.Dust.String(),
		Shares: shares,
	})
}

func (s *Server) handleTokenPreviewMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params previewMintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	minted, err := s.node.PreviewMint(params.OrgID, params.EndTimestamp)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, minted.String())
}

func (s *Server) handleTokenAddManager(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	tokenAddr, caller, manager, ok := s.managerArgs(w, req)
	if !ok {
		return
	}
	if err := s.node.AddManager(tokenAddr, caller, manager); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleTokenRemoveManager(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	tokenAddr, caller, manager, ok := s.managerArgs(w, req)
	if !ok {
		return
	}
	if err := s.node.RemoveManager(tokenAddr, caller, manager); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) managerArgs(w http.ResponseWriter, req *RPCRequest) (tokenAddr, caller, manager common.Address, ok bool) {
	var params managerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tokenAddr, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token address", err.Error())
		return
	}
	caller, err = parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	manager, err = parseAddress(params.Manager)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid manager address", err.Error())
		return
	}
	return tokenAddr, caller, manager, true
}

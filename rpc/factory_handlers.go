package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/native/emission"
	"daotoken/native/factory"
	"daotoken/native/token"
)

type mintArgsParams struct {
	P            string `json:"p"`
	ANumerator   uint64 `json:"aNumerator"`
	ADenominator uint64 `json:"aDenominator"`
	BNumerator   uint64 `json:"bNumerator"`
	BDenominator uint64 `json:"bDenominator"`
	C            uint64 `json:"c"`
	D            uint64 `json:"d"`
}

type deployParams struct {
	Caller        string         `json:"caller"`
	OrgID         string         `json:"orgId"`
	Name          string         `json:"name"`
	Symbol        string         `json:"symbol"`
	Owner         string         `json:"owner"`
	Holders       []string       `json:"holders"`
	Amounts       []string       `json:"amounts"`
	LpRatio       uint64         `json:"lpRatio"`
	LpTotalAmount string         `json:"lpTotalAmount,omitempty"`
	MintArgs      mintArgsParams `json:"mintArgs"`
}

type factoryAdminParams struct {
	Caller  string `json:"caller"`
	Factory string `json:"factory"`
}

type recordParams struct {
	OrgID string `json:"orgId"`
}

type deployResult struct {
	OrgID   string `json:"orgId"`
	Address string `json:"address"`
	Version uint32 `json:"version"`
}

func (p mintArgsParams) toArgs() (emission.Args, error) {
	price, err := parseAmount(p.P)
	if err != nil {
		return emission.Args{}, err
	}
	return emission.Args{
		P:            price,
		ANumerator:   p.ANumerator,
		ADenominator: p.ADenominator,
		BNumerator:   p.BNumerator,
		BDenominator: p.BDenominator,
		C:            p.C,
		D:            p.D,
	}, nil
}

func (s *Server) handleFactoryDeploy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params deployParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	ownerStr := params.Owner
	if strings.TrimSpace(ownerStr) == "" {
		ownerStr = params.Caller
	}
	owner, err := parseAddress(ownerStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	holders, err := parseAddressList(params.Holders)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid holder address", err.Error())
		return
	}
	amounts := make([]*big.Int, 0, len(params.Amounts))
	for _, raw := range params.Amounts {
		amount, err := parseAmount(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid genesis amount", err.Error())
			return
		}
		amounts = append(amounts, amount)
	}
	args, err := params.MintArgs.toArgs()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid mint args", err.Error())
		return
	}
	cfg := token.Config{
		OrgID:    params.OrgID,
		Name:     params.Name,
		Symbol:   params.Symbol,
		Owner:    owner,
		Holders:  holders,
		Amounts:  amounts,
		LpRatio:  params.LpRatio,
		MintArgs: args,
	}
	if strings.TrimSpace(params.LpTotalAmount) != "" {
		budget, err := parseAmount(params.LpTotalAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lp budget", err.Error())
			return
		}
		cfg.LpTotalAmount = budget
	}

	tok, err := s.node.DeployToken(caller, cfg)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	record, _ := s.node.TokenRecord(cfg.OrgID)
	writeResult(w, req.ID, deployResult{
		OrgID:   tok.OrgID(),
		Address: tok.Address().Hex(),
		Version: record.Version,
	})
}

func (s *Server) handleFactoryAdd(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, addr, ok := s.factoryAdminParams(w, req)
	if !ok {
		return
	}
	if err := s.node.AddFactory(caller, addr); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleFactoryRemove(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, addr, ok := s.factoryAdminParams(w, req)
	if !ok {
		return
	}
	if err := s.node.RemoveFactory(caller, addr); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) factoryAdminParams(w http.ResponseWriter, req *RPCRequest) (caller, addr common.Address, ok bool) {
	var params factoryAdminParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return caller, addr, false
	}
	callerAddr, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return caller, addr, false
	}
	factoryAddr, err := parseAddress(params.Factory)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid factory address", err.Error())
		return caller, addr, false
	}
	return callerAddr, factoryAddr, true
}

func (s *Server) handleFactoryRecord(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params recordParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	record, ok := s.node.TokenRecord(params.OrgID)
	if !ok {
		writeModuleError(w, req.ID, factory.ErrNotFound)
		return
	}
	writeResult(w, req.ID, deployResult{
		OrgID:   params.OrgID,
		Address: record.Token.Hex(),
		Version: record.Version,
	})
}

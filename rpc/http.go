package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/core"
	"daotoken/native/emission"
	"daotoken/native/factory"
	"daotoken/native/staking"
	"daotoken/native/token"
	"daotoken/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	rateLimitWindow = time.Minute
	maxTxPerWindow  = 30
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

type rateLimiter struct {
	count       int
	windowStart time.Time
}

type Server struct {
	node *core.Node

	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
	authToken    string
}

// NewServer builds the JSON-RPC server. Mutating methods require the
// bearer token from DAOTOKEN_RPC_TOKEN.
func NewServer(node *core.Node) *Server {
	token := strings.TrimSpace(os.Getenv("DAOTOKEN_RPC_TOKEN"))
	return &Server{
		node:         node,
		rateLimiters: make(map[string]*rateLimiter),
		authToken:    token,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.Handle)
	mux.Handle("/metrics", observability.MetricsHandler())
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeModuleError maps the module sentinel errors onto JSON-RPC codes.
func writeModuleError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, token.ErrUnauthorized),
		errors.Is(err, token.ErrNotOwner),
		errors.Is(err, staking.ErrUnauthorized),
		errors.Is(err, factory.ErrNotOwner),
		errors.Is(err, factory.ErrFactoryNotAuthorized),
		errors.Is(err, factory.ErrRedeployForbidden):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, factory.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeServerError, err.Error(), nil)
	case errors.Is(err, token.ErrInvalidConfig),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrInsufficientStake),
		errors.Is(err, staking.ErrInsufficientFunding),
		errors.Is(err, staking.ErrUnknownAsset),
		errors.Is(err, staking.ErrStakeTokenNotSet),
		errors.Is(err, staking.ErrStakeTokenSet),
		errors.Is(err, emission.ErrStaleSettlement),
		errors.Is(err, emission.ErrFutureSettlement),
		errors.Is(err, emission.ErrInvalidArgs):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}

// Handle is the main request handler that routes to specific handlers.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	observability.RPCRequests.WithLabelValues(req.Method).Inc()

	if mutatingMethods[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		if !s.allowSource(clientSource(r), time.Now()) {
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
	}

	switch req.Method {
	case "factory_deploy":
		s.handleFactoryDeploy(w, r, req)
	case "factory_addFactory":
		s.handleFactoryAdd(w, r, req)
	case "factory_removeFactory":
		s.handleFactoryRemove(w, r, req)
	case "factory_record":
		s.handleFactoryRecord(w, r, req)
	case "token_info":
		s.handleTokenInfo(w, r, req)
	case "token_balanceOf":
		s.handleTokenBalanceOf(w, r, req)
	case "token_allowance":
		s.handleTokenAllowance(w, r, req)
	case "token_transfer":
		s.handleTokenTransfer(w, r, req)
	case "token_approve":
		s.handleTokenApprove(w, r, req)
	case "token_transferFrom":
		s.handleTokenTransferFrom(w, r, req)
	case "token_mint":
		s.handleTokenMint(w, r, req)
	case "token_previewMint":
		s.handleTokenPreviewMint(w, r, req)
	case "token_addManager":
		s.handleTokenAddManager(w, r, req)
	case "token_removeManager":
		s.handleTokenRemoveManager(w, r, req)
	case "staking_setStakeToken":
		s.handleStakingSetStakeToken(w, r, req)
	case "staking_stakeToken":
		s.handleStakingStakeToken(w, r, req)
	case "staking_deposit":
		s.handleStakingDeposit(w, r, req)
	case "staking_withdraw":
		s.handleStakingWithdraw(w, r, req)
	case "staking_harvest":
		s.handleStakingHarvest(w, r, req)
	case "staking_addTokenList":
		s.handleStakingAddTokenList(w, r, req)
	case "staking_removeTokenList":
		s.handleStakingRemoveTokenList(w, r, req)
	case "staking_pending":
		s.handleStakingPending(w, r, req)
	case "staking_pendingAll":
		s.handleStakingPendingAll(w, r, req)
	case "staking_userInfo":
		s.handleStakingUserInfo(w, r, req)
	case "staking_poolInfo":
		s.handleStakingPoolInfo(w, r, req)
	case "staking_totalStaking":
		s.handleStakingTotalStaking(w, r, req)
	case "events_list":
		s.handleEventsList(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

// mutatingMethods require bearer auth and count against the per-source
// rate limit.
var mutatingMethods = map[string]bool{
	"factory_deploy":          true,
	"factory_addFactory":      true,
	"factory_removeFactory":   true,
	"token_transfer":          true,
	"token_approve":           true,
	"token_transferFrom":      true,
	"token_mint":              true,
	"token_addManager":        true,
	"token_removeManager":     true,
	"staking_setStakeToken":   true,
	"staking_deposit":         true,
	"staking_withdraw":        true,
	"staking_harvest":         true,
	"staking_addTokenList":    true,
	"staking_removeTokenList": true,
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string, now time.Time) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.rateLimiters[source]
	if !ok {
		limiter = &rateLimiter{windowStart: now}
		s.rateLimiters[source] = limiter
	}
	if now.Sub(limiter.windowStart) >= rateLimitWindow {
		limiter.windowStart = now
		limiter.count = 0
	}
	if limiter.count >= maxTxPerWindow {
		return false
	}
	limiter.count++
	return true
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a decimal amount", value)
	}
	return amount, nil
}

func parseAddressList(values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, value := range values {
		addr, err := parseAddress(value)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func decodeParams(req *RPCRequest, into interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], into)
}

func (s *Server) handleEventsList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	limit := 50
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &limit); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "limit must be an integer", err.Error())
			return
		}
	}
	if limit <= 0 {
		limit = 50
	} else if limit > 200 {
		limit = 200
	}
	writeResult(w, req.ID, s.node.Events(limit))
}

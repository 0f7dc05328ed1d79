package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/relation"
	"github.com/fitsocial/followgraph/pkg/logging"
	"github.com/fitsocial/followgraph/pkg/telemetry"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MethodHandler is a function that handles a JSON-RPC method
type MethodHandler func(ctx *gin.Context, params json.RawMessage) (interface{}, error)

// JSONRPCHandler handles JSON-RPC requests
type JSONRPCHandler struct {
	methods map[string]MethodHandler
	logger  *zap.Logger
}

// NewJSONRPCHandler creates a new JSON-RPC handler
func NewJSONRPCHandler() *JSONRPCHandler {
	return &JSONRPCHandler{
		methods: make(map[string]MethodHandler),
		logger:  logging.WithComponent("jsonrpc"),
	}
}

// RegisterMethod registers a method handler
func (h *JSONRPCHandler) RegisterMethod(method string, handler MethodHandler) {
	h.methods[method] = handler
}

// Methods returns the number of registered methods
func (h *JSONRPCHandler) Methods() int {
	return len(h.methods)
}

// Handle handles a JSON-RPC request
func (h *JSONRPCHandler) Handle(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "jsonrpc.handle")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req JSONRPCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, nil, ErrParseError, "Parse error", err, true)
		return
	}

	// Validate JSON-RPC version
	if req.JSONRPC != "2.0" {
		h.sendError(c, req.ID, ErrInvalidRequest, "Invalid Request", fmt.Errorf("invalid jsonrpc version"), true)
		return
	}

	c.Set(methodKey, req.Method)
	span.SetAttributes(attribute.String("rpc.method", req.Method))

	handler, ok := h.methods[req.Method]
	if !ok {
		h.sendError(c, req.ID, ErrMethodNotFound, "Method not found", fmt.Errorf("method %s not found", req.Method), true)
		return
	}

	result, err := h.invoke(c, handler, req.Params)
	if err != nil {
		code, message, expose := classify(err)
		h.sendError(c, req.ID, code, message, err, expose)
		return
	}

	h.sendResponse(c, req.ID, result)
}

// invoke runs handler and turns a panic into an internal error
func (h *JSONRPCHandler) invoke(c *gin.Context, handler MethodHandler, params json.RawMessage) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("JSON-RPC method panicked",
				zap.String("method", c.GetString(methodKey)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			result, err = nil, NewError(ErrInternalError, "Internal error")
		}
	}()
	return handler(c, params)
}

// sendResponse sends a successful JSON-RPC response
func (h *JSONRPCHandler) sendResponse(c *gin.Context, id interface{}, result interface{}) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	c.JSON(http.StatusOK, resp)
}

// sendError sends an error JSON-RPC response. Business errors are logged
// at debug level; everything else at error level
func (h *JSONRPCHandler) sendError(c *gin.Context, id interface{}, code int, message string, err error, expose bool) {
	fields := []zap.Field{
		zap.Int("code", code),
		zap.String("message", message),
		zap.String("method", c.GetString(methodKey)),
		zap.Error(err),
	}
	fields = append(fields, logging.TraceFields(c.Request.Context())...)
	if relation.IsTerminal(err) || code == ErrUnauthenticated || code == ErrForbidden {
		h.logger.Debug("JSON-RPC error", fields...)
	} else {
		h.logger.Error("JSON-RPC error", fields...)
	}

	rpcErr := &JSONRPCError{
		Code:    code,
		Message: message,
	}
	if expose && err != nil {
		rpcErr.Data = err.Error()
	}
	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcErr,
	})
}

// bindParams decodes named params into dst and validates its binding tags
func bindParams(raw json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return NewError(ErrInvalidParams, fmt.Sprintf("Invalid params: %v", err))
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return NewError(ErrInvalidParams, fmt.Sprintf("Invalid params: %v", err))
	}
	return nil
}

// Standard JSON-RPC error codes
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
)

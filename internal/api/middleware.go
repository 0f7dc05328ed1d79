package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/relation"
	"github.com/fitsocial/followgraph/pkg/logging"
)

const (
	accountKey   = "account_id"
	authErrorKey = "auth_error"
	methodKey    = "rpc_method"
	requestIDKey = "request_id"

	requestIDHeader = "X-Request-ID"
)

// Authenticator resolves a bearer token to an account id
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Authenticate resolves the bearer token, if any, to the acting account.
// Anonymous requests pass through; methods that need an actor reject them
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			c.Set(authErrorKey, fmt.Errorf("%w: unsupported authorization scheme", relation.ErrUnauthenticated))
			c.Next()
			return
		}

		id, err := a.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			c.Set(authErrorKey, err)
		} else {
			c.Set(accountKey, id)
		}
		c.Next()
	}
}

// actor returns the authenticated account of the request
func actor(c *gin.Context) (string, error) {
	if err, ok := c.Get(authErrorKey); ok {
		return "", err.(error)
	}
	id := c.GetString(accountKey)
	if id == "" {
		return "", fmt.Errorf("%w: missing bearer token", relation.ErrUnauthenticated)
	}
	return id, nil
}

// viewer returns the authenticated account, or "" for anonymous requests.
// A presented but invalid token is still an error
func viewer(c *gin.Context) (string, error) {
	if err, ok := c.Get(authErrorKey); ok {
		return "", err.(error)
	}
	return c.GetString(accountKey), nil
}

// AccessLog assigns a request id and logs every request when it completes
func AccessLog() gin.HandlerFunc {
	logger := logging.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if m := c.GetString(methodKey); m != "" {
			fields = append(fields, zap.String("rpc_method", m))
		}
		if id := c.GetString(accountKey); id != "" {
			fields = append(fields, zap.String("account", id))
		}
		logger.Info("Request completed", fields...)
	}
}

package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/apperror"
	"github.com/garyjia/e-approval/internal/domain/entity"
)

// Trusted headers set by the identity layer in front of the service
const (
	HeaderEmployeeID   = "X-Employee-ID"
	HeaderEmployeeRole = "X-Employee-Role"
	HeaderDepartmentID = "X-Department-ID"
	HeaderRequestID    = "X-Request-ID"
)

const (
	callerKey    = "caller"
	requestIDKey = "request_id"
)

// requestIDMiddleware reuses the inbound request id or assigns a fresh one
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", requestID(c)),
		)
	}
}

// identityMiddleware turns the trusted identity headers into a port.Caller
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		employeeID, err := strconv.ParseInt(c.GetHeader(HeaderEmployeeID), 10, 64)
		if err != nil || employeeID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid " + HeaderEmployeeID,
			})
			return
		}

		role := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderEmployeeRole)))
		if role == "" {
			role = entity.RoleEmployee
		}
		if role != entity.RoleEmployee && role != entity.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "unknown role " + role,
			})
			return
		}

		var departmentID int64
		if raw := c.GetHeader(HeaderDepartmentID); raw != "" {
			departmentID, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
					Success: false,
					Error:   "invalid " + HeaderDepartmentID,
				})
				return
			}
		}

		c.Set(callerKey, port.Caller{
			EmployeeID:   employeeID,
			Role:         role,
			DepartmentID: departmentID,
			RequestID:    requestID(c),
			ClientIP:     c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		})
		c.Next()
	}
}

func callerFrom(c *gin.Context) port.Caller {
	caller, _ := c.MustGet(callerKey).(port.Caller)
	return caller
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// pathID parses a positive int64 path parameter
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

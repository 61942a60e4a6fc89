package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/omnikart/omnikart/internal/payment/domain"
	"go.uber.org/zap"
)

// SignatureHeader carries the webhook HMAC, per the gateway convention.
const SignatureHeader = "X-Razorpay-Signature"

func (s *Server) registerPaymentRoutes() {
	payments := s.engine.Group("/api/v1/payments")

	payments.POST("/orders", s.limitOrders(), s.CreatePaymentOrder)
	payments.POST("/verify", s.VerifyPayment)
	payments.POST("/webhook", s.limitWebhook(), s.HandleGatewayWebhook)
	payments.POST("/refund", s.CreateRefund)
	payments.GET("", s.ListPayments)
	payments.GET("/:id", s.GetPayment)
}

func (s *Server) limitOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := s.limiter.AllowOrder(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Redis trouble never blocks checkout.
			s.log.Warn("order rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			s.metrics.RecordRateLimited("orders")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many order requests",
			}})
			return
		}
		c.Next()
	}
}

func (s *Server) limitWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := s.limiter.AllowWebhook(c.Request.Context())
		if err != nil {
			s.log.Warn("webhook rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			s.metrics.RecordRateLimited("webhook")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many webhook deliveries",
			}})
			return
		}
		c.Next()
	}
}

func (s *Server) CreatePaymentOrder(c *gin.Context) {
	var req paymentdomain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.paymentSvc.CreateOrder(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) VerifyPayment(c *gin.Context) {
	var req paymentdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.paymentSvc.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleGatewayWebhook always acknowledges application-level anomalies with
// 200 so the provider stops retrying; only a bad signature earns a 400.
func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.paymentSvc.ProcessWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) CreateRefund(c *gin.Context) {
	var req paymentdomain.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.paymentSvc.ProcessRefund(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListPayments(c *gin.Context) {
	var req paymentdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.paymentSvc.ListPayments(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetPayment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	rec, err := s.paymentSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": rec})
}

package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/bankcore/banking-api/internal/config"
	"github.com/bankcore/banking-api/internal/observability"
)

const gatewayDeniedMessage = "Access denied. Requests must go through API Gateway."

var (
	gatewayExactAllow  = map[string]struct{}{"/favicon.ico": {}}
	gatewayPrefixAllow = []string{
		"/health/",
		"/actuator/",
		"/swagger-ui",
		"/v3/api-docs",
		"/swagger-resources",
		"/webjars/",
		"/static/",
	}
)

// GatewayRejection is the body written for requests that bypassed the gateway.
type GatewayRejection struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// GatewayTrustGate rejects requests that did not come through the reverse proxy.
type GatewayTrustGate struct {
	secret       []byte
	proxyHeader  string
	secretHeader string
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewGatewayTrustGate builds the gate from configuration.
func NewGatewayTrustGate(cfg config.GatewayConfig, logger *zap.Logger, metrics *observability.Metrics) *GatewayTrustGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	proxyHeader := cfg.ProxyHeader
	if proxyHeader == "" {
		proxyHeader = "X-Kong-Proxy"
	}
	secretHeader := cfg.SecretHeader
	if secretHeader == "" {
		secretHeader = "X-Kong-Auth"
	}
	return &GatewayTrustGate{
		secret:       []byte(cfg.SharedSecret),
		proxyHeader:  proxyHeader,
		secretHeader: secretHeader,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Handle is the fiber handler. It must be registered ahead of every other
// request-processing middleware.
func (g *GatewayTrustGate) Handle(c *fiber.Ctx) error {
	// c.Path aliases the request buffer; the copy outlives the request in metrics.
	path := utils.CopyString(c.Path())
	if gatewayAllowed(path) {
		return c.Next()
	}

	proxy := c.Get(g.proxyHeader)
	secret := c.Get(g.secretHeader)
	if g.trusted(proxy, secret) {
		return c.Next()
	}

	secretState := "null"
	if secret != "" {
		secretState = "***"
	}
	g.logger.Warn("direct access blocked",
		zap.String("path", path),
		zap.String("ip", c.IP()),
		zap.String(g.proxyHeader, proxy),
		zap.String(g.secretHeader, secretState))
	g.metrics.RecordGatewayRejection(path)

	return c.Status(fiber.StatusForbidden).JSON(GatewayRejection{
		Error:     "Forbidden",
		Message:   gatewayDeniedMessage,
		Timestamp: g.now().UTC().Format(time.RFC3339Nano),
		Path:      path,
	})
}

func (g *GatewayTrustGate) trusted(proxy, secret string) bool {
	if !strings.EqualFold(strings.TrimSpace(proxy), "true") {
		return false
	}
	if len(g.secret) == 0 || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), g.secret) == 1
}

func gatewayAllowed(path string) bool {
	if _, ok := gatewayExactAllow[path]; ok {
		return true
	}
	for _, prefix := range gatewayPrefixAllow {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

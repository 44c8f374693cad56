package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SMSSender entrega un SMS de texto plano.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

// HTTPGateway envia SMS a un gateway HTTP/JSON con un limite de salida por segundo.
type HTTPGateway struct {
	url      string
	apiKey   string
	senderID string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewHTTPGateway(url, apiKey, senderID string, ratePerSec float64) (*HTTPGateway, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("sms gateway url is required")
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &HTTPGateway{
		url:      url,
		apiKey:   apiKey,
		senderID: senderID,
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

type gatewayRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

func (g *HTTPGateway) SendSMS(ctx context.Context, to, text string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate wait: %w", err)
	}

	payload, err := json.Marshal(gatewayRequest{To: to, From: g.senderID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// LogSMSSender solo registra el envio; se usa cuando no hay gateway configurado.
type LogSMSSender struct {
	logger *zap.Logger
}

func NewLogSMSSender(logger *zap.Logger) *LogSMSSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, text string) error {
	s.logger.Info("sms gateway not configured, message logged", zap.String("to", maskDestination(to)))
	s.logger.Debug("sms body", zap.String("to", to), zap.String("text", text))
	return nil
}

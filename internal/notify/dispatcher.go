package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"monay-auth/internal/domain"
	"monay-auth/internal/email"
)

var (
	ErrNoTransport = errors.New("no transport for channel")
	ErrNoRecipient = errors.New("recipient is required")
)

// Options ajusta timeouts y reintentos del Dispatcher.
type Options struct {
	Timeout         time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
	Observe         ObserveFunc
}

// Dispatcher ejecuta cada envio en su propia goroutine, con timeout por intento,
// reintentos con backoff exponencial y dead-letter (sin el codigo) al agotar los intentos. Un mensaje sin
// destinatario se descarta sin dead-letter.
// Los errores nunca llegan al caller de Dispatch.
type Dispatcher struct {
	logger *zap.Logger
	sms    SMSSender
	mail   email.Sender
	dead   DeadLetterSink
	opts   Options

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger, sms SMSSender, mail email.Sender, dead DeadLetterSink, opts Options) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if dead == nil {
		dead = NewLogDeadLetter(logger)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger: logger,
		sms:    sms,
		mail:   mail,
		dead:   dead,
		opts:   opts,
		base:   base,
		cancel: cancel,
	}
}

// Dispatch programa el envio y retorna de inmediato.
func (d *Dispatcher) Dispatch(msg Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatch after close", zap.String("message_id", msg.ID), zap.String("channel", string(msg.Channel)))
		d.observe(msg.Channel, OutcomeDropped)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.run(d.base, msg)
	}()
}

// Close deja de aceptar mensajes y espera a los envios en curso. Si ctx vence antes,
// cancela los reintentos pendientes.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context, msg Message) {
	attempts := 0
	op := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
		err := d.deliver(attemptCtx, msg)
		if err != nil && (errors.Is(err, ErrNoRecipient) || errors.Is(err, ErrNoTransport)) {
			return backoff.Permanent(err)
		}
		if err != nil {
			d.logger.Warn("notification attempt failed",
				zap.Error(err),
				zap.String("message_id", msg.ID),
				zap.String("channel", string(msg.Channel)),
				zap.Int("attempt", attempts),
			)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.opts.InitialInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(d.opts.MaxAttempts-1)), ctx)

	err := backoff.Retry(op, retry)
	if err == nil {
		d.observe(msg.Channel, OutcomeDelivered)
		return
	}
	if errors.Is(err, ErrNoRecipient) {
		d.logger.Warn("notification dropped", zap.String("message_id", msg.ID), zap.String("channel", string(msg.Channel)), zap.Error(err))
		d.observe(msg.Channel, OutcomeDropped)
		return
	}

	letter := DeadLetter{
		Message:  msg.Redacted(),
		Error:    err.Error(),
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	}
	// El sink usa su propio contexto: ctx puede estar cancelado por el cierre.
	sinkCtx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()
	if sinkErr := d.dead.Publish(sinkCtx, letter); sinkErr != nil {
		d.logger.Error("dead letter publish failed",
			zap.Error(sinkErr),
			zap.String("message_id", msg.ID),
			zap.String("channel", string(msg.Channel)),
		)
	}
	d.observe(msg.Channel, OutcomeDeadLetter)
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return ErrNoRecipient
	}
	switch msg.Channel {
	case domain.ChannelMobile:
		if d.sms == nil {
			return ErrNoTransport
		}
		return d.sms.SendSMS(ctx, to, msg.Text)
	case domain.ChannelEmail:
		if d.mail == nil {
			return ErrNoTransport
		}
		rendered, err := email.Render(msg.Template, to, email.Data{Name: msg.Name, Code: msg.Code, ResetURL: msg.ResetURL})
		if err != nil {
			return backoff.Permanent(err)
		}
		return d.mail.Send(ctx, rendered)
	default:
		return fmt.Errorf("%w: %q", ErrNoTransport, msg.Channel)
	}
}

func (d *Dispatcher) observe(ch domain.Channel, outcome Outcome) {
	if d.opts.Observe != nil {
		d.opts.Observe(ch, outcome)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DeadLetterSink recibe los mensajes que agotaron sus reintentos.
type DeadLetterSink interface {
	Publish(ctx context.Context, letter DeadLetter) error
}

// LogDeadLetter registra el mensaje a nivel Error sin el codigo en claro.
type LogDeadLetter struct {
	logger *zap.Logger
}

func NewLogDeadLetter(logger *zap.Logger) *LogDeadLetter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDeadLetter{logger: logger}
}

func (s *LogDeadLetter) Publish(_ context.Context, letter DeadLetter) error {
	s.logger.Error("notification dead-lettered",
		zap.String("message_id", letter.Message.ID),
		zap.String("channel", string(letter.Message.Channel)),
		zap.String("to", maskDestination(letter.Message.To)),
		zap.Int("attempts", letter.Attempts),
		zap.String("error", letter.Error),
	)
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDeadLetter publica los dead-letters en un topic para reprocesarlos despues.
type KafkaDeadLetter struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaDeadLetter(brokers []string, topic string, logger *zap.Logger) (*KafkaDeadLetter, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("dead letter topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaDeadLetter{writer: writer, logger: logger}, nil
}

func (s *KafkaDeadLetter) Publish(ctx context.Context, letter DeadLetter) error {
	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(letter.Message.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "channel", Value: []byte(letter.Message.Channel)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	s.logger.Info("notification dead-lettered to kafka",
		zap.String("message_id", letter.Message.ID),
		zap.Int("attempts", letter.Attempts),
	)
	return nil
}

func (s *KafkaDeadLetter) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Reissuer vuelve a emitir la notificacion de un dead-letter. El dead-letter no trae el
// codigo, asi que el Reissuer genera uno nuevo o descarta el mensaje.
type Reissuer interface {
	Reissue(ctx context.Context, msg Message) error
}

// Replayer consume el topic de dead-letter y pasa cada mensaje al Reissuer.
// El offset se confirma tambien cuando el reintento falla: un envio fallido vuelve al topic
// como un dead-letter nuevo.
type Replayer struct {
	reader   messageReader
	reissuer Reissuer
	logger   *zap.Logger
}

func NewKafkaReplayer(brokers []string, topic, groupID string, reissuer Reissuer, logger *zap.Logger) *Replayer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		MaxWait:        5 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
	})
	return newReplayer(reader, reissuer, logger)
}

func newReplayer(reader messageReader, reissuer Reissuer, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{reader: reader, reissuer: reissuer, logger: logger}
}

// Run procesa mensajes hasta que ctx se cancela o max > 0 mensajes fueron procesados.
func (r *Replayer) Run(ctx context.Context, max int) (int, error) {
	processed := 0
	for max <= 0 || processed < max {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return processed, nil
			}
			return processed, fmt.Errorf("fetch dead letter: %w", err)
		}

		var letter DeadLetter
		if err := json.Unmarshal(msg.Value, &letter); err != nil {
			r.logger.Error("invalid dead letter payload", zap.Error(err), zap.Int64("offset", msg.Offset))
		} else if err := r.reissuer.Reissue(ctx, letter.Message); err != nil {
			r.logger.Warn("replay skipped", zap.Error(err),
				zap.String("message_id", letter.Message.ID),
				zap.String("kind", string(letter.Message.Kind)),
			)
		} else {
			r.logger.Info("replay reissued", zap.String("message_id", letter.Message.ID))
		}

		if err := r.reader.CommitMessages(ctx, msg); err != nil {
			return processed, fmt.Errorf("commit dead letter: %w", err)
		}
		processed++
	}
	return processed, nil
}

func (r *Replayer) Close() error {
	return r.reader.Close()
}

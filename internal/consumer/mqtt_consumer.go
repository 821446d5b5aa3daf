package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqttcommon "wisefido-vitalsync/common/mqtt"
	"wisefido-vitalsync/internal/models"

	"go.uber.org/zap"
)

const nudgeQueueSize = 64

// Subscriber 消费者需要的 MQTT 操作，由 *mqttcommon.Client 实现
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Nudger 收到患者遥测后的处理
type Nudger interface {
	Nudge(ctx context.Context, patientID string, withECG bool) error
}

type nudge struct {
	patientID string
	withECG   bool
}

// MQTTConsumer 监听设备遥测主题，患者有新数据时通知同步客户端：
// 在定时刷新之间提前刷新，并发现新患者
type MQTTConsumer struct {
	subscriber Subscriber
	nudger     Nudger
	topics     []string
	qos        byte
	queue      chan nudge
	logger     *zap.Logger
}

// NewMQTTConsumer 创建消费者
func NewMQTTConsumer(subscriber Subscriber, nudger Nudger, topics []string, qos byte, logger *zap.Logger) *MQTTConsumer {
	return &MQTTConsumer{
		subscriber: subscriber,
		nudger:     nudger,
		topics:     topics,
		qos:        qos,
		queue:      make(chan nudge, nudgeQueueSize),
		logger:     logger,
	}
}

// Start 订阅并分发通知，直到 ctx 结束
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if len(c.topics) == 0 {
		return fmt.Errorf("no MQTT topics configured")
	}
	for _, topic := range c.topics {
		if err := c.subscriber.Subscribe(topic, c.qos, c.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	c.logger.Info("MQTT consumer started", zap.Strings("topics", c.topics))

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-c.queue:
			if err := c.nudger.Nudge(ctx, n.patientID, n.withECG); err != nil {
				c.logger.Warn("Nudge refresh failed",
					zap.String("patient_id", n.patientID),
					zap.Error(err),
				)
			}
		}
	}
}

// Stop 取消所有订阅
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topics...); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
		return err
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 运行在 MQTT 客户端的 goroutine 中，只负责入队
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	var msg models.TelemetryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Debug("Ignoring non-JSON telemetry message",
			zap.String("topic", topic),
			zap.Int("payload_size", len(payload)),
		)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	patientID := msg.ID()
	if patientID == "" {
		c.logger.Debug("Telemetry message without patient id", zap.String("topic", topic))
		return nil
	}

	n := nudge{patientID: patientID, withECG: isECGTopic(topic)}
	select {
	case c.queue <- n:
	default:
		// 队列已满：已有待处理的刷新
		c.logger.Debug("Nudge queue full, dropping", zap.String("patient_id", patientID))
	}
	return nil
}

func isECGTopic(topic string) bool {
	return strings.Contains(strings.ToLower(topic), "ecg")
}

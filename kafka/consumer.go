package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"floodwatch/models"
)

var readingsIngested = promauto.NewCounter(prometheus.CounterOpts{
	Name: "floodwatch_readings_ingested_total",
	Help: "Sensor readings consumed from Kafka and forwarded for storage",
})

// Consumer handles Kafka message consumption
type Consumer struct {
	group          sarama.ConsumerGroup
	topics         []string
	readingChannel chan *models.SensorReading
	errorChannel   chan error
	cancel         context.CancelFunc
	done           chan struct{}
}

// NewConsumer creates a consumer group subscribed to the reading topic
func NewConsumer(brokers []string, groupID, topic string) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %v", err)
	}

	return &Consumer{
		group:          group,
		topics:         []string{topic},
		readingChannel: make(chan *models.SensorReading, 100),
		errorChannel:   make(chan error, 10),
		done:           make(chan struct{}),
	}, nil
}

// ReadingChannel returns the channel for receiving validated readings
func (c *Consumer) ReadingChannel() <-chan *models.SensorReading {
	return c.readingChannel
}

// ErrorChannel returns the channel for receiving errors
func (c *Consumer) ErrorChannel() <-chan error {
	return c.errorChannel
}

// Start begins consuming messages. The session loop rejoins the group
// after rebalances until Stop is called.
func (c *Consumer) Start() {
	log.Printf("Starting Kafka consumer, topics: %v", c.topics)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		for err := range c.group.Errors() {
			select {
			case c.errorChannel <- fmt.Errorf("consumer error: %v", err):
			default:
				log.Printf("Error channel full, dropping error: %v", err)
			}
		}
	}()

	go func() {
		defer close(c.done)
		handler := &readingHandler{consumer: c}
		for {
			if err := c.group.Consume(ctx, c.topics, handler); err != nil {
				select {
				case c.errorChannel <- fmt.Errorf("consume session failed: %v", err):
				default:
					log.Printf("Error channel full, dropping error: %v", err)
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	log.Println("Stopping Kafka consumer...")

	if c.cancel != nil {
		c.cancel()
		<-c.done
	}

	return c.group.Close()
}

// readingHandler implements sarama.ConsumerGroupHandler
type readingHandler struct {
	consumer *Consumer
}

func (h *readingHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *readingHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *readingHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.consumer.processMessage(msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

// processMessage parses and validates an incoming Kafka message
func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) {
	var reading models.SensorReading
	if err := json.Unmarshal(msg.Value, &reading); err != nil {
		select {
		case c.errorChannel <- fmt.Errorf("failed to unmarshal message at %s[%d]@%d: %v",
			msg.Topic, msg.Partition, msg.Offset, err):
		default:
			log.Printf("Error channel full, dropping unmarshal error: %v", err)
		}
		return
	}

	if err := validateReading(&reading); err != nil {
		select {
		case c.errorChannel <- fmt.Errorf("invalid reading: %v", err):
		default:
			log.Printf("Error channel full, dropping validation error: %v", err)
		}
		return
	}

	select {
	case c.readingChannel <- &reading:
		readingsIngested.Inc()
	default:
		log.Printf("Reading channel full, dropping reading from device %s", reading.DeviceID)
	}
}

// validateReading validates a sensor reading
func validateReading(reading *models.SensorReading) error {
	if reading.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	// Sanity bounds on the sensor value, in cm
	if reading.WaterLevel < -100 || reading.WaterLevel > 10000 {
		return fmt.Errorf("water level out of range: %f", reading.WaterLevel)
	}

	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"floodwatch/models"
)

// Simulator publishes synthetic water level readings for one device
type Simulator struct {
	producer  sarama.SyncProducer
	topic     string
	deviceID  string
	frequency time.Duration
	level     float64
	surgeRate float64
}

// NewSimulator creates a simulator with a sarama sync producer
func NewSimulator(brokers []string, topic, deviceID string, frequency time.Duration, initialLevel float64) (*Simulator, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = fmt.Sprintf("sensor-simulator-%s", deviceID)
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %v", err)
	}

	return &Simulator{
		producer:  producer,
		topic:     topic,
		deviceID:  deviceID,
		frequency: frequency,
		level:     initialLevel,
		surgeRate: 0.05, // 5% chance of entering a surge per tick
	}, nil
}

// nextReading advances the random walk and occasionally injects a surge
// so the risk predictor and the alert engine have something to chew on
func (s *Simulator) nextReading() *models.SensorReading {
	s.level += (rand.Float64() - 0.5) * 2.0 // ±1.0 cm drift

	if rand.Float64() < s.surgeRate {
		s.level += 5.0 + rand.Float64()*15.0
		log.Printf("Simulating surge, level now %.1fcm", s.level)
	}

	s.level = clamp(s.level, 0.0, 250.0)

	return &models.SensorReading{
		DeviceID:   s.deviceID,
		WaterLevel: float64(int(s.level*10)) / 10,
		Timestamp:  time.Now(),
	}
}

// Run publishes readings until the stop channel fires
func (s *Simulator) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.frequency)
	defer ticker.Stop()

	log.Printf("Publishing readings for device %s to topic %s every %s",
		s.deviceID, s.topic, s.frequency)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			reading := s.nextReading()
			payload, err := json.Marshal(reading)
			if err != nil {
				log.Printf("Failed to marshal reading: %v", err)
				continue
			}

			msg := &sarama.ProducerMessage{
				Topic: s.topic,
				Key:   sarama.StringEncoder(reading.DeviceID),
				Value: sarama.ByteEncoder(payload),
			}

			partition, offset, err := s.producer.SendMessage(msg)
			if err != nil {
				log.Printf("Failed to publish reading: %v", err)
				continue
			}

			log.Printf("Published level=%.1fcm partition=%d offset=%d",
				reading.WaterLevel, partition, offset)
		}
	}
}

// Close shuts the producer down
func (s *Simulator) Close() error {
	return s.producer.Close()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	brokers := []string{getEnvOrDefault("KAFKA_BROKERS", "localhost:9092")}
	topic := getEnvOrDefault("KAFKA_TOPIC", "water.levels")
	deviceID := getEnvOrDefault("DEVICE_ID", "device_001")

	frequency := 5 * time.Second
	if v := os.Getenv("PUBLISH_FREQUENCY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			frequency = d
		}
	}

	initialLevel := 80.0
	if v := os.Getenv("INITIAL_LEVEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			initialLevel = f
		}
	}

	sim, err := NewSimulator(brokers, topic, deviceID, frequency, initialLevel)
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}
	defer sim.Close()

	stop := make(chan struct{})
	go sim.Run(stop)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stopping simulator...")
	close(stop)
}

package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/taxi-dispatch/internal/models"
)

// LocationUpdate is the wire form of a driver-reported position.
type LocationUpdate struct {
	TaxiID       string            `json:"taxi_id"`
	LicensePlate string            `json:"license_plate"`
	Location     models.Coordinate `json:"location"`
	Status       models.TaxiStatus `json:"status"`
	ReportedAt   time.Time         `json:"reported_at"`
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) PublishLocation(t models.Taxi) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	u := LocationUpdate{
		TaxiID:       t.ID,
		LicensePlate: t.LicensePlate,
		Location:     t.Location,
		Status:       t.Status(),
		ReportedAt:   time.Now(),
	}
	b, _ := json.Marshal(u)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(t.ID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

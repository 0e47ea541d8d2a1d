package kafka

import (
	"testing"
	"time"

	"floodwatch/models"
)

func TestValidateReading(t *testing.T) {
	tests := []struct {
		name    string
		reading models.SensorReading
		wantErr bool
	}{
		{"valid", models.SensorReading{DeviceID: "device_001", WaterLevel: 120.5, Timestamp: time.Now()}, false},
		{"missing device", models.SensorReading{WaterLevel: 120.5}, true},
		{"level too low", models.SensorReading{DeviceID: "device_001", WaterLevel: -150}, true},
		{"level too high", models.SensorReading{DeviceID: "device_001", WaterLevel: 10001}, true},
		{"lower bound", models.SensorReading{DeviceID: "device_001", WaterLevel: -100}, false},
		{"upper bound", models.SensorReading{DeviceID: "device_001", WaterLevel: 10000}, false},
		{"zero level", models.SensorReading{DeviceID: "device_001", WaterLevel: 0}, false},
	}

	for _, tt := range tests {
		err := validateReading(&tt.reading)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: validateReading() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

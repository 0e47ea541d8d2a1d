package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"floodwatch/models"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{db}, nil
}

// InsertReading inserts a new water level reading
func (db *DB) InsertReading(reading *models.SensorReading) (*models.Reading, error) {
	query := `
		INSERT INTO water_levels (device_id, water_level, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, device_id, water_level, created_at
	`

	ts := reading.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var r models.Reading
	err := db.QueryRow(query, reading.DeviceID, reading.WaterLevel, ts).Scan(
		&r.ID, &r.DeviceID, &r.WaterLevel, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reading: %v", err)
	}

	return &r, nil
}

// GetReadings retrieves readings for a device since a point in time. The
// zero time means no lower bound, an empty device means all devices, and
// limit <= 0 means no row limit. Results are ordered by created_at in the
// requested direction.
func (db *DB) GetReadings(deviceID string, since time.Time, ascending bool, limit int) ([]models.Reading, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, device_id, water_level, created_at
		FROM water_levels
		WHERE ($1 = '' OR device_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at %s
		LIMIT CASE WHEN $3 > 0 THEN $3 END
	`, direction)

	var sinceArg interface{}
	if !since.IsZero() {
		sinceArg = since
	}

	rows, err := db.Query(query, deviceID, sinceArg, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %v", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.WaterLevel, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %v", err)
		}
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// GetLatestPerDevice retrieves the most recent reading for every device
func (db *DB) GetLatestPerDevice() ([]models.Reading, error) {
	query := `
		SELECT DISTINCT ON (device_id) id, device_id, water_level, created_at
		FROM water_levels
		ORDER BY device_id, created_at DESC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %v", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.WaterLevel, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %v", err)
		}
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// GetDevices retrieves the distinct device IDs seen in the reading stream
func (db *DB) GetDevices() ([]string, error) {
	query := `
		SELECT DISTINCT device_id
		FROM water_levels
		ORDER BY device_id
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %v", err)
	}
	defer rows.Close()

	var devices []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan device id: %v", err)
		}
		devices = append(devices, id)
	}

	return devices, rows.Err()
}

// GetDeviceLocations retrieves configured node locations. Devices without
// a row here get placeholder coordinates in the node view.
func (db *DB) GetDeviceLocations() ([]models.DeviceLocation, error) {
	query := `
		SELECT device_id, latitude, longitude, COALESCE(name, '')
		FROM device_locations
		ORDER BY device_id
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query device locations: %v", err)
	}
	defer rows.Close()

	var locations []models.DeviceLocation
	for rows.Next() {
		var loc models.DeviceLocation
		if err := rows.Scan(&loc.DeviceID, &loc.Latitude, &loc.Longitude, &loc.Name); err != nil {
			return nil, fmt.Errorf("failed to scan device location: %v", err)
		}
		locations = append(locations, loc)
	}

	return locations, rows.Err()
}

// GetDeviceState retrieves the pump actuator state for a device controller
func (db *DB) GetDeviceState(id int) (*models.DeviceState, error) {
	query := `
		SELECT id, pump, updated_at
		FROM device_control
		WHERE id = $1
	`

	var state models.DeviceState
	err := db.QueryRow(query, id).Scan(&state.ID, &state.Pump, &state.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get device state: %v", err)
	}

	return &state, nil
}

// SetPump updates the pump actuator flag. The node picks the change up
// through its own state subscription.
func (db *DB) SetPump(id int, on bool) error {
	query := `
		UPDATE device_control
		SET pump = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := db.Exec(query, id, on)
	if err != nil {
		return fmt.Errorf("failed to update pump state: %v", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("device controller %d not found", id)
	}

	return nil
}

package models

import "time"

// Vehicle is a cached copy of a remote vehicle.
type Vehicle struct {
	ServerID     string
	ID           int64
	Year         int
	Make         string
	Model        string
	LicensePlate string
	UpdatedAt    time.Time
}

// SyncMeta holds bookkeeping for one (server, vehicle) pair.
type SyncMeta struct {
	ServerID     string
	VehicleID    int64
	LastFullSync time.Time
}

// Credentials locate and authenticate one remote server.
type Credentials struct {
	ServerID string
	URL      string
	APIKey   string
}

// Package models defines the core data structures exchanged with the
// equipment analytics API and kept by the client.
package models

import "time"

// MaxDatasets is the number of datasets the server retains per user.
// Older datasets are evicted by the server on upload.
const MaxDatasets = 5

// Credential is the username/password pair of the active user.
type Credential struct {
	// Username is the login name.
	Username string `json:"username"`
	// Password is kept in clear text; the API expects HTTP Basic.
	Password string `json:"password"`
}

// Dataset is one uploaded CSV file as reported by the server.
type Dataset struct {
	// ID is the server-assigned identifier.
	ID int64 `json:"id"`
	// Name is the original file name.
	Name string `json:"name"`
	// EquipmentCount is the number of rows ingested.
	EquipmentCount int `json:"equipment_count"`
	// UploadedAt is the server timestamp of the upload.
	UploadedAt time.Time `json:"uploaded_at"`
}

// Equipment is one row of equipment parameters belonging to a dataset.
type Equipment struct {
	ID          int64   `json:"id,omitempty"`
	Dataset     int64   `json:"dataset,omitempty"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

// Summary holds the server-computed aggregates of a dataset.
type Summary struct {
	TotalCount       int              `json:"total_count"`
	AvgFlowrate      float64          `json:"avg_flowrate"`
	AvgPressure      float64          `json:"avg_pressure"`
	AvgTemperature   float64          `json:"avg_temperature"`
	TypeDistribution TypeDistribution `json:"type_distribution"`
}

// RegisterRequest is the payload of the account creation endpoint.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UploadResponse is returned by the upload endpoint on success.
type UploadResponse struct {
	Message   string `json:"message"`
	DatasetID int64  `json:"dataset_id"`
}

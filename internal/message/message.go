// Package message defines the request and response documents exchanged with
// the stockline transports.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Request is an inbound transcript to resolve.
type Request struct {
	// ID correlates log lines for one request. Transports fill it from the
	// X-Request-ID header or generate a UUID.
	ID string `json:"-"`

	// Transcript is the raw speech-to-text output. Required.
	Transcript string `json:"transcript"`

	// Latitude and Longitude are optional decimal degrees. They are only
	// used when both are present and valid.
	Latitude  Coordinate `json:"latitude,omitempty"`
	Longitude Coordinate `json:"longitude,omitempty"`
}

// Coordinate is a decimal degree sent as a JSON string. Numbers are
// accepted too and kept in their textual form.
type Coordinate string

// UnmarshalJSON accepts a string, a number or null.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Coordinate(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("coordinate must be a string or number: %w", err)
		}
		*c = Coordinate(n.String())
		return nil
	}
}

// Location echoes the caller's coordinates and the donation center they
// resolved to. Name is null when no center was resolved.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      *string `json:"name"`
}

// Response is returned for every outcome of a transcript request, success or
// failure, so callers can handle all of them the same way.
type Response struct {
	Success bool `json:"success"`

	// Analysis is the matched item list, or the no-match sentinel. It is empty
	// when matching was never reached or the classifier failed.
	Analysis string `json:"analysis"`

	// Location is null when the request carried no usable coordinates.
	Location *Location `json:"location"`

	Item      string `json:"item,omitempty"`
	Question  string `json:"question,omitempty"`
	StockInfo string `json:"stockInfo,omitempty"`

	// Answer is always present and never empty.
	Answer string `json:"answer"`

	// RawData is the terminal chunk exactly as the backend sent it.
	RawData json.RawMessage `json:"rawData,omitempty"`

	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ItemRequest asks for the stock of one item by name.
type ItemRequest struct {
	ID   string `json:"-"`
	Item string `json:"item"`
}

// ItemResponse is the reply to an ItemRequest.
type ItemResponse struct {
	Success   bool            `json:"success"`
	Item      string          `json:"item,omitempty"`
	Question  string          `json:"question,omitempty"`
	StockInfo string          `json:"stockInfo,omitempty"`
	Answer    string          `json:"answer,omitempty"`
	RawData   json.RawMessage `json:"rawData,omitempty"`
	Error     string          `json:"error,omitempty"`
	Details   string          `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

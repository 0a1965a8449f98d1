// Package modelcache provides a persistent store for downloaded in-browser AI model artifacts.
package modelcache

import (
	"fmt"
	"time"
)

// DefaultMaxAge is the default age after which an unused model is evicted.
const DefaultMaxAge = 30 * 24 * time.Hour

// DefaultVersion is used when a record is saved without a version.
const DefaultVersion = "1"

// Record is one cached model artifact.
type Record struct {
	ModelName string    `json:"model_name"`
	ModelType string    `json:"model_type"`
	Version   string    `json:"version"`
	Payload   []byte    `json:"-"`
	Size      int64     `json:"size"`
	CachedAt  time.Time `json:"cached_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Key returns the composite primary key modelType_modelName_version.
func (r *Record) Key() string {
	version := r.Version
	if version == "" {
		version = DefaultVersion
	}
	return fmt.Sprintf("%s_%s_%s", r.ModelType, r.ModelName, version)
}

// Age reports how long the record has gone unused at the given instant.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.LastUsed)
}

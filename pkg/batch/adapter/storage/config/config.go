// Package config holds the typed form of an epiflow.adapter.storage.<name> block.
package config

import (
	"fmt"

	"github.com/tigerroll/epiflow/pkg/batch/support/util/configbinder"
)

// StorageConfig configures one storage connection.
type StorageConfig struct {
	// Type selects the provider: "local" or "gcs".
	Type string `yaml:"type"`
	// BucketName is the GCS bucket.
	BucketName string `yaml:"bucket_name"`
	// CredentialsFile is an optional service account key; application default credentials are used otherwise.
	CredentialsFile string `yaml:"credentials_file"`
	// BaseDir is the root directory for the local provider.
	BaseDir string `yaml:"base_dir"`
	// Prefix is prepended to every object name.
	Prefix string `yaml:"prefix"`
}

// Decode binds raw YAML properties into a StorageConfig.
func Decode(properties map[string]interface{}) (StorageConfig, error) {
	var cfg StorageConfig
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return cfg, fmt.Errorf("storage config: %w", err)
	}
	return cfg, nil
}

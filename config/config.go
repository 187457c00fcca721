// Package config loads yaml configuration through viper and pushes
// hot-reloaded values to registered listeners.
package config

// Config interface defines the basic configuration contract
type Config interface {
	GetName() string
	Validate() error
}

// ConfigChangeListener receives reloaded configurations.
// Implementations should ignore configNames they do not own.
type ConfigChangeListener interface {
	OnConfigChanged(configName string, newConfig, oldConfig Config) error
}

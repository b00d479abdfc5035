// Package config loads server configuration with viper.
package config

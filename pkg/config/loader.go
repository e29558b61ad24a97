package config

import (
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	loadedConfig *CatalogConfig

	configMutex sync.RWMutex
)

func LoadConfig(filePath string) error {
	log.Printf("Loading catalog configuration from %s...", filePath)

	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}

	cfg, err := ParseCatalog(yamlFile)
	if err != nil {
		return fmt.Errorf("'%s': %w", filePath, err)
	}

	configMutex.Lock()
	loadedConfig = cfg
	configMutex.Unlock()

	log.Printf("Catalog configuration loaded and validated successfully. %d groups, %d survey rewards.", len(cfg.Groups), len(cfg.Rewards.Surveys))
	return nil
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (*CatalogConfig, error) {
	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func GetConfig() *CatalogConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if loadedConfig == nil {
		log.Println("Warning: GetConfig() called before configuration was loaded.")
	}
	return loadedConfig
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	APIBaseURL          string
	APIKey              string
	WebPort             string
	DBFile              string
	MiddlewareTimeout   time.Duration
	MiddlewareRetries   int
	MiddlewareBackoff   time.Duration
	ConsistencyInterval time.Duration
	OdooURL             string
	OdooDB              string
	OdooUsername        string
	OdooPassword        string
	CatalogFile         string
	LogEnv              string
}

// secretConfigKeys are masked when configuration is returned over the API
var secretConfigKeys = map[string]bool{
	ConfigKeyAPIKey:       true,
	ConfigKeyOdooPassword: true,
}

// LoadConfig loads configuration from database
func LoadConfig(store *Store) (*Config, error) {
	configValues, err := store.GetAllConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from database: %w", err)
	}

	webPort := configValues[ConfigKeyWebPort]
	if webPort == "" {
		webPort = DefaultWebPort
	}
	logEnv := configValues[ConfigKeyLogEnv]
	if logEnv == "" {
		logEnv = DefaultLogEnv
	}

	return &Config{
		APIBaseURL:          configValues[ConfigKeyAPIBaseURL],
		APIKey:              configValues[ConfigKeyAPIKey],
		WebPort:             webPort,
		DBFile:              getDBFilePath(),
		MiddlewareTimeout:   time.Duration(parseIntValue(configValues, ConfigKeyMiddlewareTimeout, DefaultMiddlewareTimeout)) * time.Second,
		MiddlewareRetries:   parseIntValue(configValues, ConfigKeyMiddlewareRetries, DefaultMiddlewareRetries),
		MiddlewareBackoff:   time.Duration(parseIntValue(configValues, ConfigKeyMiddlewareBackoffMS, DefaultMiddlewareBackoffMS)) * time.Millisecond,
		ConsistencyInterval: time.Duration(parseIntValue(configValues, ConfigKeyConsistencyInterval, DefaultConsistencyInterval)) * time.Second,
		OdooURL:             configValues[ConfigKeyOdooURL],
		OdooDB:              configValues[ConfigKeyOdooDB],
		OdooUsername:        configValues[ConfigKeyOdooUsername],
		OdooPassword:        configValues[ConfigKeyOdooPassword],
		CatalogFile:         configValues[ConfigKeyCatalogFile],
		LogEnv:              logEnv,
	}, nil
}

// parseIntValue parses a non-negative integer setting, falling back to def
func parseIntValue(values map[string]string, key string, def int) int {
	raw, exists := values[key]
	if !exists {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

// getDBFilePath returns the database file path, checking environment variable first
func getDBFilePath() string {
	if dbPath := os.Getenv("LABELBRIDGE_DB_PATH"); dbPath != "" {
		return filepath.Join(dbPath, DefaultDBFileName)
	}
	return DefaultDBFileName
}

// maskConfig hides secret values before they leave the process
func maskConfig(values map[string]string) map[string]string {
	masked := make(map[string]string, len(values))
	for key, value := range values {
		if secretConfigKeys[key] && value != "" {
			masked[key] = "********"
			continue
		}
		masked[key] = value
	}
	return masked
}

// SeedFile is the optional YAML bootstrap file passed with -config
type SeedFile struct {
	Settings map[string]string `yaml:"settings"`
	Printers []SeedPrinter     `yaml:"printers"`
}

// SeedPrinter describes a printer created on first start
type SeedPrinter struct {
	Name      string `yaml:"name"`
	IPAddress string `yaml:"ip_address"`
	Port      string `yaml:"port"`
	IsDefault bool   `yaml:"is_default"`
	WidthMM   int    `yaml:"width_mm"`
	HeightMM  int    `yaml:"height_mm"`
}

// LoadSeedFile reads a YAML seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed writes seed settings and, when no printer exists yet, the seed printers.
// Printers are created directly in the store; nothing is forwarded at bootstrap.
func ApplySeed(store *Store, seed *SeedFile, logger *zap.Logger) error {
	for key, value := range seed.Settings {
		if err := store.SetConfigValue(key, value); err != nil {
			return err
		}
	}

	count, err := store.countPrinters()
	if err != nil {
		return err
	}
	if count > 0 || len(seed.Printers) == 0 {
		return nil
	}

	defaults := 0
	for _, sp := range seed.Printers {
		if sp.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("seed file: %w", ErrMultipleDefaults)
	}

	for _, sp := range seed.Printers {
		p := NewPrinter()
		p.Name = sp.Name
		p.IPAddress = sp.IPAddress
		if sp.Port != "" {
			p.Port = sp.Port
		}
		p.IsDefault = sp.IsDefault
		p.WidthMM = sp.WidthMM
		p.HeightMM = sp.HeightMM
		if err := validatePrinter(p); err != nil {
			return fmt.Errorf("seed printer %q: %w", sp.Name, err)
		}
		if _, err := store.insertPrinter(p); err != nil {
			return err
		}
		logger.Info("Seeded printer", zap.String("name", p.Name), zap.Bool("is_default", p.IsDefault))
	}
	return nil
}

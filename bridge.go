package main

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// LabelBridge wires the store, the middleware client, the catalog and the
// services that use them
type LabelBridge struct {
	config     *Config
	store      *Store
	middleware *MiddlewareClient
	printers   *PrinterService
	labels     *LabelService
	prints     *PrintService
	hub        *EventHub
	catalog    Catalog
	logger     *zap.Logger
	mutex      sync.RWMutex
}

// NewLabelBridge creates a LabelBridge around an open store
func NewLabelBridge(store *Store, config *Config, logger *zap.Logger) *LabelBridge {
	hub := NewEventHub(logger.Named("events"))
	middleware := NewMiddlewareClient(config, logger.Named("middleware"))
	catalog := newCatalog(config, logger.Named("catalog"))
	printers := NewPrinterService(store, middleware, hub, logger.Named("printers"))

	return &LabelBridge{
		config:     config,
		store:      store,
		middleware: middleware,
		printers:   printers,
		labels:     NewLabelService(store, catalog, logger.Named("labels")),
		prints:     NewPrintService(store, printers, middleware, hub, logger.Named("print")),
		hub:        hub,
		catalog:    catalog,
		logger:     logger,
	}
}

// newCatalog picks Odoo when configured, then the YAML catalog file, else none
func newCatalog(config *Config, logger *zap.Logger) Catalog {
	switch {
	case config.OdooURL != "":
		catalog, err := NewOdooCatalog(config.OdooURL, config.OdooDB, config.OdooUsername, config.OdooPassword, logger)
		if err != nil {
			logger.Error("Invalid Odoo catalog settings", zap.Error(err))
			return nil
		}
		logger.Info("Using Odoo product catalog", zap.String("url", config.OdooURL), zap.String("db", config.OdooDB))
		return catalog
	case config.CatalogFile != "":
		catalog, err := LoadYAMLCatalog(config.CatalogFile)
		if err != nil {
			logger.Error("Could not load catalog file", zap.String("path", config.CatalogFile), zap.Error(err))
			return nil
		}
		logger.Info("Using catalog file", zap.String("path", config.CatalogFile), zap.Int("products", len(catalog.Products)))
		return catalog
	}
	logger.Info("No product catalog configured")
	return nil
}

// Config returns the active configuration
func (b *LabelBridge) Config() *Config {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.config
}

// UpdateConfig applies a new configuration to the middleware client and catalog
func (b *LabelBridge) UpdateConfig(config *Config) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.config = config
	b.middleware.Reconfigure(config)

	closeCatalog(b.catalog, b.logger)
	b.catalog = newCatalog(config, b.logger.Named("catalog"))
	b.labels.SetCatalog(b.catalog)

	b.hub.Publish(EventConfigUpdated, maskConfig(map[string]string{
		ConfigKeyAPIBaseURL:  config.APIBaseURL,
		ConfigKeyAPIKey:      config.APIKey,
		ConfigKeyOdooURL:     config.OdooURL,
		ConfigKeyCatalogFile: config.CatalogFile,
	}))
	return nil
}

// ReloadConfig reloads the configuration from the database
func (b *LabelBridge) ReloadConfig() error {
	config, err := LoadConfig(b.store)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	return b.UpdateConfig(config)
}

// VerifyDefaultConsistency runs the periodic default printer check
func (b *LabelBridge) VerifyDefaultConsistency() {
	report := b.printers.VerifyDefaultConsistency()
	if report.Status == ConsistencyCorrected || report.Status == ConsistencyError {
		b.logger.Warn("Default printer consistency", zap.String("status", report.Status), zap.String("message", report.Message))
		return
	}
	b.logger.Debug("Default printer consistency", zap.String("status", report.Status))
}

func closeCatalog(catalog Catalog, logger *zap.Logger) {
	if closer, ok := catalog.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Error closing catalog", zap.Error(err))
		}
	}
}

// Close closes the event hub, the catalog and the database
func (b *LabelBridge) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.hub.Close()
	closeCatalog(b.catalog, b.logger)
	return b.store.Close()
}

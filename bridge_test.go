package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewCatalogSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogYAML), 0o644))

	tests := []struct {
		name   string
		config Config
		check  func(t *testing.T, c Catalog)
	}{
		{"None", Config{}, func(t *testing.T, c Catalog) { assert.Nil(t, c) }},
		{"YAML file", Config{CatalogFile: path}, func(t *testing.T, c Catalog) { assert.IsType(t, &YAMLCatalog{}, c) }},
		{"Missing YAML file", Config{CatalogFile: path + ".missing"}, func(t *testing.T, c Catalog) { assert.Nil(t, c) }},
		{"Odoo wins", Config{OdooURL: "http://odoo.local", OdooDB: "odoo", CatalogFile: path}, func(t *testing.T, c Catalog) { assert.IsType(t, &OdooCatalog{}, c) }},
		{"Bad Odoo URL", Config{OdooURL: "odoo.local"}, func(t *testing.T, c Catalog) { assert.Nil(t, c) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config
			tt.check(t, newCatalog(&config, zap.NewNop()))
		})
	}
}

func TestLabelBridgeUpdateConfig(t *testing.T) {
	store := newTestStore(t)
	bridge := NewLabelBridge(store, testConfig(""), zap.NewNop())
	t.Cleanup(bridge.hub.Close)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogYAML), 0o644))

	config := testConfig("http://mw.local")
	config.CatalogFile = path
	require.NoError(t, bridge.UpdateConfig(config))

	assert.Equal(t, "http://mw.local", bridge.Config().APIBaseURL)
	baseURL, _, _, _, _, _ := bridge.middleware.snapshot()
	assert.Equal(t, "http://mw.local", baseURL)
	_, err := bridge.labels.getCatalog()
	assert.NoError(t, err)
}

package main

// Default configuration values
const (
	DefaultWebPort             = "5000"
	DefaultDBFileName          = "labelbridge.db"
	DefaultPrinterPort         = "9100"
	DefaultMiddlewareTimeout   = 10  // seconds
	DefaultMiddlewareRetries   = 2   // extra attempts after the first one
	DefaultMiddlewareBackoffMS = 500 // multiplied by the attempt number
	DefaultConsistencyInterval = 300 // seconds
	DefaultLogEnv              = "production"
	DefaultLineSequence        = 10
	OdooResponseTimeout        = 60 // seconds
)

// Database configuration keys
const (
	ConfigKeyAPIBaseURL          = "api_base_url"
	ConfigKeyAPIKey              = "api_key"
	ConfigKeyWebPort             = "web_port"
	ConfigKeyMiddlewareTimeout   = "middleware_timeout"
	ConfigKeyMiddlewareRetries   = "middleware_retries"
	ConfigKeyMiddlewareBackoffMS = "middleware_backoff_ms"
	ConfigKeyConsistencyInterval = "consistency_interval"
	ConfigKeyOdooURL             = "odoo_url"
	ConfigKeyOdooDB              = "odoo_db"
	ConfigKeyOdooUsername        = "odoo_username"
	ConfigKeyOdooPassword        = "odoo_password"
	ConfigKeyCatalogFile         = "catalog_file"
	ConfigKeyLogEnv              = "log_env"
)

// Middleware endpoint keys
const (
	EndpointRoot           = "root"
	EndpointPrinters       = "printers"
	EndpointDefaultPrinter = "default_printer"
	EndpointPrintLabel     = "imprimir"
)

// Middleware request settings
const (
	MiddlewareUserAgent = "LabelBridge/1.0"
	MaxErrorBodyLength  = 500
)

// Selection sentinels returned alongside remote printers
const (
	SelectionNone         = ""
	SelectionNoConnection = "no_connection"
	SelectionEmpty        = "empty"
	SelectionError        = "error"
)

// Notification types
const (
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationDanger  = "danger"
)

// Default printer consistency states
const (
	ConsistencyNoDefault  = "no_default"
	ConsistencyConsistent = "consistent"
	ConsistencyCorrected  = "corrected"
	ConsistencyError      = "error"
)

// Event types published on the websocket hub
const (
	EventDefaultPrinterChanged = "default_printer_changed"
	EventPrinterSaved          = "printer_saved"
	EventPrinterDeleted        = "printer_deleted"
	EventLabelPrinted          = "label_printed"
	EventConfigUpdated         = "config_updated"
)

// Logger environments
const (
	LogEnvDevelopment = "development"
	LogEnvProduction  = "production"
)

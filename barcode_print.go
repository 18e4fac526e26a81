package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LabelForwarder sends print jobs to the middleware
type LabelForwarder interface {
	PrintLabel(ctx context.Context, job map[string]any) (any, error)
}

// PrintResult is returned to the barcode UI
type PrintResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// PrintJob is one recorded print attempt
type PrintJob struct {
	ID        string    `json:"id"`
	PrinterID *int64    `json:"printer_id"`
	Quantity  *int      `json:"quantity"`
	OK        bool      `json:"ok"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// PrintService forwards barcode label prints to the middleware using the default printer
type PrintService struct {
	store      *Store
	printers   *PrinterService
	middleware LabelForwarder
	events     EventPublisher
	logger     *zap.Logger
}

// NewPrintService creates a print service; events may be nil
func NewPrintService(store *Store, printers *PrinterService, middleware LabelForwarder, events EventPublisher, logger *zap.Logger) *PrintService {
	return &PrintService{
		store:      store,
		printers:   printers,
		middleware: middleware,
		events:     events,
		logger:     logger,
	}
}

// productFieldAliases maps each middleware product field to the accepted input keys
var productFieldAliases = []struct {
	field   string
	aliases []string
}{
	{"nombre", []string{"nombre", "name"}},
	{"codigo_barras", []string{"codigo_barras", "barcode"}},
	{"referencia_interna", []string{"referencia_interna", "default_code", "internal_reference"}},
	{"numero_lote_serial", []string{"numero_lote_serial", "lot_serial_number", "lot", "serial"}},
	{"fecha_vencimiento", []string{"fecha_vencimiento", "expiration_date", "use_date"}},
}

// Print maps a UI payload onto the middleware label shape and sends it.
// Printer settings from the payload are ignored; the default printer decides.
func (s *PrintService) Print(ctx context.Context, payload map[string]any) PrintResult {
	quantity := parseQuantity(payload)

	def, err := s.printers.DefaultPrinter()
	if err != nil {
		s.logger.Warn("Print requested without a default printer", zap.Error(err))
		return s.record(nil, quantity, PrintResult{
			OK:      false,
			Message: "No default printer is configured. Configure one in the printers section.",
		})
	}

	job := BuildLabelJob(payload, def)
	if quantity != nil {
		job["cantidad"] = *quantity
	}

	resp, err := s.middleware.PrintLabel(ctx, job)
	if err != nil {
		s.logger.Error("Label print failed", zap.String("printer", def.Name), zap.Error(err))
		return s.record(&def.ID, quantity, PrintResult{OK: false, Message: err.Error()})
	}
	s.logger.Info("Label sent to middleware", zap.String("printer", def.Name))
	return s.record(&def.ID, quantity, PrintResult{OK: true, Result: resp})
}

// BuildLabelJob builds the middleware payload without the quantity
func BuildLabelJob(payload map[string]any, printer Printer) map[string]any {
	raw, _ := firstTruthy(payload["datos_producto"], payload["product_data"]).(map[string]any)
	if raw == nil {
		raw = map[string]any{}
	}

	product := make(map[string]any, len(productFieldAliases)+1)
	for _, f := range productFieldAliases {
		values := make([]any, len(f.aliases))
		for i, alias := range f.aliases {
			values[i] = raw[alias]
		}
		product[f.field] = firstTruthy(values...)
	}
	if precio := raw["precio"]; precio != nil {
		product["precio"] = precio
	} else {
		product["precio"] = raw["price"]
	}

	return map[string]any{
		"datos_producto": product,
		"config_impresora": map[string]any{
			"ancho_mm": printer.WidthMM,
			"alto_mm":  printer.HeightMM,
		},
	}
}

// truthy follows JSON value truthiness: null, false, 0, "" and empty containers are false
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// firstTruthy returns the first truthy value, or the last value when none is
func firstTruthy(values ...any) any {
	for _, v := range values {
		if truthy(v) {
			return v
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values[len(values)-1]
}

// parseQuantity reads cantidad, falling back to quantity when it is null.
// Values that do not convert to an integer are dropped.
func parseQuantity(payload map[string]any) *int {
	raw, ok := payload["cantidad"]
	if !ok || raw == nil {
		raw = payload["quantity"]
	}

	var n int
	switch t := raw.(type) {
	case nil:
		return nil
	case bool:
		if t {
			n = 1
		}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		n = int(t)
	case int:
		n = t
	case int64:
		n = int(t)
	case json.Number:
		i, err := strconv.Atoi(t.String())
		if err != nil {
			return nil
		}
		n = i
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

// record stores the attempt and broadcasts it
func (s *PrintService) record(printerID *int64, quantity *int, result PrintResult) PrintResult {
	job := PrintJob{
		ID:        uuid.NewString(),
		PrinterID: printerID,
		Quantity:  quantity,
		OK:        result.OK,
		Message:   result.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.insertPrintJob(job); err != nil {
		s.logger.Error("Could not record print job", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		result.JobID = job.ID
	}
	if s.events != nil {
		s.events.Publish(EventLabelPrinted, job)
	}
	return result
}

// ListPrintJobs returns the most recent print jobs first
func (s *PrintService) ListPrintJobs(limit int) ([]PrintJob, error) {
	return s.store.listPrintJobs(limit)
}

func (s *Store) insertPrintJob(job PrintJob) error {
	_, err := s.db.Exec("INSERT INTO print_jobs (id, printer_id, quantity, ok, message, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		job.ID, job.PrinterID, job.Quantity, job.OK, job.Message, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save print job: %w", err)
	}
	return nil
}

func (s *Store) listPrintJobs(limit int) ([]PrintJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query("SELECT id, printer_id, quantity, ok, message, created_at FROM print_jobs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query print jobs: %w", err)
	}
	defer rows.Close()

	jobs := []PrintJob{}
	for rows.Next() {
		var job PrintJob
		var printerID, quantity sql.NullInt64
		var createdAt sql.NullTime
		if err := rows.Scan(&job.ID, &printerID, &quantity, &job.OK, &job.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan print job: %w", err)
		}
		if printerID.Valid {
			id := printerID.Int64
			job.PrinterID = &id
		}
		if quantity.Valid {
			q := int(quantity.Int64)
			job.Quantity = &q
		}
		job.CreatedAt = createdAt.Time
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

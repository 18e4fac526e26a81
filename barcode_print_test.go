package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPrintService(t *testing.T) (*PrintService, *PrinterService, *fakeMiddleware, *recordingPublisher) {
	t.Helper()
	store := newTestStore(t)
	middleware := &fakeMiddleware{}
	events := &recordingPublisher{}
	printers := NewPrinterService(store, middleware, events, zap.NewNop())
	return NewPrintService(store, printers, middleware, events, zap.NewNop()), printers, middleware, events
}

func decodePayload(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestPrintWithoutDefaultPrinter(t *testing.T) {
	s, _, middleware, events := newTestPrintService(t)

	result := s.Print(context.Background(), decodePayload(t, `{"product_data":{"name":"Shoe"}}`))
	assert.False(t, result.OK)
	assert.Contains(t, result.Message, "No default printer")
	assert.NotEmpty(t, result.JobID)
	assert.Empty(t, middleware.jobs)
	assert.Equal(t, []string{EventLabelPrinted}, events.types())
}

func TestPrintForwardsNormalizedPayload(t *testing.T) {
	s, printers, middleware, _ := newTestPrintService(t)
	middleware.printResult = map[string]any{"status": "queued"}

	p := NewPrinter()
	p.Name = "ZD420"
	p.IsDefault = true
	p.WidthMM = 50
	p.HeightMM = 30
	_, err := printers.Create(context.Background(), p)
	require.NoError(t, err)

	result := s.Print(context.Background(), decodePayload(t, `{
		"product_data": {"name": "Shoe", "barcode": "7790001", "default_code": "", "internal_reference": "REF-1", "price": 10.5, "lot": "L1"},
		"printer_config": {"ancho_mm": 999},
		"quantity": 3
	}`))
	require.True(t, result.OK, result.Message)
	assert.Equal(t, map[string]any{"status": "queued"}, result.Result)

	require.Len(t, middleware.jobs, 1)
	job := middleware.jobs[0]
	assert.Equal(t, map[string]any{"ancho_mm": 50, "alto_mm": 30}, job["config_impresora"])
	assert.Equal(t, 3, job["cantidad"])
	assert.Equal(t, map[string]any{
		"nombre":             "Shoe",
		"codigo_barras":      "7790001",
		"referencia_interna": "REF-1",
		"precio":             10.5,
		"numero_lote_serial": "L1",
		"fecha_vencimiento":  nil,
	}, job["datos_producto"])

	jobs, err := s.ListPrintJobs(10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].OK)
	require.NotNil(t, jobs[0].Quantity)
	assert.Equal(t, 3, *jobs[0].Quantity)
	require.NotNil(t, jobs[0].PrinterID)
}

func TestPrintMiddlewareFailure(t *testing.T) {
	s, printers, middleware, _ := newTestPrintService(t)
	middleware.printErr = &APIError{Method: "POST", URL: "http://mw/print/label", Status: 502, Body: "printer offline"}

	p := NewPrinter()
	p.Name = "ZD420"
	p.IsDefault = true
	_, err := printers.Create(context.Background(), p)
	require.NoError(t, err)

	result := s.Print(context.Background(), decodePayload(t, `{"datos_producto":{"nombre":"Shoe"}}`))
	assert.False(t, result.OK)
	assert.Contains(t, result.Message, "printer offline")

	jobs, err := s.ListPrintJobs(0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].OK)
	assert.Nil(t, jobs[0].Quantity)
}

func TestBuildLabelJobAliases(t *testing.T) {
	printer := Printer{WidthMM: 40, HeightMM: 20}

	tests := []struct {
		name    string
		payload string
		field   string
		want    any
	}{
		{"Spanish wins", `{"datos_producto":{"nombre":"ES","name":"EN"}}`, "nombre", "ES"},
		{"English fallback", `{"product_data":{"name":"EN"}}`, "nombre", "EN"},
		{"Empty Spanish falls back", `{"product_data":{"nombre":"","name":"EN"}}`, "nombre", "EN"},
		{"Last alias value when none is set", `{"product_data":{"nombre":"","name":""}}`, "nombre", ""},
		{"Missing everywhere", `{"product_data":{}}`, "codigo_barras", nil},
		{"datos_producto preferred", `{"datos_producto":{"nombre":"A"},"product_data":{"nombre":"B"}}`, "nombre", "A"},
		{"Empty datos_producto falls back", `{"datos_producto":{},"product_data":{"nombre":"B"}}`, "nombre", "B"},
		{"Reference third alias", `{"product_data":{"internal_reference":"R"}}`, "referencia_interna", "R"},
		{"Serial last alias", `{"product_data":{"serial":"S"}}`, "numero_lote_serial", "S"},
		{"Use date", `{"product_data":{"use_date":"2026-01-01"}}`, "fecha_vencimiento", "2026-01-01"},
		{"Zero precio is kept", `{"product_data":{"precio":0,"price":5}}`, "precio", float64(0)},
		{"Null precio uses price", `{"product_data":{"precio":null,"price":5}}`, "precio", float64(5)},
		{"Numeric zero is falsy", `{"product_data":{"codigo_barras":0,"barcode":"B"}}`, "codigo_barras", "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := BuildLabelJob(decodePayload(t, tt.payload), printer)
			product := job["datos_producto"].(map[string]any)
			assert.Equal(t, tt.want, product[tt.field])
		})
	}
}

func TestBuildLabelJobIgnoresNonObjectProductData(t *testing.T) {
	job := BuildLabelJob(map[string]any{"product_data": "text"}, Printer{})
	product := job["datos_producto"].(map[string]any)
	assert.Nil(t, product["nombre"])
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *int
	}{
		{"Missing", `{}`, nil},
		{"Quantity", `{"quantity": 2}`, intPtr(2)},
		{"Cantidad wins", `{"cantidad": 4, "quantity": 2}`, intPtr(4)},
		{"Null cantidad falls back", `{"cantidad": null, "quantity": 2}`, intPtr(2)},
		{"Zero cantidad is kept", `{"cantidad": 0, "quantity": 2}`, intPtr(0)},
		{"Float truncates", `{"quantity": 2.9}`, intPtr(2)},
		{"Numeric string", `{"quantity": " 7 "}`, intPtr(7)},
		{"Bad string dropped", `{"quantity": "many"}`, nil},
		{"Decimal string dropped", `{"quantity": "2.5"}`, nil},
		{"Bool", `{"quantity": true}`, intPtr(1)},
		{"Object dropped", `{"quantity": {"n": 1}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseQuantity(decodePayload(t, tt.payload)))
		})
	}
}

func intPtr(n int) *int {
	return &n
}

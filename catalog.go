package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kolo/xmlrpc"
	"go.uber.org/zap"
)

var (
	// ErrCatalogNotConfigured is returned when neither Odoo nor a catalog file is set
	ErrCatalogNotConfigured = errors.New("product catalog is not configured")
	// ErrCatalogAuthentication is returned when Odoo rejects the credentials
	ErrCatalogAuthentication = errors.New("catalog authentication failed")
	// ErrCatalogRPC wraps XML-RPC faults
	ErrCatalogRPC = errors.New("catalog XML-RPC call failed")
)

// ProductTemplate is a product template with the attributes it uses
type ProductTemplate struct {
	ID           int64   `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	CategoryID   int64   `json:"category_id" yaml:"category_id"`
	AttributeIDs []int64 `json:"attribute_ids" yaml:"attribute_ids"`
}

// Attribute is a product attribute (Color, Size, ...)
type Attribute struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// LabelProduct is the label-ready data of one product template
type LabelProduct struct {
	ID                 int64             `json:"id"`
	Name               string            `json:"name"`
	DefaultCode        string            `json:"default_code"`
	Barcode            string            `json:"barcode"`
	ListPrice          float64           `json:"list_price"`
	Currency           string            `json:"currency,omitempty"`
	UoMName            string            `json:"uom_name,omitempty"`
	CategoryName       string            `json:"categ_name,omitempty"`
	Weight             float64           `json:"weight"`
	Volume             float64           `json:"volume"`
	QtyAvailable       float64           `json:"qty_available"`
	VirtualAvailable   float64           `json:"virtual_available"`
	VariantDisplayName string            `json:"variant_display_name"`
	VariantAttributes  map[string]string `json:"variant_attributes"`
}

// Catalog is the read-only product data source used by label templates
type Catalog interface {
	// ProductTemplates returns active and archived templates of the category and its subcategories
	ProductTemplates(ctx context.Context, categoryID int64) ([]ProductTemplate, error)
	Attributes(ctx context.Context, ids []int64) ([]Attribute, error)
	LabelData(ctx context.Context, templateIDs []int64) ([]LabelProduct, error)
}

// Odoo models read by the catalog
const (
	odooModelProductTemplate      = "product.template"
	odooModelProductProduct       = "product.product"
	odooModelAttributeLine        = "product.template.attribute.line"
	odooModelAttribute            = "product.attribute"
	odooModelTemplateAttributeVal = "product.template.attribute.value"
)

// OdooCatalog reads product data from Odoo over XML-RPC
type OdooCatalog struct {
	url         string
	db          string
	username    string
	password    string
	transport   *http.Transport
	authTimeout time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	uid      int64
	object   *xmlrpc.Client
	lastAuth time.Time
}

// NewOdooCatalog creates an Odoo catalog; authentication happens on first use
func NewOdooCatalog(rawURL, db, username, password string, logger *zap.Logger) (*OdooCatalog, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Odoo URL: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, fmt.Errorf("invalid Odoo URL scheme: %s, must be http or https", parsed.Scheme)
	}
	return &OdooCatalog{
		url:         rawURL,
		db:          db,
		username:    username,
		password:    password,
		transport:   newOdooTransport(),
		authTimeout: 6 * time.Hour,
		logger:      logger,
	}, nil
}

// newOdooTransport bounds every phase of an XML-RPC exchange so a call left
// behind by a cancelled context still returns
func newOdooTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: OdooResponseTimeout * time.Second,
	}
}

// connection returns uid and object client, authenticating when the session expired
func (c *OdooCatalog) connection(ctx context.Context) (int64, *xmlrpc.Client, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uid != 0 && c.object != nil && time.Since(c.lastAuth) < c.authTimeout {
		return c.uid, c.object, nil
	}
	if c.object != nil {
		c.object.Close()
		c.object = nil
	}

	common, err := xmlrpc.NewClient(c.url+"/xmlrpc/2/common", c.transport)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to connect to Odoo common endpoint: %w", err)
	}
	defer common.Close()

	var uid int64
	if err := common.Call("authenticate", []interface{}{c.db, c.username, c.password, map[string]interface{}{}}, &uid); err != nil {
		c.logger.Error("Odoo authentication failed", zap.String("db", c.db), zap.String("username", c.username), zap.Error(err))
		return 0, nil, fmt.Errorf("%w: %v", ErrCatalogAuthentication, err)
	}
	if uid == 0 {
		return 0, nil, fmt.Errorf("%w: invalid credentials", ErrCatalogAuthentication)
	}

	object, err := xmlrpc.NewClient(c.url+"/xmlrpc/2/object", c.transport)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to connect to Odoo object endpoint: %w", err)
	}

	c.uid = uid
	c.object = object
	c.lastAuth = time.Now()
	c.logger.Info("Authenticated with Odoo", zap.Int64("uid", uid), zap.String("db", c.db))
	return uid, object, nil
}

// execute runs execute_kw, giving up when ctx is done
func (c *OdooCatalog) execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}, reply interface{}) error {
	uid, object, err := c.connection(ctx)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}

	callArgs := []interface{}{c.db, uid, c.password, model, method, args, kwargs}
	done := make(chan error, 1)
	go func() {
		done <- object.Call("execute_kw", callArgs, reply)
	}()

	select {
	case <-ctx.Done():
		c.logger.Warn("Odoo call cancelled", zap.String("model", model), zap.String("method", method), zap.Error(ctx.Err()))
		return ctx.Err()
	case err := <-done:
		if err != nil {
			c.logger.Error("Odoo call failed", zap.String("model", model), zap.String("method", method), zap.Error(err))
			return parseFault(err)
		}
	}
	return nil
}

var faultPattern = regexp.MustCompile(`Fault (-?\d+): '(.*?)'`)

// parseFault turns an XML-RPC fault string into an ErrCatalogRPC error
func parseFault(err error) error {
	if matches := faultPattern.FindStringSubmatch(err.Error()); len(matches) == 3 {
		code, _ := strconv.Atoi(matches[1])
		return fmt.Errorf("%w: fault %d: %s", ErrCatalogRPC, code, matches[2])
	}
	return fmt.Errorf("%w: %v", ErrCatalogRPC, err)
}

func (c *OdooCatalog) read(ctx context.Context, model string, ids []int64, fields []string) ([]map[string]interface{}, error) {
	if len(ids) == 0 {
		return []map[string]interface{}{}, nil
	}
	var records []map[string]interface{}
	kwargs := map[string]interface{}{
		"fields":  fields,
		"context": map[string]interface{}{"active_test": false},
	}
	if err := c.execute(ctx, model, "read", []interface{}{int64sToInterfaces(ids)}, kwargs, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ProductTemplates implements Catalog
func (c *OdooCatalog) ProductTemplates(ctx context.Context, categoryID int64) ([]ProductTemplate, error) {
	domain := []interface{}{
		[]interface{}{"categ_id", "child_of", categoryID},
		[]interface{}{"active", "in", []interface{}{true, false}},
	}
	var records []map[string]interface{}
	kwargs := map[string]interface{}{
		"fields":  []string{"id", "name", "categ_id", "attribute_line_ids"},
		"context": map[string]interface{}{"active_test": false},
	}
	if err := c.execute(ctx, odooModelProductTemplate, "search_read", []interface{}{domain}, kwargs, &records); err != nil {
		return nil, err
	}

	var lineIDs []int64
	for _, r := range records {
		lineIDs = append(lineIDs, toInt64Slice(r["attribute_line_ids"])...)
	}
	lines, err := c.read(ctx, odooModelAttributeLine, lineIDs, []string{"attribute_id"})
	if err != nil {
		return nil, err
	}
	lineAttribute := make(map[int64]int64, len(lines))
	for _, l := range lines {
		attrID, _ := many2one(l["attribute_id"])
		lineAttribute[toInt64(l["id"])] = attrID
	}

	templates := make([]ProductTemplate, 0, len(records))
	for _, r := range records {
		categID, _ := many2one(r["categ_id"])
		tmpl := ProductTemplate{
			ID:         toInt64(r["id"]),
			Name:       toString(r["name"]),
			CategoryID: categID,
		}
		for _, lineID := range toInt64Slice(r["attribute_line_ids"]) {
			if attrID := lineAttribute[lineID]; attrID != 0 {
				tmpl.AttributeIDs = append(tmpl.AttributeIDs, attrID)
			}
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// Attributes implements Catalog
func (c *OdooCatalog) Attributes(ctx context.Context, ids []int64) ([]Attribute, error) {
	records, err := c.read(ctx, odooModelAttribute, ids, []string{"name"})
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, len(records))
	for _, r := range records {
		attrs = append(attrs, Attribute{ID: toInt64(r["id"]), Name: toString(r["name"])})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].ID < attrs[j].ID })
	return attrs, nil
}

// LabelData implements Catalog
func (c *OdooCatalog) LabelData(ctx context.Context, templateIDs []int64) ([]LabelProduct, error) {
	templateFields := []string{
		"name", "default_code", "barcode", "list_price",
		"uom_id", "categ_id", "weight", "volume",
		"qty_available", "virtual_available",
		"product_variant_id", "currency_id",
	}
	records, err := c.read(ctx, odooModelProductTemplate, templateIDs, templateFields)
	if err != nil {
		return nil, err
	}

	var variantIDs []int64
	for _, r := range records {
		if id, _ := many2one(r["product_variant_id"]); id != 0 {
			variantIDs = append(variantIDs, id)
		}
	}
	variants, err := c.read(ctx, odooModelProductProduct, variantIDs, []string{"display_name", "product_template_attribute_value_ids"})
	if err != nil {
		return nil, err
	}

	var valueIDs []int64
	for _, v := range variants {
		valueIDs = append(valueIDs, toInt64Slice(v["product_template_attribute_value_ids"])...)
	}
	values, err := c.read(ctx, odooModelTemplateAttributeVal, valueIDs, []string{"attribute_id", "product_attribute_value_id"})
	if err != nil {
		return nil, err
	}
	type attrValue struct{ attribute, value string }
	valueMap := make(map[int64]attrValue, len(values))
	for _, v := range values {
		_, attrName := many2one(v["attribute_id"])
		_, valueName := many2one(v["product_attribute_value_id"])
		valueMap[toInt64(v["id"])] = attrValue{attrName, valueName}
	}

	type variantInfo struct {
		displayName string
		attributes  map[string]string
	}
	variantMap := make(map[int64]variantInfo, len(variants))
	for _, v := range variants {
		attrs := map[string]string{}
		for _, id := range toInt64Slice(v["product_template_attribute_value_ids"]) {
			if av, ok := valueMap[id]; ok {
				attrs[av.attribute] = av.value
			}
		}
		variantMap[toInt64(v["id"])] = variantInfo{displayName: toString(v["display_name"]), attributes: attrs}
	}

	products := make([]LabelProduct, 0, len(records))
	for _, r := range records {
		_, uomName := many2one(r["uom_id"])
		_, categName := many2one(r["categ_id"])
		_, currency := many2one(r["currency_id"])
		variantID, _ := many2one(r["product_variant_id"])
		info := variantMap[variantID]

		p := LabelProduct{
			ID:                toInt64(r["id"]),
			Name:              toString(r["name"]),
			DefaultCode:       toString(r["default_code"]),
			Barcode:           toString(r["barcode"]),
			ListPrice:         toFloat64(r["list_price"]),
			Currency:          currency,
			UoMName:           uomName,
			CategoryName:      categName,
			Weight:            toFloat64(r["weight"]),
			Volume:            toFloat64(r["volume"]),
			QtyAvailable:      toFloat64(r["qty_available"]),
			VirtualAvailable:  toFloat64(r["virtual_available"]),
			VariantAttributes: info.attributes,
		}
		p.VariantDisplayName = info.displayName
		if p.VariantDisplayName == "" {
			p.VariantDisplayName = p.Name
		}
		if p.VariantAttributes == nil {
			p.VariantAttributes = map[string]string{}
		}
		products = append(products, p)
	}
	return products, nil
}

// Close releases the object endpoint client
func (c *OdooCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.object != nil {
		err := c.object.Close()
		c.object = nil
		return err
	}
	return nil
}

// XML-RPC value helpers. Odoo sends false for empty fields and [id, name]
// pairs for many2one fields.

func many2one(v interface{}) (int64, string) {
	pair, ok := v.([]interface{})
	if !ok || len(pair) < 2 {
		return 0, ""
	}
	return toInt64(pair[0]), toString(pair[1])
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	}
	return 0
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64Slice(v interface{}) []int64 {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, toInt64(item))
	}
	return out
}

func int64sToInterfaces(ids []int64) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

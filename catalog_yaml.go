package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// YAMLCatalog is a static catalog read from a YAML file
type YAMLCatalog struct {
	Categories []YAMLCategory `yaml:"categories"`
	Attrs      []Attribute    `yaml:"attributes"`
	Products   []YAMLProduct  `yaml:"products"`
}

// YAMLCategory is a product category; ParentID 0 marks a root
type YAMLCategory struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	ParentID int64  `yaml:"parent_id"`
}

// YAMLProduct is one product template of the YAML catalog
type YAMLProduct struct {
	ID                int64             `yaml:"id"`
	Name              string            `yaml:"name"`
	CategoryID        int64             `yaml:"category_id"`
	AttributeIDs      []int64           `yaml:"attribute_ids"`
	DefaultCode       string            `yaml:"default_code"`
	Barcode           string            `yaml:"barcode"`
	ListPrice         float64           `yaml:"list_price"`
	Currency          string            `yaml:"currency"`
	UoMName           string            `yaml:"uom"`
	Weight            float64           `yaml:"weight"`
	Volume            float64           `yaml:"volume"`
	QtyAvailable      float64           `yaml:"qty_available"`
	VirtualAvailable  float64           `yaml:"virtual_available"`
	VariantAttributes map[string]string `yaml:"variant_attributes"`
}

// LoadYAMLCatalog reads a catalog file
func LoadYAMLCatalog(path string) (*YAMLCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseYAMLCatalog(data)
}

// ParseYAMLCatalog decodes catalog YAML
func ParseYAMLCatalog(data []byte) (*YAMLCatalog, error) {
	var c YAMLCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	return &c, nil
}

// subtree returns categoryID and all of its descendants
func (c *YAMLCatalog) subtree(categoryID int64) map[int64]bool {
	children := make(map[int64][]int64)
	for _, cat := range c.Categories {
		if cat.ParentID != 0 {
			children[cat.ParentID] = append(children[cat.ParentID], cat.ID)
		}
	}

	ids := map[int64]bool{categoryID: true}
	queue := []int64{categoryID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if !ids[child] {
				ids[child] = true
				queue = append(queue, child)
			}
		}
	}
	return ids
}

func (c *YAMLCatalog) categoryName(id int64) string {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat.Name
		}
	}
	return ""
}

// ProductTemplates implements Catalog
func (c *YAMLCatalog) ProductTemplates(ctx context.Context, categoryID int64) ([]ProductTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := c.subtree(categoryID)
	templates := []ProductTemplate{}
	for _, p := range c.Products {
		if ids[p.CategoryID] {
			templates = append(templates, ProductTemplate{
				ID:           p.ID,
				Name:         p.Name,
				CategoryID:   p.CategoryID,
				AttributeIDs: p.AttributeIDs,
			})
		}
	}
	return templates, nil
}

// Attributes implements Catalog
func (c *YAMLCatalog) Attributes(ctx context.Context, ids []int64) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	attrs := []Attribute{}
	for _, a := range c.Attrs {
		if wanted[a.ID] {
			attrs = append(attrs, a)
		}
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].ID < attrs[j].ID })
	return attrs, nil
}

// LabelData implements Catalog
func (c *YAMLCatalog) LabelData(ctx context.Context, templateIDs []int64) ([]LabelProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byID := make(map[int64]YAMLProduct, len(c.Products))
	for _, p := range c.Products {
		byID[p.ID] = p
	}

	products := make([]LabelProduct, 0, len(templateIDs))
	for _, id := range templateIDs {
		p, ok := byID[id]
		if !ok {
			continue
		}
		attrs := p.VariantAttributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		products = append(products, LabelProduct{
			ID:                 p.ID,
			Name:               p.Name,
			DefaultCode:        p.DefaultCode,
			Barcode:            p.Barcode,
			ListPrice:          p.ListPrice,
			Currency:           p.Currency,
			UoMName:            p.UoMName,
			CategoryName:       c.categoryName(p.CategoryID),
			Weight:             p.Weight,
			Volume:             p.Volume,
			QtyAvailable:       p.QtyAvailable,
			VirtualAvailable:   p.VirtualAvailable,
			VariantDisplayName: p.Name,
			VariantAttributes:  attrs,
		})
	}
	return products, nil
}

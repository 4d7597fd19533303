// Package catalog はコンパイル時に埋め込まれた商品カタログを提供する。
// カタログは起動時にシードされる読み取り専用データで、以後変更されない。
package catalog

import "github.com/hitoshi/agora/internal/model"

// products は固定の商品カタログ。表示順はこの定義順で安定している。
var products = []model.Product{
	{
		ID:          1,
		Name:        "Pro Developer Mechanical Keyboard",
		Price:       149.99,
		Description: "High-performance mechanical keyboard with custom switches designed for coding efficiency. Features RGB backlighting and programmable macro keys.",
		Category:    "Accessories",
		ImageURL:    "https://picsum.photos/id/1/600/600",
		Rating:      4.8,
	},
	{
		ID:          2,
		Name:        "Ultra-Wide 4K Monitor",
		Price:       499.99,
		Description: "34-inch ultra-wide display with consistent color accuracy. Perfect for multitasking and viewing long lines of code.",
		Category:    "Monitors",
		ImageURL:    "https://picsum.photos/id/2/600/600",
		Rating:      4.7,
	},
	{
		ID:          3,
		Name:        "Noise Cancelling Headphones",
		Price:       299.99,
		Description: "Premium wireless headphones with industry-leading noise cancellation. Focus on your work without distractions.",
		Category:    "Audio",
		ImageURL:    "https://picsum.photos/id/3/600/600",
		Rating:      4.9,
	},
	{
		ID:          4,
		Name:        "Ergonomic Mesh Chair",
		Price:       349.99,
		Description: "Breathable mesh chair with adjustable lumbar support and armrests. Designed for long coding sessions.",
		Category:    "Furniture",
		ImageURL:    "https://picsum.photos/id/4/600/600",
		Rating:      4.6,
	},
	{
		ID:          5,
		Name:        "Portable SSD 1TB",
		Price:       129.99,
		Description: "Rugged, fast, and compact. Transfer large projects and datasets in seconds with USB-C generation 2 speeds.",
		Category:    "Storage",
		ImageURL:    "https://picsum.photos/id/5/600/600",
		Rating:      4.8,
	},
	{
		ID:          6,
		Name:        "Smart Coffee Mug",
		Price:       89.99,
		Description: "App-controlled heated mug that keeps your coffee at the perfect temperature for hours.",
		Category:    "Lifestyle",
		ImageURL:    "https://picsum.photos/id/6/600/600",
		Rating:      4.5,
	},
	{
		ID:          7,
		Name:        "Laptop Stand Aluminum",
		Price:       49.99,
		Description: "Sleek aluminum stand to elevate your laptop for better ergonomics and cooling.",
		Category:    "Accessories",
		ImageURL:    "https://picsum.photos/id/7/600/600",
		Rating:      4.4,
	},
	{
		ID:          8,
		Name:        "Blue Light Blocking Glasses",
		Price:       39.99,
		Description: "Reduce eye strain and fatigue from long hours of screen time. Stylish frames suitable for any face shape.",
		Category:    "Lifestyle",
		ImageURL:    "https://picsum.photos/id/8/600/600",
		Rating:      4.3,
	},
}

// Catalog は読み取り専用の商品カタログ。
type Catalog struct {
	products []model.Product
	byID     map[int]*model.Product
}

// New はシード済みカタログの新しいインスタンスを生成する。
func New() *Catalog {
	return newWith(products)
}

// NewWith は指定された商品リストからカタログを生成する。テスト用。
func NewWith(list []model.Product) *Catalog {
	return newWith(list)
}

func newWith(list []model.Product) *Catalog {
	c := &Catalog{
		products: make([]model.Product, len(list)),
		byID:     make(map[int]*model.Product, len(list)),
	}
	copy(c.products, list)
	for i := range c.products {
		c.byID[c.products[i].ID] = &c.products[i]
	}
	return c
}

// List は固定カタログを定義順で返す。副作用はない。
// 返却スライスはコピーのため、呼び出し側が変更してもカタログには影響しない。
func (c *Catalog) List() []model.Product {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out
}

// FindByID は指定IDの商品を返す。見つからない場合はnilを返す。
func (c *Catalog) FindByID(id int) *model.Product {
	p, ok := c.byID[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Len はカタログの商品数を返す。
func (c *Catalog) Len() int {
	return len(c.products)
}

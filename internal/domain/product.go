package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// ProductOption is a product option such as Color or Size
type ProductOption struct {
	Name   string   `json:"name" bson:"name"`
	Values []string `json:"values,omitempty" bson:"values,omitempty"`
}

// ProductVariant is one purchasable variant of a product
type ProductVariant struct {
	Title string `json:"title" bson:"title"`
	Price string `json:"price,omitempty" bson:"price,omitempty"`
}

// ProductImage is an image attached to a product
type ProductImage struct {
	Src string `json:"src" bson:"src"`
	Alt string `json:"alt,omitempty" bson:"alt,omitempty"`
}

// Product is the local record of one Shopify product of one connected shop
type Product struct {
	ID          string           `json:"id" bson:"_id,omitempty"`
	ProductID   int64            `json:"productId" bson:"productId"`   // Shopify product id
	ShopDomain  string           `json:"shopDomain" bson:"shopDomain"` // myshopify domain of the owning shop
	Title       string           `json:"title" bson:"title"`
	Name        string           `json:"name" bson:"name"`
	Vendor      string           `json:"vendor" bson:"vendor"`
	ProductType string           `json:"productType" bson:"productType"`
	Description string           `json:"description,omitempty" bson:"description,omitempty"`
	Price       string           `json:"price,omitempty" bson:"price,omitempty"`
	Options     []ProductOption  `json:"options" bson:"options"`
	Variants    []ProductVariant `json:"variants" bson:"variants"`
	Tags        string           `json:"tags,omitempty" bson:"tags,omitempty"`
	Status      string           `json:"status,omitempty" bson:"status,omitempty"`
	Images      []ProductImage   `json:"images,omitempty" bson:"images,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// OptionNames returns the ProductOptions values of the product in their original order.
// Shopify's synthetic default option is skipped.
func (p *Product) OptionNames() []string {
	var names []string
	for _, o := range p.Options {
		if o.Name == "" || IsDefaultOption(o.Name) {
			continue
		}
		names = append(names, o.Name)
	}
	return names
}

// OptionValues maps each option name to its values
func (p *Product) OptionValues() map[string][]string {
	values := make(map[string][]string, len(p.Options))
	for _, o := range p.Options {
		values[o.Name] = append(values[o.Name], o.Values...)
	}
	return values
}

// VariantValues returns the ProductVariants values of the product in their original
// order. The default variant is skipped.
func (p *Product) VariantValues() []string {
	var values []string
	for _, v := range p.Variants {
		if v.Title == "" || IsDefaultVariant(v.Title) {
			continue
		}
		values = append(values, VariantEntityValue(p.Title, v.Title))
	}
	return values
}

// ShopifyProductPayload is the product resource delivered by Shopify webhooks and the
// Admin REST API. It also accepts the camelCase productType key written by older
// revisions of the product store.
type ShopifyProductPayload struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	BodyHTML    string `json:"body_html"`
	Vendor      string `json:"vendor"`
	ProductType string `json:"product_type"`
	Options     []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"options"`
	Variants []struct {
		Title string          `json:"title"`
		Price json.RawMessage `json:"price"`
	} `json:"variants"`
	Tags   string `json:"tags"`
	Status string `json:"status"`
	Images []struct {
		Src string `json:"src"`
		Alt string `json:"alt"`
	} `json:"images"`
}

// UnmarshalJSON decodes the payload accepting either product_type or productType
func (p *ShopifyProductPayload) UnmarshalJSON(data []byte) error {
	type alias ShopifyProductPayload
	aux := struct {
		*alias
		CamelProductType string `json:"productType"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ProductType == "" {
		p.ProductType = aux.CamelProductType
	}
	return nil
}

// ToProduct normalizes the payload into a product record for shopDomain
func (p *ShopifyProductPayload) ToProduct(shopDomain string) *Product {
	product := &Product{
		ProductID:   p.ID,
		ShopDomain:  shopDomain,
		Title:       p.Title,
		Name:        p.Title,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Description: p.BodyHTML,
		Tags:        p.Tags,
		Status:      p.Status,
	}
	for _, o := range p.Options {
		product.Options = append(product.Options, ProductOption{Name: o.Name, Values: o.Values})
	}
	for _, v := range p.Variants {
		product.Variants = append(product.Variants, ProductVariant{Title: v.Title, Price: rawPrice(v.Price)})
	}
	if len(product.Variants) > 0 {
		product.Price = product.Variants[0].Price
	}
	for _, img := range p.Images {
		product.Images = append(product.Images, ProductImage{Src: img.Src, Alt: img.Alt})
	}
	return product
}

// rawPrice accepts prices encoded either as JSON strings or numbers
func rawPrice(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

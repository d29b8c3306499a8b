package akeneo

// Value is one entry of a product's values list as returned by the REST API.
// Locale and Scope are nil when the attribute is not localizable/scopable.
type Value struct {
	Locale *string `json:"locale"`
	Scope  *string `json:"scope"`
	Data   any     `json:"data"`
}

// Product is the products-uuid resource.
type Product struct {
	UUID       string             `json:"uuid"`
	Identifier string             `json:"identifier,omitempty"`
	Enabled    bool               `json:"enabled"`
	Family     string             `json:"family,omitempty"`
	Categories []string           `json:"categories,omitempty"`
	Parent     string             `json:"parent,omitempty"`
	Values     map[string][]Value `json:"values"`
	Created    string             `json:"created,omitempty"`
	Updated    string             `json:"updated,omitempty"`
}

// Family is the families resource.
type Family struct {
	Code             string            `json:"code"`
	Labels           map[string]string `json:"labels,omitempty"`
	Attributes       []string          `json:"attributes"`
	AttributeAsLabel string            `json:"attribute_as_label,omitempty"`
}

// Attribute is the attributes resource.
type Attribute struct {
	Code        string            `json:"code"`
	Type        string            `json:"type"`
	Group       string            `json:"group,omitempty"`
	Localizable bool              `json:"localizable"`
	Scopable    bool              `json:"scopable"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// AttributeOption is one entry of an attribute's options collection.
type AttributeOption struct {
	Code      string            `json:"code"`
	Attribute string            `json:"attribute,omitempty"`
	SortOrder int               `json:"sort_order"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// ProductPatch is the body of a product partial update.
type ProductPatch struct {
	Values map[string][]Value `json:"values"`
}

type optionsPage struct {
	Embedded struct {
		Items []AttributeOption `json:"items"`
	} `json:"_embedded"`
	Links struct {
		Next *struct {
			Href string `json:"href"`
		} `json:"next,omitempty"`
	} `json:"_links"`
}

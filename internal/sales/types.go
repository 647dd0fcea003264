// Package sales implements the tenant-scoped client, currency and sale
// operations. Every Service method takes the caller's SecurityContext
// explicitly and checks the guard before touching the store.
package sales

import (
	"context"
	"time"
)

// Client is a customer of one company.
type Client struct {
	ID        int64  `json:"id_cliente"`
	Name      string `json:"nombre"`
	Kind      string `json:"tipo"`
	Phone     string `json:"telefono"`
	Email     string `json:"email"`
	Notes     string `json:"notas"`
	CompanyID int64  `json:"empresas_id_empresa"`
}

// NewClient is the create payload for a client.
type NewClient struct {
	Name  string `json:"nombre"`
	Kind  string `json:"tipo"`
	Phone string `json:"telefono"`
	Email string `json:"email"`
	Notes string `json:"notas"`
}

// ClientPatch carries the fields present in an update request.
type ClientPatch struct {
	Name  Optional[string] `json:"nombre"`
	Kind  Optional[string] `json:"tipo"`
	Phone Optional[string] `json:"telefono"`
	Email Optional[string] `json:"email"`
	Notes Optional[string] `json:"notas"`
}

// Empty reports whether the patch changes nothing.
func (p ClientPatch) Empty() bool {
	return !p.Name.Set && !p.Kind.Set && !p.Phone.Set && !p.Email.Set && !p.Notes.Set
}

// Apply merges the present fields into c.
func (p ClientPatch) Apply(c Client) Client {
	c.Name = p.Name.Or(c.Name)
	c.Kind = p.Kind.Or(c.Kind)
	c.Phone = p.Phone.Or(c.Phone)
	c.Email = p.Email.Or(c.Email)
	c.Notes = p.Notes.Or(c.Notes)
	return c
}

// Currency is global; it carries no company id.
type Currency struct {
	ID   int64  `json:"id_moneda"`
	Name string `json:"nombre"`
}

// NewCurrency is the create payload for a currency.
type NewCurrency struct {
	Name string `json:"nombre"`
}

// CurrencyPatch carries the fields present in an update request.
type CurrencyPatch struct {
	Name Optional[string] `json:"nombre"`
}

// NewLineItem is one requested sale line.
type NewLineItem struct {
	ProductID    int64 `json:"producto_id"`
	Quantity     int64 `json:"cantidad"`
	UnitPrice    int64 `json:"precio_unitario"`
	LineDiscount int64 `json:"descuento_item"`
}

// NewSale is the create payload for a sale.
type NewSale struct {
	Discount   int64         `json:"descuento"`
	LegalName  string        `json:"razon_social"`
	TaxID      string        `json:"nit"`
	ClientID   int64         `json:"cliente_id"`
	CurrencyID int64         `json:"moneda_id"`
	Items      []NewLineItem `json:"items"`
}

// ProductIDs returns the referenced product ids in request order.
func (s NewSale) ProductIDs() []int64 {
	out := make([]int64, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.ProductID
	}
	return out
}

// SalePatch carries the header fields present in an update request.
type SalePatch struct {
	LegalName Optional[string] `json:"razon_social"`
	TaxID     Optional[string] `json:"nit"`
	Discount  Optional[int64]  `json:"descuento"`
}

// Empty reports whether the patch changes nothing.
func (p SalePatch) Empty() bool {
	return !p.LegalName.Set && !p.TaxID.Set && !p.Discount.Set
}

type ClientRef struct {
	ID   int64  `json:"id_cliente"`
	Name string `json:"nombre"`
}

type CurrencyRef struct {
	ID   int64  `json:"id_moneda"`
	Name string `json:"nombre"`
}

type UserRef struct {
	ID        int64  `json:"id_usuario"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
}

type ProductRef struct {
	ID      int64  `json:"id_producto"`
	Name    string `json:"nombre"`
	SKU     string `json:"codigo_sku"`
	Barcode string `json:"codigo_barra"`
}

// LineItem is a persisted sale line.
type LineItem struct {
	ID           int64      `json:"id_venta_detalle"`
	Quantity     int64      `json:"cantidad"`
	UnitPrice    int64      `json:"precio_unitario"`
	LineDiscount int64      `json:"descuento_item"`
	Product      ProductRef `json:"producto"`
}

// SaleSummary is a sale header as returned by list.
type SaleSummary struct {
	ID        int64       `json:"id_venta"`
	CreatedAt time.Time   `json:"fecha_creacion"`
	Discount  int64       `json:"descuento"`
	Total     int64       `json:"total"`
	LegalName string      `json:"razon_social"`
	TaxID     string      `json:"nit"`
	Client    ClientRef   `json:"cliente"`
	Currency  CurrencyRef `json:"moneda"`
	User      UserRef     `json:"usuario"`
	CompanyID int64       `json:"empresas_id_empresa"`
}

// Sale is a sale header with its line items.
type Sale struct {
	SaleSummary
	Items []LineItem `json:"items"`
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Store is the persistence contract. Every method on a company-scoped entity
// takes the caller's company id and must filter on it; rows of other
// companies are reported as apperr.ErrNotFound.
type Store interface {
	ListClients(ctx context.Context, companyID int64) ([]Client, error)
	GetClient(ctx context.Context, companyID, id int64) (Client, error)
	CreateClient(ctx context.Context, companyID int64, in NewClient) (Client, error)
	UpdateClient(ctx context.Context, companyID, id int64, patch ClientPatch) (Client, error)
	DeleteClient(ctx context.Context, companyID, id int64) error

	ListCurrencies(ctx context.Context) ([]Currency, error)
	GetCurrency(ctx context.Context, id int64) (Currency, error)
	CreateCurrency(ctx context.Context, in NewCurrency) (Currency, error)
	UpdateCurrency(ctx context.Context, id int64, patch CurrencyPatch) (Currency, error)
	DeleteCurrency(ctx context.Context, id int64) error

	ListSales(ctx context.Context, companyID int64, page Page) ([]SaleSummary, error)
	GetSale(ctx context.Context, companyID, id int64) (Sale, error)
	// CreateSale validates the client, currency and products and inserts the
	// sale with its lines in one transaction.
	CreateSale(ctx context.Context, companyID, userID int64, in NewSale, total int64) (Sale, error)
	// UpdateSale applies patch; when the discount changes the total is
	// recomputed from the stored lines with ComputeStoredTotal.
	UpdateSale(ctx context.Context, companyID, id int64, patch SalePatch) (Sale, error)
	DeleteSale(ctx context.Context, companyID, id int64) error
}

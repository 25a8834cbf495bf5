package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/ctx"
)

// ProductService is what the controller needs from services.ProductService.
type ProductService interface {
	List(ctx context.Context) ([]models.ProductSummary, error)
	Get(ctx context.Context, id uint) (models.Product, error)
	Create(ctx context.Context, actor string, input models.Product) (models.Product, error)
	Update(ctx context.Context, actor string, id uint, expected models.Version, fields models.ProductFields) (repositories.UpdateResult, error)
	Delete(ctx context.Context, actor string, id uint) error
}

// AuditHistory reads a product's write history.
type AuditHistory interface {
	History(ctx context.Context, productID uint) ([]models.ProductAudit, error)
}

type ProductController struct {
	products ProductService
	audits   AuditHistory
}

func NewProductController(products ProductService, audits AuditHistory) *ProductController {
	return &ProductController{products: products, audits: audits}
}

type createProductInput struct {
	Name        string           `json:"name"        validate:"required,max=255"`
	Price       *decimal.Decimal `json:"price"       validate:"required,gte=0"`
	Available   bool             `json:"available"`
	Description string           `json:"description"`
}

type updateProductInput struct {
	Name        *string          `json:"name"        validate:"nullable,max=255"`
	Price       *decimal.Decimal `json:"price"       validate:"nullable,gte=0"`
	Available   *bool            `json:"available"`
	Description *string          `json:"description"`
	// Version may instead travel in If-Match.
	Version string `json:"version"`
}

// Index handles GET /api/products.
func (pc *ProductController) Index(c *ctx.Context) {
	list, err := pc.products.List(c.Context())
	if err != nil {
		c.Err(err)
		return
	}
	c.Success(list)
}

// Show handles GET /api/products/{id}.
func (pc *ProductController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	p, err := pc.products.Get(c.Context(), id)
	if err != nil {
		c.Err(err)
		return
	}
	c.SetHeader("ETag", etag(p.Version))
	c.Success(p.Summary())
}

// Store handles POST /api/products.
func (pc *ProductController) Store(c *ctx.Context) {
	var in createProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := pc.products.Create(c.Context(), c.Actor(), models.Product{
		Name:        in.Name,
		Price:       *in.Price,
		Available:   in.Available,
		Description: in.Description,
	})
	if err != nil {
		c.Err(err)
		return
	}
	c.SetHeader("ETag", etag(p.Version))
	c.Created(p)
}

// Update handles PUT /api/products/{id}. The caller must name the version
// it read, in the body or If-Match; a stale one is answered with 409 and
// the current record.
func (pc *ProductController) Update(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in updateProductInput
	if !c.BindJSON(&in) {
		return
	}

	raw := in.Version
	if raw == "" {
		raw = parseIfMatch(c.Header("If-Match"))
	}
	if raw == "" {
		c.Error(http.StatusPreconditionRequired, "A version is required: send the product's version or an If-Match header.")
		return
	}
	expected, err := models.ParseVersion(raw)
	if err != nil || len(expected) == 0 {
		c.ValidationError(map[string]string{"version": "The version is malformed."})
		return
	}

	fields := models.ProductFields{
		Name:        in.Name,
		Price:       in.Price,
		Available:   in.Available,
		Description: in.Description,
	}
	if fields.Empty() {
		c.ValidationError(map[string]string{"fields": "At least one of name, price, available or description is required."})
		return
	}

	res, err := pc.products.Update(c.Context(), c.Actor(), id, expected, fields)
	if err != nil {
		c.Err(err)
		return
	}
	c.SetHeader("ETag", etag(res.Record.Version))
	if res.Conflict {
		c.Conflict("The product was modified by someone else.", res.Record)
		return
	}
	c.Success(res.Record)
}

// Destroy handles DELETE /api/products/{id}.
func (pc *ProductController) Destroy(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := pc.products.Delete(c.Context(), c.Actor(), id); err != nil {
		c.Err(err)
		return
	}
	c.NoContent()
}

// History handles GET /api/products/{id}/history. A deleted product keeps
// its history; an id that never existed has an empty one.
func (pc *ProductController) History(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	rows, err := pc.audits.History(c.Context(), id)
	if err != nil {
		c.Err(err)
		return
	}
	if rows == nil {
		rows = []models.ProductAudit{}
	}
	c.Success(rows)
}

func etag(v models.Version) string { return `"` + v.String() + `"` }

// parseIfMatch accepts a single entity tag, strong or weak.
func parseIfMatch(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "W/")
	return strings.Trim(h, `"`)
}

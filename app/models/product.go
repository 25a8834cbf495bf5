package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

func init() {
	// Prices travel as JSON numbers (9.99), not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// PriceScale is the number of decimal places the price column keeps.
const PriceScale = 2

// Product is a catalogue entry.
type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"   json:"id"`
	Name        string          `gorm:"size:255;not null"          json:"name"`
	NameKey     string          `gorm:"size:255;not null;uniqueIndex" json:"-"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Available   bool            `gorm:"not null"                   json:"available"`
	Description string          `gorm:"type:text"                  json:"description"`
	DateCreated time.Time       `gorm:"not null"                   json:"dateCreated"`
	Version     Version         `gorm:"size:16;not null"           json:"version"`
}

// Summary projects p onto the fields exposed by list and detail reads.
func (p Product) Summary() ProductSummary {
	return ProductSummary{ID: p.ID, Name: p.Name, Available: p.Available, Price: p.Price}
}

// Clone returns a copy that shares no memory with p.
func (p Product) Clone() Product {
	p.Version = append(Version(nil), p.Version...)
	return p
}

// ProductSummary is the read projection of a Product.
type ProductSummary struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Available bool            `json:"available"`
	Price     decimal.Decimal `json:"price"`
}

// ProductFields carries the mutable fields of an update. Nil means unchanged.
type ProductFields struct {
	Name        *string
	Price       *decimal.Decimal
	Available   *bool
	Description *string
}

// Empty reports whether no field is set.
func (f ProductFields) Empty() bool {
	return f.Name == nil && f.Price == nil && f.Available == nil && f.Description == nil
}

// Version is an opaque concurrency token. Only equality is meaningful.
type Version []byte

// Equal reports whether v and o are the same token.
func (v Version) Equal(o Version) bool { return bytes.Equal(v, o) }

// String renders the token the way it travels in JSON and ETags.
func (v Version) String() string { return base64.StdEncoding.EncodeToString(v) }

// Value stores the token as raw bytes.
func (v Version) Value() (driver.Value, error) { return []byte(v), nil }

// Scan reads a token column.
func (v *Version) Scan(src interface{}) error {
	switch s := src.(type) {
	case nil:
		*v = nil
	case []byte:
		*v = append(Version(nil), s...)
	case string:
		*v = Version(s)
	default:
		return fmt.Errorf("models: cannot scan %T into Version", src)
	}
	return nil
}

// ParseVersion decodes a token produced by String.
func ParseVersion(s string) (Version, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Version(b), nil
}

// NameKey is the uniqueness key for a product name: trimmed and case-folded,
// so "Widget" and " widget" collide.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

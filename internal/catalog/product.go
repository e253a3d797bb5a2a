package catalog

import (
	"strings"

	"github.com/noah-isme/toss-checkout/internal/common"
)

// Product is a purchasable catalog entry. Price is in whole won.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

// ProductFields carries the editable attributes of a product.
type ProductFields struct {
	Name        string `json:"name" validate:"required"`
	Price       int64  `json:"price" validate:"gt=0"`
	Description string `json:"description" validate:"required"`
}

// ProductPatch describes a partial update. Nil fields are left unchanged.
type ProductPatch struct {
	Name        *string `json:"name,omitempty"`
	Price       *int64  `json:"price,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Description == nil
}

// Messages shown to the admin when a product form is rejected.
const (
	MsgNameRequired        = "상품명을 입력해주세요"
	MsgPriceInvalid        = "올바른 가격을 입력해주세요"
	MsgDescriptionRequired = "설명을 입력해주세요"
)

var productMessages = map[string]string{
	"name":        MsgNameRequired,
	"price":       MsgPriceInvalid,
	"description": MsgDescriptionRequired,
}

// Normalize trims surrounding whitespace from text fields.
func (f ProductFields) Normalize() ProductFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	return f
}

// Validate checks the fields after normalisation and returns a message per failing field.
func (f ProductFields) Validate() common.FieldErrors {
	return common.ValidateFields(f.Normalize(), productMessages, "invalid value")
}

func (p Product) fields() ProductFields {
	return ProductFields{Name: p.Name, Price: p.Price, Description: p.Description}
}

func (p Product) apply(patch ProductPatch) Product {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	return p
}

// DefaultProducts returns the products a fresh catalog is seeded with.
func DefaultProducts() []Product {
	return []Product{
		{ID: "1", Name: "개발의 신 프리미엄", Price: 50000, Description: "AI 챗봇 무제한 이용권 (1개월)"},
		{ID: "2", Name: "개발의 신 스탠다드", Price: 30000, Description: "AI 챗봇 일일 100회 이용권 (1개월)"},
		{ID: "3", Name: "개발의 신 베이직", Price: 10000, Description: "AI 챗봇 일일 10회 이용권 (1개월)"},
	}
}

package order

import (
	"net/url"
	"strings"

	"github.com/noah-isme/toss-checkout/internal/common"
)

// Messages shown next to empty order form fields.
const (
	MsgNameRequired  = "이름을 입력해주세요"
	MsgEmailRequired = "이메일을 입력해주세요"
	MsgPhoneRequired = "전화번호를 입력해주세요"
)

var formMessages = map[string]string{
	"name":  MsgNameRequired,
	"email": MsgEmailRequired,
	"phone": MsgPhoneRequired,
}

// Form is the customer information collected before checkout.
type Form struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

// Normalize trims surrounding whitespace from every field.
func (f Form) Normalize() Form {
	return Form{
		Name:  strings.TrimSpace(f.Name),
		Email: strings.TrimSpace(f.Email),
		Phone: strings.TrimSpace(f.Phone),
	}
}

// Validate returns a message for every empty field, or nil when the form is complete.
func (f Form) Validate() common.FieldErrors {
	return common.ValidateFields(f.Normalize(), formMessages, "invalid value")
}

// Intent is what the order page hands to checkout through URL parameters.
type Intent struct {
	ProductID string
	Name      string
	Email     string
	Phone     string
}

// Submit validates the form and, when valid, passes the resulting intent to next.
// next is never called for an invalid form.
func Submit(productID string, form Form, next func(Intent)) common.FieldErrors {
	if errs := form.Validate(); errs != nil {
		return errs
	}
	form = form.Normalize()
	if next != nil {
		next(Intent{
			ProductID: strings.TrimSpace(productID),
			Name:      form.Name,
			Email:     form.Email,
			Phone:     form.Phone,
		})
	}
	return nil
}

// Values encodes the intent as checkout query parameters.
func (i Intent) Values() url.Values {
	v := url.Values{}
	v.Set("productId", i.ProductID)
	v.Set("name", i.Name)
	v.Set("email", i.Email)
	v.Set("phone", i.Phone)
	return v
}

// CheckoutURL returns the checkout page location below base (which may be empty).
func (i Intent) CheckoutURL(base string) string {
	return strings.TrimRight(base, "/") + "/checkout?" + i.Values().Encode()
}

// ParseIntent reads an intent back from checkout query parameters.
func ParseIntent(v url.Values) Intent {
	return Intent{
		ProductID: strings.TrimSpace(v.Get("productId")),
		Name:      strings.TrimSpace(v.Get("name")),
		Email:     strings.TrimSpace(v.Get("email")),
		Phone:     strings.TrimSpace(v.Get("phone")),
	}
}

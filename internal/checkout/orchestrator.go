package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/order"
)

// State is a step of the checkout flow.
type State int

const (
	LoadingProduct State = iota
	LoadingWidget
	Ready
	Submitting
	NotFound
)

func (s State) String() string {
	switch s {
	case LoadingProduct:
		return "loading_product"
	case LoadingWidget:
		return "loading_widget"
	case Ready:
		return "ready"
	case Submitting:
		return "submitting"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Notices shown during checkout.
const (
	MsgNotFound      = "주문 정보를 찾을 수 없습니다."
	MsgWidgetLoading = "결제 위젯이 로딩 중입니다. 잠시 후 다시 시도해주세요."
	MsgWidgetFailed  = "결제 위젯을 불러오지 못했습니다."
	msgPaymentFailed = "결제 실패: %s"
)

var (
	// ErrNotFound is returned when the product or customer details are missing.
	ErrNotFound = errors.New("checkout: order information not found")
	// ErrNotReady is returned by Pay before the widget has finished rendering.
	ErrNotReady = errors.New("checkout: payment widget not ready")
)

// ProductFinder resolves a product by id.
type ProductFinder interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// Config wires an Orchestrator.
type Config struct {
	Products  ProductFinder
	Loader    Loader
	Notifier  Notifier
	ClientKey string
	// Origin is the public base URL used for success and fail redirects.
	Origin string
	Now    func() time.Time
	Logger *zerolog.Logger
}

// Result describes an issued payment request.
type Result struct {
	OrderID     string `json:"orderId"`
	OrderName   string `json:"orderName"`
	Amount      int64  `json:"amount"`
	RedirectURL string `json:"redirectUrl"`
}

// Orchestrator drives one checkout: product lookup, widget preparation and payment.
type Orchestrator struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	intent  order.Intent
	product catalog.Product
	widget  Widget
	err     error
}

// New validates cfg and returns an orchestrator in LoadingProduct.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Products == nil {
		return nil, errors.New("checkout: product finder is required")
	}
	if cfg.Loader == nil {
		return nil, errors.New("checkout: widget loader is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = &Alerts{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Origin = strings.TrimRight(cfg.Origin, "/")
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "checkout").Logger()
	}
	return &Orchestrator{cfg: cfg, logger: logger, state: LoadingProduct}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Product returns the resolved product once known.
func (o *Orchestrator) Product() (catalog.Product, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.product, o.product.ID != ""
}

// Err reports the last widget failure, if any.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Start resolves the product and prepares the widget. It returns the resulting state:
// NotFound, LoadingWidget (widget failed, see Err) or Ready. Calling Start again only
// retries the widget step.
func (o *Orchestrator) Start(ctx context.Context, intent order.Intent) State {
	o.mu.Lock()
	switch o.state {
	case LoadingProduct:
		o.intent = intent
	case LoadingWidget:
	default:
		state := o.state
		o.mu.Unlock()
		return state
	}
	state := o.state
	o.mu.Unlock()

	if state == LoadingProduct {
		product, ok := o.resolveProduct(ctx, intent)
		o.mu.Lock()
		if !ok {
			o.state = NotFound
			o.mu.Unlock()
			return NotFound
		}
		o.product = product
		o.state = LoadingWidget
		o.mu.Unlock()
	}
	return o.prepareWidget(ctx)
}

func (o *Orchestrator) resolveProduct(ctx context.Context, intent order.Intent) (catalog.Product, bool) {
	if intent.ProductID == "" {
		return catalog.Product{}, false
	}
	product, err := o.cfg.Products.Get(ctx, intent.ProductID)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			o.logger.Warn().Err(err).Str("product_id", intent.ProductID).Msg("product lookup failed")
		}
		return catalog.Product{}, false
	}
	if intent.Name == "" || intent.Email == "" {
		return catalog.Product{}, false
	}
	return product, true
}

func (o *Orchestrator) prepareWidget(ctx context.Context) State {
	o.mu.Lock()
	product, email := o.product, o.intent.Email
	o.mu.Unlock()

	widget, err := o.cfg.Loader.Load(ctx, o.cfg.ClientKey, email)
	if err == nil {
		err = widget.RenderPaymentMethods(ctx, PaymentMethodsSelector, product.Price)
	}
	if err == nil {
		err = widget.RenderAgreement(ctx, AgreementSelector)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.err = err
		o.logger.Error().Err(err).Str("product_id", product.ID).Msg("payment widget load failed")
		o.cfg.Notifier.Alert(ctx, MsgWidgetFailed)
		return o.state
	}
	o.widget = widget
	o.err = nil
	o.state = Ready
	return o.state
}

// Pay issues the payment request for the resolved product. Outside Ready it alerts and
// returns ErrNotReady without contacting the widget. On failure the state returns to Ready.
func (o *Orchestrator) Pay(ctx context.Context) (Result, error) {
	o.mu.Lock()
	if o.state != Ready || o.widget == nil {
		o.mu.Unlock()
		o.cfg.Notifier.Alert(ctx, MsgWidgetLoading)
		return Result{}, ErrNotReady
	}
	o.state = Submitting
	widget, product, intent := o.widget, o.product, o.intent
	o.mu.Unlock()

	orderID := "ORDER_" + strconv.FormatInt(o.cfg.Now().UnixMilli(), 10)
	req := PaymentRequest{
		OrderID:       orderID,
		OrderName:     product.Name,
		Amount:        product.Price,
		CustomerName:  intent.Name,
		CustomerEmail: intent.Email,
		SuccessURL:    o.cfg.Origin + "/success?orderId=" + orderID,
		FailURL:       o.cfg.Origin + "/fail",
	}
	redirect, err := widget.RequestPayment(ctx, req)

	o.mu.Lock()
	o.state = Ready
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn().Err(err).Str("order_id", orderID).Msg("payment request failed")
		if msg := failureMessage(err); msg != "" {
			o.cfg.Notifier.Alert(ctx, fmt.Sprintf(msgPaymentFailed, msg))
		}
		return Result{OrderID: orderID, OrderName: req.OrderName, Amount: req.Amount}, err
	}
	return Result{OrderID: orderID, OrderName: req.OrderName, Amount: req.Amount, RedirectURL: redirect}, nil
}

func failureMessage(err error) string {
	var perr *PaymentError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}

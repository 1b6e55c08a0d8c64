package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/modularstore/internal/domain"
	"github.com/phenrril/modularstore/internal/pricing"
)

type Step string

const (
	StepIdle            Step = "idle"
	StepInformation     Step = "information"
	StepReview          Step = "review"
	StepPayment         Step = "payment"
	StepGatewayRedirect Step = "gateway_redirect"
	StepComplete        Step = "complete"
	StepVerifying       Step = "verifying"
	StepSuccess         Step = "success"
	StepFailed          Step = "failed"
)

const (
	DefaultOfflineDelay  = 1200 * time.Millisecond
	DefaultNavigateDelay = 2 * time.Second
	OrdersPath           = "/orders"
	CheckoutPath         = "/checkout"
)

var (
	emailRe  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	nameRe   = regexp.MustCompile(`^[\p{L} '-]{2,}$`)
	postalRe = regexp.MustCompile(`^\d{4,5}$`)
)

type ContactForm struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Postal  string `json:"postal"`
	Country string `json:"country"`
}

// ValidateContact returns a *domain.ValidationError naming every offending field.
func ValidateContact(f ContactForm) error {
	bad := map[string]string{}
	if !emailRe.MatchString(strings.TrimSpace(f.Email)) {
		bad["email"] = "enter a valid email address"
	}
	if !nameRe.MatchString(strings.TrimSpace(f.Name)) {
		bad["name"] = "at least 2 letters"
	}
	if utf8.RuneCountInString(strings.TrimSpace(f.Address)) < 5 {
		bad["address"] = "at least 5 characters"
	}
	if utf8.RuneCountInString(strings.TrimSpace(f.City)) < 2 {
		bad["city"] = "at least 2 characters"
	}
	if !postalRe.MatchString(strings.TrimSpace(f.Postal)) {
		bad["postal"] = "4 or 5 digits"
	}
	if len(bad) > 0 {
		return &domain.ValidationError{Fields: bad}
	}
	return nil
}

// Checkout is the in-view state of one checkout flow.
type Checkout struct {
	Step        Step                 `json:"step"`
	Form        ContactForm          `json:"form"`
	FieldErrors map[string]string    `json:"fieldErrors,omitempty"`
	Notice      string               `json:"notice,omitempty"`
	Error       string               `json:"error,omitempty"`
	Method      domain.PaymentMethod `json:"method,omitempty"`
	OrderID     string               `json:"orderId,omitempty"`
}

func NewCheckout() *Checkout {
	return &Checkout{Step: StepIdle, Form: ContactForm{Country: "South Africa"}}
}

// Outcome tells the caller where the flow went and where to send the user next.
type Outcome struct {
	Step          Step          `json:"step"`
	RedirectURL   string        `json:"redirectUrl,omitempty"`
	Navigate      string        `json:"navigate,omitempty"`
	NavigateAfter time.Duration `json:"navigateAfter,omitempty"`
	Order         *domain.Order `json:"order,omitempty"`
	Message       string        `json:"message,omitempty"`
}

type CheckoutUC struct {
	Gateway       domain.PaymentGateway
	Store         domain.StateStore
	Catalog       domain.CatalogRepo
	Guard         *ReferenceGuard
	Currency      string
	CallbackURL   string
	OfflineDelay  time.Duration
	NavigateDelay time.Duration
	Now           func() time.Time
}

func (uc *CheckoutUC) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

func (uc *CheckoutUC) guard() *ReferenceGuard {
	if uc.Guard == nil {
		uc.Guard = NewReferenceGuard()
	}
	return uc.Guard
}

// Begin enters the Information step once the cart passes the role minimum.
func (uc *CheckoutUC) Begin(co *Checkout, sess *Session) error {
	switch co.Step {
	case StepIdle, StepGatewayRedirect, StepComplete, StepSuccess, StepFailed:
	default:
		return nil
	}
	g := sess.CheckoutGate()
	if g.Quantity == 0 {
		return domain.ErrEmptyCart
	}
	if !g.Allowed {
		return fmt.Errorf("%w: %d more units needed", domain.ErrBelowMinimum, g.Missing)
	}
	co.Step = StepInformation
	co.FieldErrors = nil
	co.Notice = ""
	co.Error = ""
	co.OrderID = ""
	return nil
}

// Continue advances Information -> Review (after validation) and Review -> Payment.
func (uc *CheckoutUC) Continue(co *Checkout, form *ContactForm) error {
	switch co.Step {
	case StepInformation:
		if form != nil {
			co.Form = *form
		}
		if err := ValidateContact(co.Form); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				co.FieldErrors = ve.Fields
			}
			co.Notice = "Please correct the highlighted fields."
			return err
		}
		co.FieldErrors = nil
		co.Notice = ""
		co.Step = StepReview
		return nil
	case StepReview:
		co.Step = StepPayment
		return nil
	}
	return domain.ErrInvalidStep
}

func (uc *CheckoutUC) Back(co *Checkout) error {
	switch co.Step {
	case StepReview:
		co.Step = StepInformation
	case StepPayment:
		co.Step = StepReview
	default:
		return domain.ErrInvalidStep
	}
	co.Error = ""
	return nil
}

// Retry returns a failed flow to the Payment step.
func (uc *CheckoutUC) Retry(co *Checkout) error {
	if co.Step != StepFailed {
		return domain.ErrInvalidStep
	}
	co.Step = StepPayment
	co.Error = ""
	return nil
}

func metadataFor(items []domain.CartItem, t pricing.Totals) *domain.PaymentMetadata {
	md := &domain.PaymentMetadata{Subtotal: &t.Subtotal, Shipping: &t.Shipping, Total: &t.Total}
	for _, it := range items {
		qty := it.Quantity
		p := it.Product
		md.Items = append(md.Items, domain.MetadataItem{
			ID:              it.ID,
			ProductID:       it.ProductID,
			Product:         &p,
			Qty:             &qty,
			SelectedModules: it.SelectedModules,
		})
	}
	return md
}

// Submit pays for the cart through the chosen method. Gateway errors leave the
// flow on Payment so the user can try again.
func (uc *CheckoutUC) Submit(ctx context.Context, co *Checkout, sess *Session, method domain.PaymentMethod) (Outcome, error) {
	if co.Step != StepPayment {
		return Outcome{Step: co.Step}, domain.ErrInvalidStep
	}
	items := sess.Cart()
	if len(items) == 0 {
		return Outcome{Step: co.Step}, domain.ErrEmptyCart
	}
	totals := sess.CartTotals()
	co.Method = method
	co.Error = ""

	switch method {
	case domain.PaymentGatewayMethod:
		return uc.submitGateway(ctx, co, items, totals)
	case domain.PaymentOffline:
		return uc.submitOffline(ctx, co, sess, items, totals)
	}
	return Outcome{Step: co.Step}, fmt.Errorf("unknown payment method %q", method)
}

func (uc *CheckoutUC) submitGateway(ctx context.Context, co *Checkout, items []domain.CartItem, totals pricing.Totals) (Outcome, error) {
	req := domain.InitializeRequest{
		Email:       strings.TrimSpace(co.Form.Email),
		Amount:      pricing.MinorUnits(totals.Total),
		Currency:    uc.Currency,
		CallbackURL: uc.CallbackURL,
		Metadata:    metadataFor(items, totals),
	}
	res, err := uc.Gateway.Initialize(ctx, req)
	if err != nil {
		log.Error().Err(err).Int64("amount", req.Amount).Msg("payment initialize")
		co.Error = gatewayMessage(err)
		return Outcome{Step: co.Step, Message: co.Error}, fmt.Errorf("initialize payment: %w", err)
	}
	if strings.TrimSpace(res.AuthorizationURL) == "" {
		co.Error = "Payment provider did not return a redirect URL. Please try again."
		return Outcome{Step: co.Step, Message: co.Error}, domain.ErrNoRedirectURL
	}
	co.Step = StepGatewayRedirect
	return Outcome{Step: co.Step, RedirectURL: res.AuthorizationURL}, nil
}

func (uc *CheckoutUC) submitOffline(ctx context.Context, co *Checkout, sess *Session, items []domain.CartItem, totals pricing.Totals) (Outcome, error) {
	if err := wait(ctx, uc.OfflineDelay); err != nil {
		return Outcome{Step: co.Step}, err
	}
	now := uc.now()
	order := domain.Order{
		ID:     fmt.Sprintf("ORD-%d", now.UnixMilli()),
		Date:   now,
		Items:  items,
		Total:  totals.Total,
		Status: domain.OrderStatusPending,
		Role:   sess.Role(),
	}
	if err := sess.AddOrder(ctx, order); err != nil {
		co.Error = "Order failed. Please try again."
		return Outcome{Step: co.Step, Message: co.Error}, err
	}
	if err := sess.ClearCart(ctx); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("clear cart after order")
	}
	co.Step = StepComplete
	co.OrderID = order.ID
	return Outcome{Step: co.Step, Order: &order, Navigate: OrdersPath, NavigateAfter: uc.NavigateDelay}, nil
}

// Reconcile verifies a returning payment reference and records the order. It runs
// the gateway verification at most once per session and reference; repeated
// calls return the first outcome unless it ended in an error. co may be nil when the flow did not survive the redirect.
func (uc *CheckoutUC) Reconcile(ctx context.Context, co *Checkout, sess *Session, reference string) (Outcome, error) {
	if co == nil {
		co = NewCheckout()
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return uc.fail(co, "Missing payment reference.", domain.ErrMissingReference)
	}
	first, prev := uc.guard().Claim(sess.Key, reference)
	if !first {
		co.Step = prev.Step
		return prev, nil
	}
	out, err := uc.reconcile(ctx, co, sess, reference)
	uc.guard().Finish(sess.Key, reference, out, err)
	return out, err
}

func (uc *CheckoutUC) reconcile(ctx context.Context, co *Checkout, sess *Session, reference string) (Outcome, error) {
	for _, o := range sess.Orders() {
		if o.ID == reference {
			co.Step = StepSuccess
			return Outcome{Step: co.Step, Order: &o, Navigate: OrdersPath, NavigateAfter: uc.NavigateDelay}, nil
		}
	}
	co.Step = StepVerifying
	tx, err := uc.Gateway.Verify(ctx, reference)
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("payment verify")
		return uc.fail(co, gatewayMessage(err), fmt.Errorf("verify payment: %w", err))
	}
	if tx.Status != domain.TransactionSuccess {
		msg := tx.GatewayResponse
		if msg == "" {
			msg = tx.Message
		}
		if msg == "" {
			msg = "Payment not successful"
		}
		log.Warn().Str("reference", reference).Str("status", tx.Status).Msg("payment not successful")
		return uc.fail(co, msg, nil)
	}

	items := uc.reconstruct(ctx, sess, tx.Metadata)
	if len(items) == 0 {
		return uc.fail(co, "No items found for this payment.", domain.ErrNothingToReconcile)
	}
	role := sess.Role()
	totals := pricing.ForSubtotal(pricing.Subtotal(items, role))
	if md := tx.Metadata; md != nil {
		if md.Shipping != nil {
			totals.Shipping = *md.Shipping
			totals.Total = totals.Subtotal + totals.Shipping
		}
		if md.Total != nil {
			totals.Total = *md.Total
		}
	}
	id := tx.Reference
	if id == "" {
		id = reference
	}
	order := domain.Order{
		ID:     id,
		Date:   uc.now(),
		Items:  items,
		Total:  totals.Total,
		Status: domain.OrderStatusProcessing,
		Role:   role,
	}
	if err := sess.AddOrder(ctx, order); err != nil {
		return uc.fail(co, "Could not record your order.", err)
	}
	if err := sess.ClearCart(ctx); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("clear cart after payment")
	}
	co.Step = StepSuccess
	co.OrderID = order.ID
	return Outcome{Step: co.Step, Order: &order, Navigate: OrdersPath, NavigateAfter: uc.NavigateDelay}, nil
}

// reconstruct prefers the live cart, then the persisted cart, then the items
// echoed back in the payment metadata.
func (uc *CheckoutUC) reconstruct(ctx context.Context, sess *Session, md *domain.PaymentMetadata) []domain.CartItem {
	if items := sess.Cart(); len(items) > 0 {
		return items
	}
	if uc.Store != nil {
		st, err := uc.Store.Load(ctx, sess.Key)
		if err == nil && len(st.Cart) > 0 {
			return domain.CloneItems(st.Cart)
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("session", sess.Key).Msg("read persisted cart")
		}
	}
	if md == nil {
		return nil
	}
	items := make([]domain.CartItem, 0, len(md.Items))
	for _, it := range md.Items {
		var p *domain.Product
		if it.Product != nil {
			p = it.Product
		} else if it.ProductID != "" && uc.Catalog != nil {
			if found, err := uc.Catalog.FindByID(ctx, it.ProductID); err == nil {
				p = found
			}
		}
		if p == nil {
			continue
		}
		id := it.ID
		if id == "" {
			id = uuid.NewString()
		}
		items = append(items, domain.CartItem{
			ID:            id,
			Configuration: domain.Configuration{ProductID: p.ID, SelectedModules: append([]string{}, it.SelectedModules...)},
			Product:       *p,
			Quantity:      it.Units(),
		})
	}
	return items
}

func (uc *CheckoutUC) fail(co *Checkout, msg string, err error) (Outcome, error) {
	co.Step = StepFailed
	co.Error = msg
	return Outcome{Step: StepFailed, Message: msg, Navigate: CheckoutPath}, err
}

func gatewayMessage(err error) string {
	var ge *domain.GatewayError
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return err.Error()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package httpserver

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/modularstore/internal/adapters/export/xlsx"
	"github.com/phenrril/modularstore/internal/configurator"
	"github.com/phenrril/modularstore/internal/domain"
	"github.com/phenrril/modularstore/internal/pricing"
	"github.com/phenrril/modularstore/internal/usecase"
)

const maxBody = 1 << 20

type Config struct {
	SessionKey   string
	AdminToken   string
	SecureCookie bool
	Metrics      *Metrics
}

type Server struct {
	mux      *http.ServeMux
	handler  http.Handler
	products *usecase.ProductUC
	checkout *usecase.CheckoutUC
	metrics  *Metrics
	flows    flows

	sessionKey   []byte
	adminToken   string
	secureCookie bool
}

func New(cfg Config, p *usecase.ProductUC, co *usecase.CheckoutUC) *Server {
	key := cfg.SessionKey
	if key == "" {
		log.Warn().Msg("SESSION_KEY not set, using an insecure development key")
		key = "dev-insecure"
	}
	m := cfg.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}
	s := &Server{
		mux:          http.NewServeMux(),
		products:     p,
		checkout:     co,
		metrics:      m,
		sessionKey:   []byte(key),
		adminToken:   cfg.AdminToken,
		secureCookie: cfg.SecureCookie,
	}
	s.routes()
	s.handler = Chain(s.mux,
		RequestID,
		Logging,
		Recovery,
		m.Instrument,
	)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// EvictIdle drops checkout flows unused for longer than idle, together with
// the payment references their sessions claimed. It returns the number of
// flows dropped.
func (s *Server) EvictIdle(idle time.Duration) int {
	return s.evictBefore(time.Now().Add(-idle))
}

func (s *Server) evictBefore(cutoff time.Time) int {
	ids := s.flows.evict(cutoff)
	if g := s.checkout.Guard; g != nil {
		g.Forget(ids...)
		g.Prune(cutoff)
	}
	return len(ids)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("GET /api/products", s.apiProducts)
	s.mux.HandleFunc("GET /api/products/{id}", s.apiProduct)
	s.mux.HandleFunc("POST /api/configure", s.apiConfigure)

	s.mux.HandleFunc("GET /api/roles", s.apiRoles)
	s.mux.HandleFunc("POST /api/role", s.apiSetRole)

	s.mux.HandleFunc("GET /api/cart", s.apiCart)
	s.mux.HandleFunc("POST /api/cart", s.apiCartAdd)
	s.mux.HandleFunc("POST /api/cart/remove", s.apiCartRemove)
	s.mux.HandleFunc("POST /api/cart/clear", s.apiCartClear)

	s.mux.HandleFunc("GET /api/checkout", s.apiCheckout)
	s.mux.HandleFunc("POST /api/checkout/begin", s.apiCheckoutBegin)
	s.mux.HandleFunc("POST /api/checkout/continue", s.apiCheckoutContinue)
	s.mux.HandleFunc("POST /api/checkout/back", s.apiCheckoutBack)
	s.mux.HandleFunc("POST /api/checkout/submit", s.apiCheckoutSubmit)
	s.mux.HandleFunc("POST /api/checkout/retry", s.apiCheckoutRetry)
	s.mux.HandleFunc("GET /paystack/return", s.handlePaystackReturn)

	s.mux.HandleFunc("GET /api/orders", s.apiOrders)
	s.mux.HandleFunc("GET /api/orders/export.xlsx", s.apiOrdersExport)
	s.mux.HandleFunc("GET /admin/sessions/{key}/orders.xlsx", s.handleAdminOrdersExport)
}

// withSession loads the caller's session under its flow lock and hands both to fn.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*usecase.Session, *usecase.Checkout)) {
	id := s.sessionID(w, r)
	fl := s.flows.get(id)
	fl.mu.Lock()
	defer fl.mu.Unlock()
	sess, err := usecase.LoadSession(r.Context(), s.checkout.Store, s.products.Products, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fn(sess, fl.checkout)
}

// --- catalog ---

type pricedProduct struct {
	domain.Product
	Price      float64 `json:"price"`
	PriceLabel string  `json:"priceLabel"`
}

type pricedModule struct {
	domain.Module
	Price float64 `json:"price"`
}

type moduleGroup struct {
	Category domain.Category `json:"category"`
	Label    string          `json:"label"`
	Modules  []pricedModule  `json:"modules"`
}

type configureView struct {
	ProductID    string                 `json:"productId"`
	Selected     []string               `json:"selectedModules"`
	Incompatible []string               `json:"incompatible"`
	Breakdown    configurator.Breakdown `json:"breakdown"`
	Error        string                 `json:"error,omitempty"`
}

func viewOf(c *configurator.Configurator, role domain.Role, qty int) configureView {
	v := configureView{
		ProductID:    c.Product().ID,
		Selected:     c.Selected(),
		Incompatible: []string{},
		Breakdown:    c.Breakdown(role, qty),
	}
	for _, m := range c.Product().AvailableModules {
		if c.IsIncompatible(m.ID) {
			v.Incompatible = append(v.Incompatible, m.ID)
		}
	}
	return v
}

func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		list, err := s.products.List(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := make([]pricedProduct, 0, len(list))
		for _, p := range list {
			price := pricing.PriceOf(p, sess.Role())
			out = append(out, pricedProduct{Product: p, Price: price, PriceLabel: pricing.FormatPrice(price)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": sess.Role(), "products": out})
	})
}

func (s *Server) apiProduct(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		c, err := s.products.Configure(r.Context(), r.PathValue("id"), nil, "")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		role := sess.Role()
		grouped := c.Grouped()
		groups := make([]moduleGroup, 0, len(domain.CategoryOrder))
		for _, cat := range domain.CategoryOrder {
			mods := grouped[cat]
			if len(mods) == 0 {
				continue
			}
			g := moduleGroup{Category: cat, Label: cat.Label()}
			for _, m := range mods {
				g.Modules = append(g.Modules, pricedModule{Module: m, Price: pricing.PriceOf(m, role)})
			}
			groups = append(groups, g)
		}
		p := c.Product()
		price := pricing.PriceOf(p, role)
		writeJSON(w, http.StatusOK, map[string]any{
			"product":         pricedProduct{Product: p, Price: price, PriceLabel: pricing.FormatPrice(price)},
			"groups":          groups,
			"configuration":   viewOf(c, role, sess.DefaultQuantity()),
			"defaultQuantity": sess.DefaultQuantity(),
			"roleBadge":       pricing.RoleBadgeLabel(role),
		})
	})
}

type configureRequest struct {
	ProductID       string   `json:"productId"`
	SelectedModules []string `json:"selectedModules"`
	Toggle          string   `json:"toggle"`
	Quantity        int      `json:"quantity"`
}

func (s *Server) apiConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		qty := req.Quantity
		if qty <= 0 {
			qty = sess.DefaultQuantity()
		}
		c, err := s.products.Configure(r.Context(), req.ProductID, req.SelectedModules, req.Toggle)
		if c == nil {
			s.writeError(w, r, err)
			return
		}
		v := viewOf(c, sess.Role(), qty)
		if err != nil {
			v.Error = err.Error()
			writeJSON(w, statusFor(err), v)
			return
		}
		writeJSON(w, http.StatusOK, v)
	})
}

// --- roles ---

func (s *Server) apiRoles(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		reqs := make([]domain.RoleRequirement, 0, len(domain.Roles))
		for _, role := range domain.Roles {
			reqs = append(reqs, domain.RequirementFor(role))
		}
		writeJSON(w, http.StatusOK, map[string]any{"current": sess.Role(), "roles": reqs})
	})
}

func (s *Server) apiSetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		if err := sess.SetRole(r.Context(), role); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"role":        role,
			"requirement": domain.RequirementFor(role),
			"cart":        cartViewOf(sess),
		})
	})
}

// --- cart ---

type cartLine struct {
	domain.CartItem
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

type cartView struct {
	Role          domain.Role    `json:"role"`
	Items         []cartLine     `json:"items"`
	TotalQuantity int            `json:"totalQuantity"`
	Totals        pricing.Totals `json:"totals"`
	Gate          usecase.Gate   `json:"gate"`
}

func cartViewOf(sess *usecase.Session) cartView {
	role := sess.Role()
	items := sess.Cart()
	v := cartView{
		Role:          role,
		Items:         make([]cartLine, 0, len(items)),
		TotalQuantity: sess.TotalQuantity(),
		Totals:        sess.CartTotals(),
		Gate:          sess.CheckoutGate(),
	}
	for _, it := range items {
		v.Items = append(v.Items, cartLine{
			CartItem:  it,
			UnitPrice: pricing.UnitPrice(it.Product, it.SelectedModules, role),
			LineTotal: pricing.LineItemTotal(it, role),
		})
	}
	return v
}

func (s *Server) apiCart(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		writeJSON(w, http.StatusOK, cartViewOf(sess))
	})
}

type addToCartRequest struct {
	ProductID       string   `json:"productId"`
	SelectedModules []string `json:"selectedModules"`
	Quantity        int      `json:"quantity"`
}

func (s *Server) apiCartAdd(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		cfg := domain.Configuration{ProductID: strings.TrimSpace(req.ProductID), SelectedModules: req.SelectedModules}
		item, err := sess.AddToCart(r.Context(), cfg, req.Quantity)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item, "cart": cartViewOf(sess)})
	})
}

func (s *Server) apiCartRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		if err := sess.RemoveFromCart(r.Context(), req.ID); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cartViewOf(sess))
	})
}

func (s *Server) apiCartClear(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		if err := sess.ClearCart(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cartViewOf(sess))
	})
}

// --- checkout ---

type checkoutView struct {
	Checkout *usecase.Checkout `json:"checkout"`
	Cart     cartView          `json:"cart"`
	Error    string            `json:"error,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func (s *Server) writeCheckout(w http.ResponseWriter, r *http.Request, co *usecase.Checkout, sess *usecase.Session, err error) {
	v := checkoutView{Checkout: co, Cart: cartViewOf(sess)}
	if err != nil {
		v.Error = err.Error()
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			v.Fields = ve.Fields
		}
		writeJSON(w, statusFor(err), v)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) apiCheckout(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, co *usecase.Checkout) {
		s.writeCheckout(w, r, co, sess, nil)
	})
}

func (s *Server) apiCheckoutBegin(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, co *usecase.Checkout) {
		s.writeCheckout(w, r, co, sess, s.checkout.Begin(co, sess))
	})
}

func (s *Server) apiCheckoutContinue(w http.ResponseWriter, r *http.Request) {
	var form *usecase.ContactForm
	if err := decode(r, &form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	s.withSession(w, r, func(sess *usecase.Session, co *usecase.Checkout) {
		s.writeCheckout(w, r, co, sess, s.checkout.Continue(co, form))
	})
}

func (s *Server) apiCheckoutBack(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, co *usecase.Checkout) {
		s.writeCheckout(w, r, co, sess, s.checkout.Back(co))
	})
}

func (s *Server) apiCheckoutRetry(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, co *usecase.Checkout) {
		s.writeCheckout(w, r, co, sess, s.checkout.Retry(co))
	})
}

type outcomeBody struct {
	usecase.Outcome
	Error string `json:"error,omitempty"`
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, action string, out usecase.Outcome, err error) {
	s.metrics.observeCheckout(action, out.Step)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("action", action).Str("step", string(out.Step)).Msg("checkout")
		msg := out.Message
		if msg == "" {
			msg = err.Error()
		}
		writeJSON(w, statusFor(err), outcomeBody{Outcome: out, Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, outcomeBody{Outcome: out})
}

func (s *Server) apiCheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method domain.PaymentMethod `json:"method"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if req.Method == "" {
		req.Method = domain.PaymentGatewayMethod
	}
	s.withSession(w, r, func(sess *usecase.Session, co *usecase.Checkout) {
		out, err := s.checkout.Submit(r.Context(), co, sess, req.Method)
		s.writeOutcome(w, r, "submit", out, err)
	})
}

func (s *Server) handlePaystackReturn(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("reference")
	if ref == "" {
		ref = r.URL.Query().Get("trxref")
	}
	s.withSession(w, r, func(sess *usecase.Session, co *usecase.Checkout) {
		out, err := s.checkout.Reconcile(r.Context(), co, sess, ref)
		s.writeOutcome(w, r, "reconcile", out, err)
	})
}

// --- orders ---

func (s *Server) apiOrders(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		writeJSON(w, http.StatusOK, map[string]any{"orders": sess.Orders()})
	})
}

func (s *Server) apiOrdersExport(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *usecase.Session, _ *usecase.Checkout) {
		writeWorkbook(w, r, "orders.xlsx", sess.Orders())
	})
}

func (s *Server) handleAdminOrdersExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	key := r.PathValue("key")
	st, err := s.checkout.Store.Load(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeWorkbook(w, r, fmt.Sprintf("orders-%s.xlsx", key), st.Orders)
}

func writeWorkbook(w http.ResponseWriter, r *http.Request, name string, orders []domain.Order) {
	var buf bytes.Buffer
	if err := xlsx.WriteOrders(&buf, orders); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("export orders")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "export failed"})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if s.adminToken != "" && strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		tok := strings.TrimSpace(auth[7:])
		if subtle.ConstantTimeCompare([]byte(tok), []byte(s.adminToken)) == 1 {
			return true
		}
	}
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	return false
}

// --- encoding ---

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func statusFor(err error) int {
	var ve *domain.ValidationError
	var ge *domain.GatewayError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, domain.ErrInvalidConfiguration),
		errors.Is(err, domain.ErrModuleNotFound),
		errors.Is(err, domain.ErrIncompatible),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrUnknownRole):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ge),
		errors.Is(err, domain.ErrGatewayNotConfigured),
		errors.Is(err, domain.ErrNoRedirectURL):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrInvalidStep),
		errors.Is(err, domain.ErrMissingReference),
		errors.Is(err, domain.ErrNothingToReconcile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	if code >= 500 {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body.Error = "internal error"
	}
	writeJSON(w, code, body)
}

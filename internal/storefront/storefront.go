// Package storefront owns the view state of one storefront client and
// dispatches user actions to the store API and the session gate.
package storefront

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"storefront/internal/analytics"
	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

// Store is the remote catalog, cart and checkout API.
type Store interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	SearchProducts(ctx context.Context, query string) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	GetProduct(ctx context.Context, id models.ID) (*models.Product, error)

	GetCart(ctx context.Context, userID string) ([]models.CartLine, error)
	AddToCart(ctx context.Context, userID string, productID models.ID, quantity int) ([]models.CartLine, error)
	UpdateCartLine(ctx context.Context, userID string, productID models.ID, quantity int) ([]models.CartLine, error)
	RemoveFromCart(ctx context.Context, userID string, productID models.ID) ([]models.CartLine, error)
	Checkout(ctx context.Context, userID string, checkoutCtx models.CheckoutContext) (*models.Order, error)
}

type Sessions interface {
	CurrentSession() *models.Session
	Subscribe(l auth.Listener) func()
	Restore(ctx context.Context) *models.Session
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.Session, error)
	SignInWithFederatedProvider(ctx context.Context) (*models.Session, error)
	SignOut(ctx context.Context)
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, password string) error
}

type Experiments interface {
	Initialize(ctx context.Context) error
	VisitorCode() string
	ActiveFlags() []string
	TrackConversion(ctx context.Context, goalID string, revenue decimal.Decimal) error
}

type Config struct {
	Store        Store
	Sessions     Sessions
	Experiments  Experiments
	Sink         analytics.Sink
	Metrics      *metrics.Metrics
	Logger       *logger.Logger
	CheckoutGoal string
}

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is the user-visible banner.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// sequence orders responses of one kind. A response is applied only when it
// was issued after the last applied one.
type sequence struct {
	issued  uint64
	applied uint64
}

func (s *sequence) next() uint64 {
	s.issued++
	return s.issued
}

func (s *sequence) accept(n uint64) bool {
	if n <= s.applied {
		return false
	}
	s.applied = n
	return true
}

// invalidate makes every in-flight response stale.
func (s *sequence) invalidate() {
	s.issued++
	s.applied = s.issued
}

type Storefront struct {
	store        Store
	sessions     Sessions
	experiments  Experiments
	sink         analytics.Sink
	metrics      *metrics.Metrics
	logger       *logger.Logger
	checkoutGoal string

	productFetches singleflight.Group
	unsubscribe    func()

	mu          sync.Mutex
	mode        modeState
	mounted     bool
	pendingCart bool
	loading     bool
	userID      string
	products    []models.Product
	categories  []string
	search      string
	category    string
	lines       []models.CartLine
	product     *models.Product
	lastViewed  models.ID
	notice      *Notice
	authError   string
	productSeq  sequence
	cartSeq     sequence
}

func New(cfg Config) *Storefront {
	sink := cfg.Sink
	if sink == nil {
		sink = analytics.Discard{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	goal := cfg.CheckoutGoal
	if goal == "" {
		goal = "checkout"
	}

	s := &Storefront{
		store:        cfg.Store,
		sessions:     cfg.Sessions,
		experiments:  cfg.Experiments,
		sink:         sink,
		metrics:      cfg.Metrics,
		logger:       log.With("component", "storefront"),
		checkoutGoal: goal,
		mode:         modeState{current: ModeBrowsing},
		loading:      true,
		products:     []models.Product{},
		categories:   []string{},
		lines:        []models.CartLine{},
	}
	s.unsubscribe = cfg.Sessions.Subscribe(s.onSession)
	return s
}

// Close detaches the storefront from the session gate.
func (s *Storefront) Close() {
	s.unsubscribe()
}

// Mount restores the session, then fetches products, categories and (when
// signed in) the cart while initializing experiments. Every failure is
// independent and leaves its piece of state at the default.
func (s *Storefront) Mount(ctx context.Context) {
	s.sessions.Restore(ctx)

	// The session listener has already recorded the restored user.
	s.mu.Lock()
	uid := s.userID
	s.pendingCart = false
	productSeq := s.productSeq.next()
	cartSeq := s.cartSeq.next()
	s.mu.Unlock()

	var g errgroup.Group

	g.Go(func() error {
		products, err := s.store.ListProducts(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.loading = false
		if err != nil {
			s.logger.Error("Error fetching products: %v", err)
			s.notice = &Notice{Kind: NoticeError, Message: "Could not load products. Please try again."}
			return nil
		}
		s.applyProductsLocked(productSeq, products)
		return nil
	})

	g.Go(func() error {
		categories, err := s.store.ListCategories(ctx)
		if err != nil {
			s.logger.Error("Error fetching categories: %v", err)
			return nil
		}
		s.mu.Lock()
		s.categories = categories
		s.mu.Unlock()
		return nil
	})

	if s.experiments != nil {
		g.Go(func() error {
			if err := s.experiments.Initialize(ctx); err != nil {
				s.logger.Warn("Error initializing experiments: %v", err)
			}
			return nil
		})
	}

	if uid != "" {
		g.Go(func() error {
			s.fetchCart(ctx, uid, cartSeq)
			return nil
		})
	}

	g.Wait()

	// A sign-in that landed while mounting still needs its cart.
	s.mu.Lock()
	s.mounted = true
	uid = s.userID
	var refetch uint64
	if s.pendingCart && uid != "" {
		refetch = s.cartSeq.next()
	}
	s.pendingCart = false
	s.mu.Unlock()

	if refetch != 0 {
		s.fetchCart(ctx, uid, refetch)
	}

	s.emit(ctx, analytics.EventPageView, analytics.PageViewPayload("/", uid, s.visitorCode()))
}

// View is an immutable snapshot of everything a presentation layer renders.
type View struct {
	Mode        Mode                  `json:"mode"`
	Loading     bool                  `json:"loading"`
	Products    []models.Product      `json:"products"`
	Categories  []string              `json:"categories"`
	Search      string                `json:"search"`
	Category    string                `json:"category"`
	Cart        []models.CartLineView `json:"cart"`
	CartCount   int                   `json:"cartCount"`
	TotalItems  int                   `json:"totalItems"`
	TotalPrice  string                `json:"totalPrice"`
	Product     *models.Product       `json:"product,omitempty"`
	Session     *models.Session       `json:"session"`
	VisitorCode string                `json:"visitorCode,omitempty"`
	Flags       []string              `json:"flags"`
	Notice      *Notice               `json:"notice,omitempty"`
	AuthError   string                `json:"authError,omitempty"`
}

func (s *Storefront) View() View {
	session := s.sessions.CurrentSession()
	flags := []string{}
	if s.experiments != nil {
		flags = s.experiments.ActiveFlags()
	}
	visitorCode := s.visitorCode()

	s.mu.Lock()
	defer s.mu.Unlock()

	views := cart.Reconcile(s.lines, s.products)
	v := View{
		Mode:        s.mode.current,
		Loading:     s.loading,
		Products:    append([]models.Product{}, s.products...),
		Categories:  append([]string{}, s.categories...),
		Search:      s.search,
		Category:    s.category,
		Cart:        views,
		CartCount:   cart.ItemCount(s.lines),
		TotalItems:  cart.TotalItems(views),
		TotalPrice:  cart.FormatPrice(cart.TotalPrice(views)),
		Session:     session,
		VisitorCode: visitorCode,
		Flags:       flags,
		AuthError:   s.authError,
	}
	if s.product != nil {
		p := *s.product
		v.Product = &p
	}
	if s.notice != nil {
		n := *s.notice
		v.Notice = &n
	}
	return v
}

func (s *Storefront) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode.current
}

func (s *Storefront) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = nil
}

func (s *Storefront) OpenCart() (Mode, error) {
	return s.transition(ActionOpenCart)
}

// CloseModal closes the cart or an auth form.
func (s *Storefront) CloseModal() (Mode, error) {
	return s.transition(ActionClose)
}

func (s *Storefront) RequestAuth() (Mode, error) {
	return s.transition(ActionRequestAuth)
}

func (s *Storefront) SwitchToRegister() (Mode, error) {
	return s.transition(ActionSwitchToRegister)
}

func (s *Storefront) SwitchToLogin() (Mode, error) {
	return s.transition(ActionSwitchToLogin)
}

func (s *Storefront) transition(a Action) (Mode, error) {
	signedIn := s.sessions.CurrentSession() != nil

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(a, signedIn)
}

func (s *Storefront) transitionLocked(a Action, signedIn bool) (Mode, error) {
	next, err := s.mode.apply(a, signedIn)
	if err != nil {
		s.logger.Debug("ignored %s in mode %s", a, s.mode.current)
		return s.mode.current, err
	}
	if s.mode.authOpen() && !next.authOpen() {
		s.authError = ""
	}
	s.mode = next
	return next.current, nil
}

func (s *Storefront) applyProductsLocked(seq uint64, products []models.Product) {
	if !s.productSeq.accept(seq) {
		s.metrics.StaleResponse("products")
		s.logger.Debug("discarded stale product list #%d", seq)
		return
	}
	s.products = products
}

func (s *Storefront) applyCartLocked(seq uint64, lines []models.CartLine) bool {
	if !s.cartSeq.accept(seq) {
		s.metrics.StaleResponse("cart")
		s.logger.Debug("discarded stale cart #%d", seq)
		return false
	}
	s.lines = lines
	return true
}

func (s *Storefront) visitorCode() string {
	if s.experiments == nil {
		return ""
	}
	return s.experiments.VisitorCode()
}

func (s *Storefront) emit(ctx context.Context, event string, payload analytics.Payload) {
	if err := s.sink.Emit(ctx, event, payload); err != nil {
		s.logger.Warn("analytics %s: %v", event, err)
	}
}

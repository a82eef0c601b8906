// Package experiment provides visitor identification, feature-flag rollout
// and conversion tracking.
package experiment

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/logger"
	"storefront/internal/models"
)

var (
	ErrNotConfigured  = errors.New("experiment: site code is not configured")
	ErrNotInitialized = errors.New("experiment: engine is not initialized")
)

type Config struct {
	SiteCode string
	// Flags is a comma separated rollout list: "new_checkout:50,banner". A bare key means 100%.
	Flags string
	// VisitorCode pins the visitor; a random one is generated when empty.
	VisitorCode string
}

type Store interface {
	SaveVisitorData(ctx context.Context, data []models.VisitorData) error
	SaveConversion(ctx context.Context, conversion *models.ExperimentConversion) error
}

type Engine struct {
	mu          sync.Mutex
	siteCode    string
	rollouts    map[string]uint64
	visitorCode string
	initialized bool
	pending     map[string][]models.VisitorData
	store       Store
	logger      *logger.Logger
}

func NewEngine(cfg Config, store Store, logger *logger.Logger) (*Engine, error) {
	rollouts, err := ParseFlags(cfg.Flags)
	if err != nil {
		return nil, err
	}

	visitorCode := cfg.VisitorCode
	if visitorCode == "" {
		visitorCode = NewVisitorCode()
	}

	return &Engine{
		siteCode:    cfg.SiteCode,
		rollouts:    rollouts,
		visitorCode: visitorCode,
		pending:     make(map[string][]models.VisitorData),
		store:       store,
		logger:      logger.With("component", "experiment"),
	}, nil
}

// NewVisitorCode returns a 16 character opaque visitor code.
func NewVisitorCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// ParseFlags parses "key:percent" pairs.
func ParseFlags(list string) (map[string]uint64, error) {
	rollouts := make(map[string]uint64)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, pct, found := strings.Cut(part, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.Errorf("experiment: flag %q has no key", part)
		}
		if !found {
			rollouts[key] = 100
			continue
		}

		n, err := strconv.ParseUint(strings.TrimSpace(pct), 10, 64)
		if err != nil || n > 100 {
			return nil, errors.Errorf("experiment: flag %q: rollout must be 0-100", part)
		}
		rollouts[key] = n
	}
	return rollouts, nil
}

// Initialize is idempotent.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if e.siteCode == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.initialized = true
	e.logger.Debug("initialized site %s for visitor %s", e.siteCode, e.visitorCode)
	return nil
}

func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

func (e *Engine) VisitorCode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visitorCode
}

// IsFlagActive is false for unknown flags and before Initialize.
func (e *Engine) IsFlagActive(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isActiveLocked(key)
}

func (e *Engine) ActiveFlags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := []string{}
	for key := range e.rollouts {
		if e.isActiveLocked(key) {
			active = append(active, key)
		}
	}
	sort.Strings(active)
	return active
}

func (e *Engine) isActiveLocked(key string) bool {
	if !e.initialized {
		return false
	}
	pct, ok := e.rollouts[key]
	if !ok {
		return false
	}
	return Bucket(e.visitorCode, key) < pct
}

// Bucket maps a visitor and flag to a stable value in [0, 100).
func Bucket(visitorCode, key string) uint64 {
	return xxhash.Sum64String(visitorCode+":"+key) % 100
}

// AddData queues custom data for visitorCode until the next Flush.
func (e *Engine) AddData(visitorCode, key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[visitorCode] = append(e.pending[visitorCode], models.VisitorData{
		SiteCode:    e.siteCode,
		VisitorCode: visitorCode,
		Key:         key,
		Value:       value,
	})
}

func (e *Engine) Flush(ctx context.Context, visitorCode string) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	data := e.pending[visitorCode]
	delete(e.pending, visitorCode)
	e.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	if err := e.store.SaveVisitorData(ctx, data); err != nil {
		e.mu.Lock()
		e.pending[visitorCode] = append(data, e.pending[visitorCode]...)
		e.mu.Unlock()
		return errors.Wrap(err, "flush visitor data")
	}
	return nil
}

// TrackConversion records goalID for the current visitor with the flags active at that moment.
func (e *Engine) TrackConversion(ctx context.Context, goalID string, revenue decimal.Decimal) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	conversion := &models.ExperimentConversion{
		SiteCode:    e.siteCode,
		VisitorCode: e.visitorCode,
		GoalID:      goalID,
		Revenue:     revenue,
	}
	e.mu.Unlock()
	conversion.ActiveFlags = e.ActiveFlags()

	if err := e.store.SaveConversion(ctx, conversion); err != nil {
		return errors.Wrapf(err, "track conversion %s", goalID)
	}
	return nil
}

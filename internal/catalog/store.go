package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/common"
)

// ErrNotFound indicates no product with the requested id exists.
var ErrNotFound = errors.New("catalog: product not found")

// Locker serialises writers across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// StoreConfig configures a Store.
type StoreConfig struct {
	KV      KV
	Key     string
	Locker  Locker
	LockTTL time.Duration
	Now     func() time.Time
	Logger  *zerolog.Logger
}

// Store keeps the product list as one JSON document under a single key. Every mutation
// loads the whole list, changes it and writes it back.
type Store struct {
	kv      KV
	key     string
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu sync.Mutex
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.KV == nil {
		return nil, errors.New("catalog: kv is required")
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		return nil, errors.New("catalog: storage key is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "catalog").Logger()
	}
	return &Store{kv: cfg.KV, key: key, locker: cfg.Locker, lockTTL: ttl, now: now, logger: logger}, nil
}

// Key returns the storage key of the catalog document.
func (s *Store) Key() string { return s.key }

// List returns every stored product. Storage failures and unreadable documents are
// logged and reported as an empty catalog. A missing document is created empty under
// the writer lock, so it never replaces a concurrent first write.
func (s *Store) List(ctx context.Context) []Product {
	products, found, err := s.read(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("catalog unavailable, serving empty list")
		return []Product{}
	}
	if !found {
		if _, err := s.Seed(ctx, []Product{}); err != nil {
			s.logger.Warn().Err(err).Msg("initialise catalog document")
		}
	}
	return products
}

// Get returns the product with the given id.
func (s *Store) Get(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, ErrNotFound
	}
	for _, p := range s.List(ctx) {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

// Create validates fields and appends a new product with a timestamp id.
func (s *Store) Create(ctx context.Context, fields ProductFields) (Product, error) {
	if errs := fields.Validate(); errs != nil {
		return Product{}, common.Validation("VALIDATION", firstMessage(errs), errs)
	}
	fields = fields.Normalize()
	var created Product
	err := s.mutate(ctx, func(products []Product) ([]Product, error) {
		created = Product{
			ID:          s.nextID(products),
			Name:        fields.Name,
			Price:       fields.Price,
			Description: fields.Description,
		}
		return append(products, created), nil
	})
	if err != nil {
		return Product{}, err
	}
	return created, nil
}

// Update applies a partial patch. Only fields present in the patch are validated.
func (s *Store) Update(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	id = strings.TrimSpace(id)
	var updated Product
	err := s.mutate(ctx, func(products []Product) ([]Product, error) {
		idx := indexOf(products, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		next := products[idx].apply(patch)
		if errs := patchErrors(next.fields().Validate(), patch); errs != nil {
			return nil, common.Validation("VALIDATION", firstMessage(errs), errs)
		}
		fields := next.fields().Normalize()
		next.Name, next.Description = fields.Name, fields.Description
		products[idx] = next
		updated = next
		return products, nil
	})
	if err != nil {
		return Product{}, err
	}
	return updated, nil
}

// Delete removes every product with the id and reports whether anything matched.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	removed := false
	err := s.mutate(ctx, func(products []Product) ([]Product, error) {
		kept := products[:0]
		for _, p := range products {
			if p.ID == id {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		if !removed {
			return nil, ErrNotFound
		}
		return kept, nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reset replaces the whole catalog document.
func (s *Store) Reset(ctx context.Context, products []Product) error {
	if products == nil {
		products = []Product{}
	}
	return s.mutate(ctx, func([]Product) ([]Product, error) {
		return append([]Product(nil), products...), nil
	})
}

// Seed writes products only when no catalog document exists yet.
func (s *Store) Seed(ctx context.Context, products []Product) (bool, error) {
	seeded := false
	err := s.withLock(ctx, func(ctx context.Context) error {
		_, ok, err := s.kv.Load(ctx, s.key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		seeded = true
		return s.save(ctx, products)
	})
	return seeded, err
}

// Ping reports whether the backing storage is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, _, err := s.kv.Load(ctx, s.key)
	return err
}

func (s *Store) mutate(ctx context.Context, fn func([]Product) ([]Product, error)) error {
	return s.withLock(ctx, func(ctx context.Context) error {
		products, _, err := s.read(ctx)
		if err != nil {
			return err
		}
		next, err := fn(products)
		if err != nil {
			return err
		}
		return s.save(ctx, next)
	})
}

func (s *Store) withLock(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, s.key+":lock", s.lockTTL, fn)
}

// read never writes; found is false when no document exists yet.
func (s *Store) read(ctx context.Context) ([]Product, bool, error) {
	data, ok, err := s.kv.Load(ctx, s.key)
	if err != nil {
		return nil, false, fmt.Errorf("load catalog: %w", err)
	}
	if !ok {
		return []Product{}, false, nil
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, true, fmt.Errorf("decode catalog: %w", err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, true, nil
}

func (s *Store) save(ctx context.Context, products []Product) error {
	if products == nil {
		products = []Product{}
	}
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := s.kv.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

// nextID uses the current time in milliseconds, stepping forward past ids already taken.
func (s *Store) nextID(products []Product) string {
	taken := make(map[string]struct{}, len(products))
	for _, p := range products {
		taken[p.ID] = struct{}{}
	}
	n := s.now().UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if _, exists := taken[id]; !exists {
			return id
		}
		n++
	}
}

func indexOf(products []Product, id string) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func patchErrors(errs common.FieldErrors, patch ProductPatch) common.FieldErrors {
	if errs == nil {
		return nil
	}
	out := common.FieldErrors{}
	if msg, ok := errs["name"]; ok && patch.Name != nil {
		out["name"] = msg
	}
	if msg, ok := errs["price"]; ok && patch.Price != nil {
		out["price"] = msg
	}
	if msg, ok := errs["description"]; ok && patch.Description != nil {
		out["description"] = msg
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstMessage(errs common.FieldErrors) string {
	for _, field := range []string{"name", "price", "description"} {
		if msg, ok := errs[field]; ok {
			return msg
		}
	}
	for _, msg := range errs {
		return msg
	}
	return ""
}

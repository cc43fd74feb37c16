package catalog

import (
	"context"
	"log/slog"

	"github.com/example/trip-booking/internal/observability"
	"github.com/example/trip-booking/internal/storage"
)

const (
	keyQuery      = "tahwisa_searchQuery"
	keyDifficulty = "tahwisa_selectedDifficulty"
	keyType       = "tahwisa_selectedType"
	keyCategory   = "tahwisa_selectedCategory"
)

// PrefsStore remembers the last-used browse filters so they survive a reload.
// Storage failures degrade to defaults and are only logged.
type PrefsStore struct {
	kv     storage.KV
	logger *slog.Logger
}

func NewPrefsStore(kv storage.KV, logger *slog.Logger) *PrefsStore {
	return &PrefsStore{kv: kv, logger: logger}
}

func (p *PrefsStore) Load(ctx context.Context) Criteria {
	c := DefaultCriteria()
	p.read(ctx, keyQuery, &c.Query)
	p.read(ctx, keyDifficulty, &c.Difficulty)
	p.read(ctx, keyType, &c.Type)
	p.read(ctx, keyCategory, &c.Category)
	return c
}

func (p *PrefsStore) Save(ctx context.Context, c Criteria) {
	p.write(ctx, keyQuery, c.Query)
	p.write(ctx, keyDifficulty, orAll(c.Difficulty))
	p.write(ctx, keyType, orAll(c.Type))
	p.write(ctx, keyCategory, orAll(c.Category))
}

// Clear resets every filter to its default.
func (p *PrefsStore) Clear(ctx context.Context) {
	p.Save(ctx, DefaultCriteria())
}

func (p *PrefsStore) read(ctx context.Context, key string, target *string) {
	v, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		observability.PersistenceErrors.WithLabelValues("prefs_read").Inc()
		p.logger.Warn("could not read filter preference", "key", key, "error", err)
		return
	}
	if ok {
		*target = v
	}
}

func (p *PrefsStore) write(ctx context.Context, key, value string) {
	if err := p.kv.Set(ctx, key, value); err != nil {
		observability.PersistenceErrors.WithLabelValues("prefs_write").Inc()
		p.logger.Warn("could not save filter preference", "key", key, "error", err)
	}
}

func orAll(v string) string {
	if isAll(v) {
		return All
	}
	return v
}

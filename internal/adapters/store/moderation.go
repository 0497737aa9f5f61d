package store

import (
	"context"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"gorm.io/gorm"
)

type IPBlocklist struct {
	db  *gorm.DB
	now func() time.Time
}

func NewIPBlocklist(db *gorm.DB) *IPBlocklist {
	return &IPBlocklist{db: db, now: time.Now}
}

// IsBlocked matches exact entries first, then entries with '*' wildcards.
// Expired entries are ignored.
func (b *IPBlocklist) IsBlocked(ctx context.Context, ip string) (bool, error) {
	var rows []IPBlacklist
	if err := b.db.WithContext(ctx).Where("status = ?", 1).Find(&rows).Error; err != nil {
		return false, err
	}
	now := b.now()
	live := func(e IPBlacklist) bool { return e.ExpireAt == nil || e.ExpireAt.After(now) }
	for _, e := range rows {
		if e.IP == ip && live(e) {
			return true, nil
		}
	}
	for _, e := range rows {
		if !strings.Contains(e.IP, "*") || !live(e) {
			continue
		}
		if ok, err := path.Match(e.IP, ip); err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}

type WordFilter struct {
	db *gorm.DB
}

func NewWordFilter(db *gorm.DB) *WordFilter {
	return &WordFilter{db: db}
}

// Filter blocks on any type 1 word and replaces the others with their
// replacement, or with one '*' per rune.
func (f *WordFilter) Filter(ctx context.Context, text string) (core.FilterResult, error) {
	var words []SensitiveWord
	if err := f.db.WithContext(ctx).Where("status = ?", 1).Find(&words).Error; err != nil {
		return core.FilterResult{}, err
	}
	out := text
	for _, w := range words {
		if w.Word == "" || !strings.Contains(text, w.Word) {
			continue
		}
		if w.Type == 1 {
			return core.FilterResult{Text: text, Blocked: true}, nil
		}
		repl := w.Replacement
		if repl == "" {
			repl = strings.Repeat("*", utf8.RuneCountInString(w.Word))
		}
		out = strings.ReplaceAll(out, w.Word, repl)
	}
	return core.FilterResult{Text: out}, nil
}

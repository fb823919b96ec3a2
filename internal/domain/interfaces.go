package domain

import (
	"context"
	"time"
)

// BookmarkListOptions — параметры запроса bookmarks/list.
type BookmarkListOptions struct {
	Limit      int
	Folder     string
	Have       string
	Highlights string
}

// ReadingTotals — сводные счётчики статей аккаунта.
type ReadingTotals struct {
	Read     int
	Unread   int
	Archived int
	Starred  int
}

// BookmarkClient выполняет подписанные запросы к Instapaper API.
type BookmarkClient interface {
	Authenticate(ctx context.Context, username, password string) (Credentials, error)
	VerifyCredentials(ctx context.Context) ([]SyncRecord, error)
	Bookmarks(ctx context.Context, opts BookmarkListOptions) ([]SyncRecord, error)
}

// AccountRepo управляет аккаунтами Instapaper.
type AccountRepo interface {
	GetOrCreateByDiaryUser(ctx context.Context, username string) (Account, error)
	SaveCredentials(ctx context.Context, accountID int64, creds Credentials) error
	ApplyAccountRecord(ctx context.Context, accountID int64, rec AccountRecord) error
	MarkSynchronized(ctx context.Context, accountID int64, at time.Time) error
}

// ArticleRepo управляет локальным зеркалом закладок.
type ArticleRepo interface {
	UpsertBookmark(ctx context.Context, accountID int64, folder string, rec BookmarkRecord) (Article, bool, error)
	SoftDeleteBookmarks(ctx context.Context, accountID int64, bookmarkIDs []int64) (int, error)
	Have(ctx context.Context, accountID int64, folder string) (string, error)
	SetMemo(ctx context.Context, articleID int64, memoID *int64) error
	ListByAccount(ctx context.Context, accountID int64) ([]Article, error)
	CountLinked(ctx context.Context, memoID int64) (int, error)
	CountUnread(ctx context.Context, accountID int64) (int, error)
	CountArchivedYTD(ctx context.Context, accountID int64, year int) (int, error)
	CountStarredYTD(ctx context.Context, accountID int64, year int) (int, error)
	Totals(ctx context.Context, accountID int64) (ReadingTotals, error)
}

// MemoRepo ищет записи дневника.
type MemoRepo interface {
	GetByDate(ctx context.Context, authorID int64, date time.Time) (Memo, bool, error)
}

// CountsRepo сохраняет счётчики чтения.
type CountsRepo interface {
	UpsertCounts(ctx context.Context, counts ArticleCounts) (ArticleCounts, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

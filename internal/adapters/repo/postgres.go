package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memoro-sync/internal/domain"
	"memoro-sync/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.AccountRepo = (*Postgres)(nil)
	_ domain.ArticleRepo = (*Postgres)(nil)
	_ domain.MemoRepo    = (*Postgres)(nil)
	_ domain.CountsRepo  = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetOrCreateByDiaryUser находит пользователя дневника по имени и
// возвращает его аккаунт Instapaper, лениво создавая запись при
// первом обращении.
func (p *Postgres) GetOrCreateByDiaryUser(ctx context.Context, username string) (domain.Account, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var userID int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT id FROM users WHERE username=$1`, username).Scan(&userID)
	metrics.ObserveNetworkRequest("postgres", "users_get_by_username", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%s не является пользователем memoro", username)
	}
	if err != nil {
		return domain.Account{}, err
	}

	start = time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO instapaper_accounts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id, user_id, account_id, username, subscription_is_active, oauth_token, oauth_token_secret, last_synchronized, created_at, updated_at
`, userID)
	account, err := scanAccount(row)
	metrics.ObserveNetworkRequest("postgres", "accounts_get_or_create", "instapaper_accounts", start, err)
	return account, err
}

// SaveCredentials сохраняет пару токенов аккаунта.
func (p *Postgres) SaveCredentials(ctx context.Context, accountID int64, creds domain.Credentials) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE instapaper_accounts
SET oauth_token=$2, oauth_token_secret=$3, updated_at=now()
WHERE id=$1
`, accountID, creds.Token, creds.TokenSecret)
	metrics.ObserveNetworkRequest("postgres", "accounts_save_credentials", "instapaper_accounts", start, err)
	return err
}

// ApplyAccountRecord обновляет метаданные аккаунта из записи user.
func (p *Postgres) ApplyAccountRecord(ctx context.Context, accountID int64, rec domain.AccountRecord) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE instapaper_accounts
SET account_id=$2, username=NULLIF($3,''), subscription_is_active=$4, updated_at=now()
WHERE id=$1
`, accountID, rec.UserID, rec.Username, rec.SubscriptionActive)
	metrics.ObserveNetworkRequest("postgres", "accounts_apply_record", "instapaper_accounts", start, err)
	return err
}

// MarkSynchronized фиксирует момент успешной синхронизации.
func (p *Postgres) MarkSynchronized(ctx context.Context, accountID int64, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE instapaper_accounts SET last_synchronized=$2, updated_at=now() WHERE id=$1
`, accountID, at)
	metrics.ObserveNetworkRequest("postgres", "accounts_mark_synchronized", "instapaper_accounts", start, err)
	return err
}

// GetByDate возвращает запись дневника автора за календарную дату.
func (p *Postgres) GetByDate(ctx context.Context, authorID int64, date time.Time) (domain.Memo, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		memo domain.Memo
		text sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, author_id, date, memo FROM memos WHERE author_id=$1 AND date=$2
`, authorID, date).Scan(&memo.ID, &memo.AuthorID, &memo.Date, &text)
	metrics.ObserveNetworkRequest("postgres", "memos_get_by_date", "memos", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Memo{}, false, nil
	}
	if err != nil {
		return domain.Memo{}, false, err
	}
	if text.Valid {
		memo.Memo = text.String
	}
	return memo, true, nil
}

// UpsertCounts создаёт или перезаписывает счётчики записи дневника.
func (p *Postgres) UpsertCounts(ctx context.Context, counts domain.ArticleCounts) (domain.ArticleCounts, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var saved domain.ArticleCounts
	var read, unread, archived, starred sql.NullInt64
	err := p.pool.QueryRow(ctx, `
INSERT INTO article_counts (memo_id, read, unread, archived, starred)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (memo_id) DO UPDATE
SET read=EXCLUDED.read, unread=EXCLUDED.unread, archived=EXCLUDED.archived, starred=EXCLUDED.starred
RETURNING id, memo_id, read, unread, archived, starred
`, counts.MemoID, intArg(counts.Read), intArg(counts.Unread), intArg(counts.Archived), intArg(counts.Starred)).
		Scan(&saved.ID, &saved.MemoID, &read, &unread, &archived, &starred)
	metrics.ObserveNetworkRequest("postgres", "article_counts_upsert", "article_counts", start, err)
	if err != nil {
		return domain.ArticleCounts{}, err
	}
	saved.Read = intPtr(read)
	saved.Unread = intPtr(unread)
	saved.Archived = intPtr(archived)
	saved.Starred = intPtr(starred)
	return saved, nil
}

type accountRow interface {
	Scan(dest ...any) error
}

func scanAccount(row accountRow) (domain.Account, error) {
	var (
		account      domain.Account
		instapaperID sql.NullInt64
		username     sql.NullString
		subscription sql.NullBool
		token        sql.NullString
		tokenSecret  sql.NullString
		synchronized sql.NullTime
	)
	err := row.Scan(
		&account.ID, &account.UserID, &instapaperID, &username, &subscription,
		&token, &tokenSecret, &synchronized, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	if instapaperID.Valid {
		id := instapaperID.Int64
		account.InstapaperID = &id
	}
	if username.Valid {
		account.Username = username.String
	}
	if subscription.Valid {
		active := subscription.Bool
		account.SubscriptionActive = &active
	}
	if token.Valid {
		account.Credentials.Token = token.String
	}
	if tokenSecret.Valid {
		account.Credentials.TokenSecret = tokenSecret.String
	}
	if synchronized.Valid {
		ts := synchronized.Time
		account.LastSynchronized = &ts
	}
	return account, nil
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

package repo

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"memoro-sync/internal/domain"
	"memoro-sync/internal/infra/metrics"
)

const articleColumns = `id, bookmark_id, account_id, memo_id, url, private_source, title, description, hash, progress, progress_timestamp, time, starred, folder, deleted, created_at, updated_at`

// UpsertBookmark создаёт или целиком перезаписывает статью по записи
// закладки. Флаг deleted принудительно сбрасывается: закладка из живого
// ответа API по определению не удалена.
func (p *Postgres) UpsertBookmark(ctx context.Context, accountID int64, folder string, rec domain.BookmarkRecord) (domain.Article, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO web_articles (bookmark_id, account_id, folder, url, private_source, title, description, hash, progress, progress_timestamp, time, starred, deleted)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),$9,$10,$11,$12,false)
ON CONFLICT (bookmark_id) DO UPDATE
SET account_id=EXCLUDED.account_id,
    folder=EXCLUDED.folder,
    url=EXCLUDED.url,
    private_source=EXCLUDED.private_source,
    title=EXCLUDED.title,
    description=EXCLUDED.description,
    hash=EXCLUDED.hash,
    progress=EXCLUDED.progress,
    progress_timestamp=EXCLUDED.progress_timestamp,
    time=EXCLUDED.time,
    starred=EXCLUDED.starred,
    deleted=false,
    updated_at=now()
RETURNING `+articleColumns+`, (xmax = 0) AS inserted
`, rec.BookmarkID, accountID, folder, rec.URL, rec.PrivateSource, rec.Title,
		rec.Description, rec.Hash, rec.Progress, rec.ProgressTimestamp, rec.Time, rec.Starred)

	var created bool
	article, err := scanArticle(row, &created)
	metrics.ObserveNetworkRequest("postgres", "web_articles_upsert", "web_articles", start, err)
	if err != nil {
		return domain.Article{}, false, err
	}
	return article, created, nil
}

// SoftDeleteBookmarks помечает удалёнными ещё не удалённые статьи из
// списка и возвращает количество затронутых.
func (p *Postgres) SoftDeleteBookmarks(ctx context.Context, accountID int64, bookmarkIDs []int64) (int, error) {
	if len(bookmarkIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE web_articles SET deleted=true, updated_at=now()
WHERE account_id=$1 AND bookmark_id = ANY($2) AND deleted=false
`, accountID, bookmarkIDs)
	metrics.ObserveNetworkRequest("postgres", "web_articles_soft_delete", "web_articles", start, err)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Have собирает параметр have метода bookmarks/list: пары
// "bookmark_id:hash" через запятую по активным статьям папки.
func (p *Postgres) Have(ctx context.Context, accountID int64, folder string) (string, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT bookmark_id, COALESCE(hash, '')
FROM web_articles
WHERE account_id=$1 AND folder=$2 AND deleted=false
ORDER BY progress_timestamp DESC, bookmark_id
`, accountID, folder)
	metrics.ObserveNetworkRequest("postgres", "web_articles_have", "web_articles", start, err)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var b strings.Builder
	first := true
	for rows.Next() {
		var (
			bookmarkID int64
			hash       string
		)
		if err := rows.Scan(&bookmarkID, &hash); err != nil {
			return "", err
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.FormatInt(bookmarkID, 10))
		b.WriteByte(':')
		b.WriteString(hash)
	}
	return b.String(), rows.Err()
}

// SetMemo привязывает статью к записи дневника либо снимает привязку.
func (p *Postgres) SetMemo(ctx context.Context, articleID int64, memoID *int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var arg any
	if memoID != nil {
		arg = *memoID
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE web_articles SET memo_id=$2, updated_at=now() WHERE id=$1
`, articleID, arg)
	metrics.ObserveNetworkRequest("postgres", "web_articles_set_memo", "web_articles", start, err)
	return err
}

// ListByAccount возвращает активные статьи аккаунта, свежие по
// прогрессу чтения первыми.
func (p *Postgres) ListByAccount(ctx context.Context, accountID int64) ([]domain.Article, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+articleColumns+`
FROM web_articles
WHERE account_id=$1 AND deleted=false
ORDER BY progress_timestamp DESC, bookmark_id
`, accountID)
	metrics.ObserveNetworkRequest("postgres", "web_articles_list_by_account", "web_articles", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows, nil)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// CountLinked считает статьи, привязанные к записи дневника.
func (p *Postgres) CountLinked(ctx context.Context, memoID int64) (int, error) {
	return p.countArticles(ctx, "web_articles_count_linked",
		`SELECT COUNT(*) FROM web_articles WHERE memo_id=$1`, memoID)
}

// CountUnread считает активные непрочитанные статьи без привязки.
func (p *Postgres) CountUnread(ctx context.Context, accountID int64) (int, error) {
	return p.countArticles(ctx, "web_articles_count_unread",
		`SELECT COUNT(*) FROM web_articles WHERE account_id=$1 AND deleted=false AND folder=$2 AND memo_id IS NULL`,
		accountID, domain.FolderUnread)
}

// CountArchivedYTD считает архивные статьи за календарный год.
func (p *Postgres) CountArchivedYTD(ctx context.Context, accountID int64, year int) (int, error) {
	return p.countArticles(ctx, "web_articles_count_archived_ytd",
		`SELECT COUNT(*) FROM web_articles WHERE account_id=$1 AND deleted=false AND folder=$2 AND EXTRACT(YEAR FROM time)=$3`,
		accountID, domain.FolderArchive, year)
}

// CountStarredYTD считает отмеченные звёздочкой статьи за год.
func (p *Postgres) CountStarredYTD(ctx context.Context, accountID int64, year int) (int, error) {
	return p.countArticles(ctx, "web_articles_count_starred_ytd",
		`SELECT COUNT(*) FROM web_articles WHERE account_id=$1 AND deleted=false AND starred=true AND EXTRACT(YEAR FROM time)=$2`,
		accountID, year)
}

// Totals возвращает сводные счётчики активных статей аккаунта.
func (p *Postgres) Totals(ctx context.Context, accountID int64) (domain.ReadingTotals, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var totals domain.ReadingTotals
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COUNT(*) FILTER (WHERE memo_id IS NOT NULL),
       COUNT(*) FILTER (WHERE folder=$2 AND memo_id IS NULL),
       COUNT(*) FILTER (WHERE folder=$3),
       COUNT(*) FILTER (WHERE starred)
FROM web_articles
WHERE account_id=$1 AND deleted=false
`, accountID, domain.FolderUnread, domain.FolderArchive).
		Scan(&totals.Read, &totals.Unread, &totals.Archived, &totals.Starred)
	metrics.ObserveNetworkRequest("postgres", "web_articles_totals", "web_articles", start, err)
	return totals, err
}

func (p *Postgres) countArticles(ctx context.Context, op, query string, args ...any) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, query, args...).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", op, "web_articles", start, err)
	return count, err
}

type articleRow interface {
	Scan(dest ...any) error
}

func scanArticle(row articleRow, created *bool) (domain.Article, error) {
	var (
		article       domain.Article
		memoID        sql.NullInt64
		url           sql.NullString
		privateSource sql.NullString
		title         sql.NullString
		description   sql.NullString
		hash          sql.NullString
	)
	dest := []any{
		&article.ID, &article.BookmarkID, &article.AccountID, &memoID,
		&url, &privateSource, &title, &description, &hash,
		&article.Progress, &article.ProgressTimestamp, &article.Time,
		&article.Starred, &article.Folder, &article.Deleted,
		&article.CreatedAt, &article.UpdatedAt,
	}
	if created != nil {
		dest = append(dest, created)
	}
	if err := row.Scan(dest...); err != nil {
		return domain.Article{}, err
	}
	if memoID.Valid {
		id := memoID.Int64
		article.MemoID = &id
	}
	if url.Valid {
		article.URL = url.String
	}
	if privateSource.Valid {
		article.PrivateSource = privateSource.String
	}
	if title.Valid {
		article.Title = title.String
	}
	if description.Valid {
		article.Description = description.String
	}
	if hash.Valid {
		article.Hash = hash.String
	}
	return article, nil
}

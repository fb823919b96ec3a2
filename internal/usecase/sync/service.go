package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memoro-sync/internal/domain"
	"memoro-sync/internal/infra/metrics"
)

// ErrNoClient возвращается, если фабрика клиентов не задана.
var ErrNoClient = errors.New("фабрика клиентов не задана")

// ProtocolError — запись ответа Instapaper, для которой нет обработчика.
// Появление такой записи означает изменение протокола, молча пропускать её
// нельзя.
type ProtocolError struct {
	Kind domain.RecordKind
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("необработанный тип записи %q", string(e.Kind))
}

// State — фаза сессии синхронизации.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateSyncing         State = "syncing"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Папки обходятся в этом порядке. starred не запрашивается: её статьи
// уже приходят в составе unread и archive.
var syncFolders = []string{domain.FolderUnread, domain.FolderArchive}

// ClientFactory создаёт клиента Instapaper. При валидных кэшированных
// токенах клиент сразу готов к подписанным запросам, иначе требуется
// Authenticate.
type ClientFactory func(creds domain.Credentials) (domain.BookmarkClient, error)

// SessionParams — входные параметры сессии синхронизации.
type SessionParams struct {
	// DiaryUser — логин пользователя дневника, владельца аккаунта.
	DiaryUser string
	// Username и Password нужны только при полной аутентификации,
	// когда кэшированные токены отсутствуют или отозваны.
	Username string
	Password string
	// WithCounts включает пересчёт счётчиков чтения после слияния.
	WithCounts bool
}

// Result — итог сессии по всем папкам.
type Result struct {
	SessionID string
	State     State
	Created   int
	Updated   int
	Deleted   int
}

func (r *Result) add(other Result) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Deleted += other.Deleted
}

// Service синхронизирует локальное зеркало закладок с Instapaper.
type Service struct {
	accounts  domain.AccountRepo
	articles  domain.ArticleRepo
	memos     domain.MemoRepo
	counts    domain.CountsRepo
	pageLimit int
	now       func() time.Time
}

// NewService создаёт сервис синхронизации. pageLimit ограничивает размер
// страницы bookmarks/list.
func NewService(accounts domain.AccountRepo, articles domain.ArticleRepo, memos domain.MemoRepo, counts domain.CountsRepo, pageLimit int) *Service {
	return &Service{
		accounts:  accounts,
		articles:  articles,
		memos:     memos,
		counts:    counts,
		pageLimit: pageLimit,
		now:       time.Now,
	}
}

// Run выполняет полную сессию: аутентификация, слияние папок, отметка
// времени синхронизации и, по запросу, пересчёт счётчиков. По ошибке
// возвращает частичный результат с состоянием, на котором сессия
// остановилась.
func (s *Service) Run(ctx context.Context, factory ClientFactory, params SessionParams) (Result, error) {
	result := Result{SessionID: uuid.NewString(), State: StateUnauthenticated}
	start := s.now()
	defer func() {
		metrics.SyncDurationSeconds.Observe(s.now().Sub(start).Seconds())
		if result.State == StateFailed {
			metrics.SyncErrors.Inc()
		}
	}()

	if factory == nil {
		result.State = StateFailed
		return result, ErrNoClient
	}

	account, err := s.accounts.GetOrCreateByDiaryUser(ctx, params.DiaryUser)
	if err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("получение аккаунта: %w", err)
	}

	client, err := s.authenticate(ctx, &account, factory, params, &result)
	if err != nil {
		result.State = StateFailed
		return result, err
	}

	result.State = StateSyncing
	for _, folder := range syncFolders {
		folderResult, err := s.syncFolder(ctx, client, account, folder)
		result.add(folderResult)
		if err != nil {
			result.State = StateFailed
			return result, fmt.Errorf("папка %s: %w", folder, err)
		}
	}

	if err := s.accounts.MarkSynchronized(ctx, account.ID, s.now().UTC()); err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("отметка синхронизации: %w", err)
	}

	if params.WithCounts {
		if _, err := s.DailyCounts(ctx, account); err != nil {
			result.State = StateFailed
			return result, fmt.Errorf("пересчёт счётчиков: %w", err)
		}
	}

	result.State = StateDone
	return result, nil
}

// authenticate получает рабочего клиента: сперва пробует кэшированные
// токены, по структурной ошибке провайдера считает их отозванными и
// проходит полный обмен логина и пароля.
func (s *Service) authenticate(ctx context.Context, account *domain.Account, factory ClientFactory, params SessionParams, result *Result) (domain.BookmarkClient, error) {
	if account.HasCachedCredentials() {
		client, err := factory(account.Credentials)
		if err != nil {
			return nil, fmt.Errorf("создание клиента: %w", err)
		}
		records, err := client.VerifyCredentials(ctx)
		if err == nil {
			if err := s.applyAccountRecords(ctx, account.ID, records); err != nil {
				return nil, err
			}
			result.State = StateAuthenticated
			return client, nil
		}
		if !domain.IsRemoteAPIError(err) {
			return nil, fmt.Errorf("проверка токенов: %w", err)
		}
		// Токены отозваны на стороне Instapaper, идём на полный обмен.
	}

	result.State = StateAuthenticating
	client, err := factory(domain.Credentials{})
	if err != nil {
		return nil, fmt.Errorf("создание клиента: %w", err)
	}
	creds, err := client.Authenticate(ctx, params.Username, params.Password)
	if err != nil {
		return nil, fmt.Errorf("аутентификация: %w", err)
	}
	if err := s.accounts.SaveCredentials(ctx, account.ID, creds); err != nil {
		return nil, fmt.Errorf("сохранение токенов: %w", err)
	}
	account.Credentials = creds

	records, err := client.VerifyCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("проверка токенов: %w", err)
	}
	if err := s.applyAccountRecords(ctx, account.ID, records); err != nil {
		return nil, err
	}
	result.State = StateAuthenticated
	return client, nil
}

func (s *Service) applyAccountRecords(ctx context.Context, accountID int64, records []domain.SyncRecord) error {
	for _, rec := range records {
		if rec.Kind != domain.RecordUser || rec.User == nil {
			continue
		}
		if err := s.accounts.ApplyAccountRecord(ctx, accountID, *rec.User); err != nil {
			return fmt.Errorf("обновление аккаунта: %w", err)
		}
	}
	return nil
}

// syncFolder запрашивает страницу папки с have-дайджестом локального
// зеркала и сливает ответ.
func (s *Service) syncFolder(ctx context.Context, client domain.BookmarkClient, account domain.Account, folder string) (Result, error) {
	have, err := s.articles.Have(ctx, account.ID, folder)
	if err != nil {
		return Result{}, fmt.Errorf("have-дайджест: %w", err)
	}
	records, err := client.Bookmarks(ctx, domain.BookmarkListOptions{
		Limit:  s.pageLimit,
		Folder: folder,
		Have:   have,
	})
	if err != nil {
		return Result{}, fmt.Errorf("запрос закладок: %w", err)
	}
	result, err := s.MergePage(ctx, account, folder, records)
	metrics.ObserveFolderSync(folder, result.Created, result.Updated, result.Deleted)
	return result, err
}

// MergePage сливает страницу ответа Instapaper в локальное зеркало.
// Закладки становятся полной перезаписью локальной строки, записи meta
// мягко удаляют перечисленные закладки, записи user обновляют аккаунт.
// Первая необработанная запись прерывает слияние.
func (s *Service) MergePage(ctx context.Context, account domain.Account, folder string, records []domain.SyncRecord) (Result, error) {
	var result Result
	for _, rec := range records {
		switch rec.Kind {
		case domain.RecordBookmark:
			if rec.Bookmark == nil {
				return result, &ProtocolError{Kind: rec.Kind}
			}
			article, created, err := s.articles.UpsertBookmark(ctx, account.ID, folder, *rec.Bookmark)
			if err != nil {
				return result, fmt.Errorf("сохранение закладки %d: %w", rec.Bookmark.BookmarkID, err)
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			// Привязка только для прочитанных: провайдер сбрасывает
			// progress в 0.0 у дочитанных статей, и запись из папки
			// unread не должна снимать живую привязку. Снятием
			// устаревших привязок занимается пакетный пересмотр.
			if article.Read() {
				if _, err := s.associate(ctx, account, article); err != nil {
					return result, fmt.Errorf("привязка закладки %d: %w", article.BookmarkID, err)
				}
			}
		case domain.RecordUser:
			if rec.User == nil {
				return result, &ProtocolError{Kind: rec.Kind}
			}
			if err := s.accounts.ApplyAccountRecord(ctx, account.ID, *rec.User); err != nil {
				return result, fmt.Errorf("обновление аккаунта: %w", err)
			}
		case domain.RecordMeta:
			if rec.Meta == nil || len(rec.Meta.DeleteIDs) == 0 {
				continue
			}
			deleted, err := s.articles.SoftDeleteBookmarks(ctx, account.ID, rec.Meta.DeleteIDs)
			if err != nil {
				return result, fmt.Errorf("удаление закладок: %w", err)
			}
			result.Deleted += deleted
		default:
			return result, &ProtocolError{Kind: rec.Kind}
		}
	}
	return result, nil
}

// Totals возвращает сводные счётчики статей пользователя.
func (s *Service) Totals(ctx context.Context, diaryUser string) (domain.ReadingTotals, error) {
	account, err := s.accounts.GetOrCreateByDiaryUser(ctx, diaryUser)
	if err != nil {
		return domain.ReadingTotals{}, fmt.Errorf("получение аккаунта: %w", err)
	}
	return s.articles.Totals(ctx, account.ID)
}

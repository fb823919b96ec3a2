package instapaper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"memoro-sync/internal/domain"
	"memoro-sync/internal/infra/metrics"
)

// DefaultEndpoint — базовый адрес Instapaper Full API.
const DefaultEndpoint = "https://www.instapaper.com/api/1/"

const userAgent = "Memoro Instapaper API Client (Go)"

// Пределы параметра limit метода bookmarks/list.
const (
	minListLimit     = 1
	maxListLimit     = 500
	defaultListLimit = 25
)

// Config — настройки клиента Instapaper.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	BaseURL        string
	Timeout        time.Duration
}

// Client выполняет подписанные OAuth1 (HMAC-SHA1) запросы к Instapaper.
// Кроме пары токенов текущей сессии никакого состояния не хранит.
type Client struct {
	cfg     Config
	oauth   *oauth1.Config
	base    *url.URL
	session *http.Client
	creds   domain.Credentials
}

var _ domain.BookmarkClient = (*Client)(nil)

// NewClient создаёт неаутентифицированный клиент.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, &APIError{Code: codeConsumerRequired, Message: "требуются consumer id и secret"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("разбор базового адреса: %w", err)
	}
	return &Client{
		cfg:   cfg,
		oauth: oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret),
		base:  base,
	}, nil
}

// NewClientWithCredentials создаёт клиент с кэшированной парой токенов,
// пропуская обмен логина и пароля.
func NewClientWithCredentials(cfg Config, creds domain.Credentials) (*Client, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	client.setSession(creds)
	return client, nil
}

// Credentials возвращает пару токенов текущей сессии.
func (c *Client) Credentials() domain.Credentials {
	return c.creds
}

func (c *Client) setSession(creds domain.Credentials) {
	session := c.oauth.Client(oauth1.NoContext, oauth1.NewToken(creds.Token, creds.TokenSecret))
	session.Timeout = c.cfg.Timeout
	c.session = session
	c.creds = creds
}

func (c *Client) endpoint(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	return c.base.ResolveReference(ref).String()
}

// Authenticate обменивает логин и пароль на долгоживущую пару токенов
// по схеме xAuth и открывает подписанную сессию.
func (c *Client) Authenticate(ctx context.Context, username, password string) (domain.Credentials, error) {
	form := url.Values{}
	form.Set("x_auth_username", username)
	form.Set("x_auth_password", password)
	form.Set("x_auth_mode", "client_auth")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("oauth/access_token"), strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("сборка запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	// Запрос подписывается одним consumer-ключом, токенов ещё нет.
	exchange := c.oauth.Client(oauth1.NoContext, oauth1.NewToken("", ""))
	exchange.Timeout = c.cfg.Timeout

	start := time.Now()
	resp, err := exchange.Do(req)
	metrics.ObserveNetworkRequest("instapaper", "access_token", "oauth", start, err)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("обмен токенов: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("чтение ответа: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Credentials{}, &AuthenticationError{Status: resp.StatusCode, Reason: truncateBody(body)}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return domain.Credentials{}, &AuthenticationError{Status: resp.StatusCode, Reason: "неразборное тело ответа"}
	}
	creds := domain.Credentials{
		Token:       values.Get("oauth_token"),
		TokenSecret: values.Get("oauth_token_secret"),
	}
	if !creds.Valid() {
		return domain.Credentials{}, &AuthenticationError{Status: resp.StatusCode, Reason: "в ответе нет пары токенов"}
	}

	c.setSession(creds)
	return creds, nil
}

// VerifyCredentials подтверждает действительность пары токенов и
// возвращает записи с метаданными аккаунта.
func (c *Client) VerifyCredentials(ctx context.Context) ([]domain.SyncRecord, error) {
	return c.post(ctx, "verify_credentials", "account", "account/verify_credentials", nil)
}

// Bookmarks возвращает до opts.Limit записей указанной папки. Параметр
// have сокращает объём ответа, но для корректности не обязателен.
func (c *Client) Bookmarks(ctx context.Context, opts domain.BookmarkListOptions) ([]domain.SyncRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit < minListLimit {
		limit = minListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	folder := opts.Folder
	if folder == "" {
		folder = domain.FolderUnread
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("folder_id", folder)
	params.Set("have", opts.Have)
	params.Set("highlights", opts.Highlights)
	return c.post(ctx, "bookmarks_list", "bookmarks", "bookmarks/list", params)
}

// UpdateReadProgress сохраняет прогресс чтения одной статьи.
func (c *Client) UpdateReadProgress(ctx context.Context, bookmarkID int64, progress float64, timestamp time.Time) ([]domain.SyncRecord, error) {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	params := url.Values{}
	params.Set("bookmark_id", strconv.FormatInt(bookmarkID, 10))
	params.Set("progress", strconv.FormatFloat(progress, 'f', -1, 64))
	params.Set("progress_timestamp", strconv.FormatInt(timestamp.Unix(), 10))
	return c.post(ctx, "update_read_progress", "bookmarks", "bookmarks/update_read_progress", params)
}

// AddOptions — параметры добавления закладки.
type AddOptions struct {
	URL                 string
	Title               string
	Description         string
	FolderID            string
	Content             string
	IsPrivateFromSource string
	// KeepRedirects отключает синхронное разрешение редиректов на
	// стороне Instapaper (resolve_final_url=0).
	KeepRedirects bool
}

// Add добавляет новую непрочитанную закладку.
func (c *Client) Add(ctx context.Context, opts AddOptions) ([]domain.SyncRecord, error) {
	params := url.Values{}
	params.Set("url", opts.URL)
	if opts.Title != "" {
		params.Set("title", opts.Title)
	}
	if opts.Description != "" {
		params.Set("description", opts.Description)
	}
	if opts.FolderID != "" {
		params.Set("folder_id", opts.FolderID)
	}
	if opts.KeepRedirects {
		params.Set("resolve_final_url", "0")
	} else {
		params.Set("resolve_final_url", "1")
	}
	if opts.Content != "" {
		params.Set("content", opts.Content)
	}
	if opts.IsPrivateFromSource != "" {
		params.Set("is_private_from_source", opts.IsPrivateFromSource)
	}
	return c.post(ctx, "bookmarks_add", "bookmarks", "bookmarks/add", params)
}

// Delete безвозвратно удаляет закладку на сервере. Это не архивация.
func (c *Client) Delete(ctx context.Context, bookmarkID int64) ([]domain.SyncRecord, error) {
	return c.bookmarkAction(ctx, "bookmarks_delete", "bookmarks/delete", bookmarkID)
}

// Star отмечает закладку звёздочкой.
func (c *Client) Star(ctx context.Context, bookmarkID int64) ([]domain.SyncRecord, error) {
	return c.bookmarkAction(ctx, "bookmarks_star", "bookmarks/star", bookmarkID)
}

// Unstar снимает звёздочку.
func (c *Client) Unstar(ctx context.Context, bookmarkID int64) ([]domain.SyncRecord, error) {
	return c.bookmarkAction(ctx, "bookmarks_unstar", "bookmarks/unstar", bookmarkID)
}

// Archive перемещает закладку в архив.
func (c *Client) Archive(ctx context.Context, bookmarkID int64) ([]domain.SyncRecord, error) {
	return c.bookmarkAction(ctx, "bookmarks_archive", "bookmarks/archive", bookmarkID)
}

// Unarchive возвращает закладку в начало папки unread.
func (c *Client) Unarchive(ctx context.Context, bookmarkID int64) ([]domain.SyncRecord, error) {
	return c.bookmarkAction(ctx, "bookmarks_unarchive", "bookmarks/unarchive", bookmarkID)
}

// Move переносит закладку в пользовательскую папку.
func (c *Client) Move(ctx context.Context, bookmarkID int64, folderID string) ([]domain.SyncRecord, error) {
	params := url.Values{}
	params.Set("bookmark_id", strconv.FormatInt(bookmarkID, 10))
	params.Set("folder_id", folderID)
	return c.post(ctx, "bookmarks_move", "bookmarks", "bookmarks/move", params)
}

// GetText возвращает обработанный HTML статьи. В отличие от остальных
// методов успешный ответ приходит как text/html, а не JSON.
func (c *Client) GetText(ctx context.Context, bookmarkID int64) (string, error) {
	if c.session == nil {
		return "", &APIError{Code: codeNotAuthenticated, Message: "клиент не аутентифицирован"}
	}

	form := url.Values{}
	form.Set("bookmark_id", strconv.FormatInt(bookmarkID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("bookmarks/get_text"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("сборка запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.session.Do(req)
	metrics.ObserveNetworkRequest("instapaper", "get_text", "bookmarks", start, err)
	if err != nil {
		return "", fmt.Errorf("отправка запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("чтение ответа: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return string(body), nil
	}

	if _, derr := decodeRecords(body); derr != nil {
		var apiErr *APIError
		if errors.As(derr, &apiErr) {
			return "", apiErr
		}
	}
	return "", &TransportError{Status: resp.StatusCode, Body: body}
}

// Folders возвращает пользовательские папки аккаунта.
func (c *Client) Folders(ctx context.Context) ([]domain.SyncRecord, error) {
	return c.post(ctx, "folders_list", "folders", "folders/list", nil)
}

// AddFolder создаёт папку.
func (c *Client) AddFolder(ctx context.Context, title string) ([]domain.SyncRecord, error) {
	params := url.Values{}
	params.Set("title", title)
	return c.post(ctx, "folders_add", "folders", "folders/add", params)
}

// DeleteFolder удаляет папку, перемещая её статьи в архив.
func (c *Client) DeleteFolder(ctx context.Context, folderID string) ([]domain.SyncRecord, error) {
	params := url.Values{}
	params.Set("folder_id", folderID)
	return c.post(ctx, "folders_delete", "folders", "folders/delete", params)
}

// SetFolderOrder задаёт порядок папок. Формат order —
// пары "folder_id:position" через запятую.
func (c *Client) SetFolderOrder(ctx context.Context, order string) ([]domain.SyncRecord, error) {
	params := url.Values{}
	params.Set("order", order)
	return c.post(ctx, "folders_set_order", "folders", "folders/set_order", params)
}

// Highlights возвращает выделения закладки.
func (c *Client) Highlights(ctx context.Context, bookmarkID int64) ([]domain.SyncRecord, error) {
	path := fmt.Sprintf("/api/1.1/bookmarks/%d/highlights", bookmarkID)
	return c.post(ctx, "highlights_list", "highlights", path, nil)
}

// AddHighlight создаёт выделение в закладке.
func (c *Client) AddHighlight(ctx context.Context, bookmarkID int64, text string, position int) ([]domain.SyncRecord, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("position", strconv.Itoa(position))
	path := fmt.Sprintf("/api/1.1/bookmarks/%d/highlight", bookmarkID)
	return c.post(ctx, "highlights_add", "highlights", path, params)
}

// DeleteHighlight удаляет выделение.
func (c *Client) DeleteHighlight(ctx context.Context, highlightID int64) ([]domain.SyncRecord, error) {
	path := fmt.Sprintf("/api/1.1/highlights/%d/delete", highlightID)
	return c.post(ctx, "highlights_delete", "highlights", path, nil)
}

func (c *Client) bookmarkAction(ctx context.Context, op, path string, bookmarkID int64) ([]domain.SyncRecord, error) {
	params := url.Values{}
	params.Set("bookmark_id", strconv.FormatInt(bookmarkID, 10))
	return c.post(ctx, op, "bookmarks", path, params)
}

func (c *Client) post(ctx context.Context, op, target, path string, params url.Values) ([]domain.SyncRecord, error) {
	if c.session == nil {
		return nil, &APIError{Code: codeNotAuthenticated, Message: "клиент не аутентифицирован"}
	}

	var body io.Reader
	if len(params) > 0 {
		body = strings.NewReader(params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("сборка запроса: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.session.Do(req)
	metrics.ObserveNetworkRequest("instapaper", op, target, start, err)
	if err != nil {
		return nil, fmt.Errorf("отправка запроса: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа: %w", err)
	}

	records, derr := decodeRecords(payload)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr *APIError
		if errors.As(derr, &apiErr) {
			return nil, apiErr
		}
		return nil, &TransportError{Status: resp.StatusCode, Body: payload}
	}
	if derr != nil {
		return nil, derr
	}
	return records, nil
}

package instapaper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"memoro-sync/internal/domain"
)

func testConfig(baseURL string) Config {
	return Config{
		ConsumerKey:    "consumer-key",
		ConsumerSecret: "consumer-secret",
		BaseURL:        baseURL + "/api/1/",
	}
}

func TestNewClientRequiresConsumer(t *testing.T) {
	_, err := NewClient(Config{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидали APIError, получили %v", err)
	}
	if apiErr.Code != codeConsumerRequired {
		t.Fatalf("ожидали код %d, получили %d", codeConsumerRequired, apiErr.Code)
	}
}

func TestPostWithoutSession(t *testing.T) {
	client, err := NewClient(testConfig("https://www.instapaper.com"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_, err = client.Bookmarks(context.Background(), domain.BookmarkListOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != codeNotAuthenticated {
		t.Fatalf("ожидали код %d, получили %v", codeNotAuthenticated, err)
	}
}

func TestAuthenticate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/1/oauth/access_token" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("разбор формы: %v", err)
		}
		if r.PostForm.Get("x_auth_username") != "reader@example.com" ||
			r.PostForm.Get("x_auth_password") != "secret" ||
			r.PostForm.Get("x_auth_mode") != "client_auth" {
			t.Errorf("неожиданная форма: %v", r.PostForm)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Errorf("запрос не подписан: %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte("oauth_token=tok123&oauth_token_secret=sec456"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	creds, err := client.Authenticate(context.Background(), "reader@example.com", "secret")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if creds.Token != "tok123" || creds.TokenSecret != "sec456" {
		t.Fatalf("неожиданные токены: %+v", creds)
	}
	if client.Credentials() != creds {
		t.Fatal("клиент не запомнил пару токенов")
	}
}

func TestAuthenticateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid xAuth credentials.", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_, err = client.Authenticate(context.Background(), "reader@example.com", "wrong")
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("ожидали AuthenticationError, получили %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Fatalf("ожидали 401, получили %d", authErr.Status)
	}
}

func TestBookmarksSendsFolderAndHave(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/1/bookmarks/list" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("разбор формы: %v", err)
		}
		if r.PostForm.Get("folder_id") != "archive" {
			t.Errorf("неожиданная папка %q", r.PostForm.Get("folder_id"))
		}
		if r.PostForm.Get("limit") != "500" {
			t.Errorf("неожиданный limit %q", r.PostForm.Get("limit"))
		}
		if r.PostForm.Get("have") != "1001:aaaa,1002:bbbb" {
			t.Errorf("неожиданный have %q", r.PostForm.Get("have"))
		}
		w.Write([]byte(`[{"type":"meta","delete_ids":"1002"}]`))
	}))
	defer server.Close()

	client, err := NewClientWithCredentials(testConfig(server.URL), domain.Credentials{Token: "tok", TokenSecret: "sec"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	records, err := client.Bookmarks(context.Background(), domain.BookmarkListOptions{
		Limit:  9000,
		Folder: domain.FolderArchive,
		Have:   "1001:aaaa,1002:bbbb",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(records) != 1 || records[0].Kind != domain.RecordMeta {
		t.Fatalf("неожиданный ответ: %+v", records)
	}
}

func TestPostReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`[{"type":"error","error_code":1240,"message":"Invalid URL specified"}]`))
	}))
	defer server.Close()

	client, err := NewClientWithCredentials(testConfig(server.URL), domain.Credentials{Token: "tok", TokenSecret: "sec"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_, err = client.Add(context.Background(), AddOptions{URL: "не адрес"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидали APIError, получили %v", err)
	}
	if apiErr.Code != 1240 {
		t.Fatalf("ожидали код 1240, получили %d", apiErr.Code)
	}
	if !domain.IsRemoteAPIError(err) {
		t.Fatal("APIError должна распознаваться как структурная ошибка провайдера")
	}
}

func TestPostReturnsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClientWithCredentials(testConfig(server.URL), domain.Credentials{Token: "tok", TokenSecret: "sec"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_, err = client.VerifyCredentials(context.Background())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("ожидали TransportError, получили %v", err)
	}
	if transportErr.Status != http.StatusBadGateway {
		t.Fatalf("ожидали 502, получили %d", transportErr.Status)
	}
	if domain.IsRemoteAPIError(err) {
		t.Fatal("транспортный сбой не должен считаться ошибкой провайдера")
	}
}

func TestGetText(t *testing.T) {
	const page = "<html><body><p>Текст статьи</p></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/1/bookmarks/get_text" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer server.Close()

	client, err := NewClientWithCredentials(testConfig(server.URL), domain.Credentials{Token: "tok", TokenSecret: "sec"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	text, err := client.GetText(context.Background(), 1001)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if text != page {
		t.Fatalf("неожиданный текст: %q", text)
	}
}

func TestHighlightsUseVersionedPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/1.1/bookmarks/1001/highlights" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewClientWithCredentials(testConfig(server.URL), domain.Credentials{Token: "tok", TokenSecret: "sec"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := client.Highlights(context.Background(), 1001); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
}

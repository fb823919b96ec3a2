package domain

import (
	"testing"
	"time"
)

func TestArticleRead(t *testing.T) {
	added := time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := map[string]struct {
		article  Article
		expected bool
	}{
		"прогресс больше нуля": {
			article:  Article{Progress: 0.5, Folder: FolderUnread},
			expected: true,
		},
		"архив с поздним progress_timestamp": {
			article:  Article{Progress: 0.0, Folder: FolderArchive, Time: added, ProgressTimestamp: added.Add(time.Second)},
			expected: true,
		},
		"unread без прогресса": {
			article:  Article{Progress: 0.0, Folder: FolderUnread, Time: added, ProgressTimestamp: added.Add(time.Second)},
			expected: false,
		},
		"архив без обновления прогресса": {
			article:  Article{Progress: 0.0, Folder: FolderArchive, Time: added, ProgressTimestamp: added},
			expected: false,
		},
	}

	for name, tc := range cases {
		if got := tc.article.Read(); got != tc.expected {
			t.Fatalf("%s: ожидали %v, получили %v", name, tc.expected, got)
		}
	}
}

func TestAccountHasCachedCredentials(t *testing.T) {
	account := Account{}
	if account.HasCachedCredentials() {
		t.Fatal("пустой аккаунт не должен иметь кэшированных токенов")
	}
	account.Credentials = Credentials{Token: "token"}
	if account.HasCachedCredentials() {
		t.Fatal("пара без секрета неполная")
	}
	account.Credentials.TokenSecret = "secret"
	if !account.HasCachedCredentials() {
		t.Fatal("ожидали кэшированные токены")
	}
}

package instapaper

import "fmt"

// Коды ошибок, которые клиент выставляет сам, без ответа сервера.
const (
	codeConsumerRequired = 1038
	codeNotAuthenticated = 1039
)

// APIError — структурная ошибка Instapaper: запись type "error"
// с кодом и сообщением провайдера.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instapaper: %d: %s", e.Code, e.Message)
}

// RemoteErrorCode реализует domain.RemoteAPIError.
func (e *APIError) RemoteErrorCode() int {
	return e.Code
}

// TransportError — не-2xx ответ HTTP без разборного тела ошибки.
type TransportError struct {
	Status int
	Body   []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("instapaper: http %d: %s", e.Status, truncateBody(e.Body))
}

// AuthenticationError — неудачный обмен логина и пароля на пару токенов.
type AuthenticationError struct {
	Status int
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("instapaper: аутентификация не удалась (http %d): %s", e.Status, e.Reason)
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "…"
	}
	return string(body)
}

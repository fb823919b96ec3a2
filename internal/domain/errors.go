package domain

import "errors"

// RemoteAPIError — структурная ошибка провайдера закладок: несёт его
// код и сообщение, в отличие от транспортного сбоя без полезной
// семантики.
type RemoteAPIError interface {
	error
	RemoteErrorCode() int
}

// IsRemoteAPIError сообщает, является ли ошибка структурной ошибкой
// провайдера.
func IsRemoteAPIError(err error) bool {
	var remote RemoteAPIError
	return errors.As(err, &remote)
}

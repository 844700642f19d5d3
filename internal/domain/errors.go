package domain

import "errors"

var (
	ErrTransport        = errors.New("transport failure")
	ErrVoiceUnavailable = errors.New("voice recognition unavailable")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrSettingNotFound  = errors.New("setting not found")
	ErrFileTooLarge     = errors.New("file exceeds upload limit")
)

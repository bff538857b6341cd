package services

import "errors"

// Common service errors
var (
	ErrNotFound     = errors.New("registro no encontrado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrValidation   = errors.New("parámetros inválidos")
	ErrInvalidState = errors.New("transición de estado inválida")
	ErrConflict     = errors.New("operación duplicada o en conflicto")
)

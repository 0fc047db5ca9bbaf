package database

import "errors"

var (
	// ErrNoCapacity — в парковке нет свободных мест
	ErrNoCapacity = errors.New("no available spots in lot")

	// ErrDuplicateActiveReservation — у пользователя уже есть открытое бронирование
	ErrDuplicateActiveReservation = errors.New("user already has an active reservation")

	// ErrInvalidVehicleNumber — номер транспортного средства пустой
	ErrInvalidVehicleNumber = errors.New("vehicle number must not be empty")

	// ErrNoActiveReservation — нечего освобождать
	ErrNoActiveReservation = errors.New("no active reservation found")

	// ErrLotNotFound — парковка не сконфигурирована
	ErrLotNotFound = errors.New("lot not found")

	// ErrExportInProgress — у пользователя уже есть задача в pending/processing
	ErrExportInProgress = errors.New("export already in progress")

	// ErrJobNotFound — задача экспорта не найдена
	ErrJobNotFound = errors.New("export job not found")

	// ErrInvalidTransition — переход нарушает монотонность статусов задачи
	ErrInvalidTransition = errors.New("invalid export job transition")

	// ErrNotReady — артефакт еще не готов к скачиванию
	ErrNotReady = errors.New("export not ready")

	// ErrExpired — срок скачивания артефакта истек
	ErrExpired = errors.New("export download expired")

	// ErrUserNotFound — пользователь не найден
	ErrUserNotFound = errors.New("user not found")
)

package repository

import "errors"

// ErrNotFound: записи нет или она принадлежит другому пользователю.
// Хранилища не различают эти случаи.
var ErrNotFound = errors.New("запись не найдена")

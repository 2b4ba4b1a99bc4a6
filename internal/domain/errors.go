package domain

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound возвращается, если выпуск за дату ещё не создавался.
var ErrRecordNotFound = errors.New("выпуск не найден")

// ErrNoArticles возвращается, если ни одна лента не дала статей:
// скорее всего ленты недоступны.
var ErrNoArticles = errors.New("не удалось получить ни одной статьи")

// ErrNotEnoughArticles возвращается, если статьи есть, но их меньше
// минимума для выпуска: ленты слишком узкие.
var ErrNotEnoughArticles = errors.New("статей недостаточно для выпуска")

// ErrInvalidDate возвращается при дате не в формате YYYY-MM-DD.
var ErrInvalidDate = errors.New("некорректная дата")

// ErrFutureDate возвращается при дате в будущем.
var ErrFutureDate = errors.New("дата в будущем")

// ErrDateTooOld возвращается при дате старше окна хранения.
var ErrDateTooOld = errors.New("дата старше окна хранения")

// FetchError описывает сбой выгрузки одной ленты. Не фатален для
// выпуска: лента логируется и пропускается.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("лента %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StorageError помечает сбой хранилища: наружу уходит как общая ошибка.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("хранилище: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

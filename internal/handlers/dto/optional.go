package dto

import (
	"bytes"
	"encoding/json"
)

// Optional различает три состояния поля в теле запроса:
// ключа нет (Set=false), ключ со значением null (Null=true) и ключ со значением.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Null = true
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Present: ключ передан и не равен null. Только такие поля меняют задачу.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{Set: true, Value: value}
}

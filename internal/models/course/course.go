package course

import (
	"time"

	"github.com/google/uuid"
)

// Course принадлежит внешнему каталогу курсов, задачи только ссылаются на него
type Course struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

package handlers

import (
	"errors"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"studyTracker/internal/handlers/dto"

	"github.com/go-playground/validator/v10"
)

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == target
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// ошибки валидации называют поле так же, как в JSON
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// отсутствующее или null поле проверять нечего
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		opt, ok := field.Interface().(dto.Optional[string])
		if !ok || !opt.Present() {
			return nil
		}
		return opt.Value
	}, dto.Optional[string]{})

	return v
}

// firstViolation возвращает поле и правило первой нарушенной проверки
func firstViolation(err error) (string, string) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return fe.Field(), reason
	}
	return "", err.Error()
}

package apperror

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var initOnce sync.Once

// Init configures gin's validator once per process: errors name the json
// field, and the "notblank" tag rejects whitespace-only strings.
func Init() {
	initOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("notblank", notBlank)
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

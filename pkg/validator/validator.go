package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gemwallet/pkg/xrpkey"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once

	hexPattern = regexp.MustCompile(`^[0-9A-Fa-f]*$`)
)

// Init 注册 XRPL 相关的校验规则。gin 的 binding 引擎 (binding tag) 和
// Struct 使用的独立实例 (validate tag) 注册同一套规则
func Init() {
	once.Do(func() {
		validate = validator.New()
		register(validate)
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})
}

func register(v *validator.Validate) {
	_ = v.RegisterValidation("xrpl_address", func(fl validator.FieldLevel) bool {
		return xrpkey.IsValidAddress(fl.Field().String())
	})
	_ = v.RegisterValidation("hexstr", func(fl validator.FieldLevel) bool {
		return hexPattern.MatchString(fl.Field().String())
	})
}

// Struct 校验结构体 (使用 validate tag)
func Struct(s interface{}) error {
	Init()
	return validate.Struct(s)
}

// IsValidationError 是否为字段校验失败
func IsValidationError(err error) bool {
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			param := e.Param()

			switch e.Tag() {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
			case "min":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be at least %s", field, param))
			case "max":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be at most %s", field, param))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be one of [%s]", field, param))
			case "xrpl_address":
				errMsgs = append(errMsgs, fmt.Sprintf("%s is not a valid XRPL address", field))
			case "hexstr":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be a hex string", field))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s failed on %s", field, e.Tag()))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "invalid request parameters"
}

package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// 字段名使用 json tag
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// decimal 按数值比较 gte/lte
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	// cents 金额最多两位小数，超出时拒绝而不是四舍五入
	v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
		var d decimal.Decimal
		switch f := fl.Field(); f.Kind() {
		case reflect.Float32, reflect.Float64:
			d = decimal.NewFromFloat(f.Float())
		case reflect.String:
			parsed, err := decimal.NewFromString(f.String())
			if err != nil {
				return false
			}
			d = parsed
		default:
			return true
		}
		return d.Equal(d.Round(2))
	})

	return v
}

// toValidationError 把 validator 的错误转换为 ValidationError
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: describe(fe),
		})
	}
	return out
}

// fieldPath 去掉顶层结构体名，例如 OrderInput.items[0].quantity → items[0].quantity
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必填"
	case "gte":
		return fmt.Sprintf("不能小于 %s", fe.Param())
	case "lte":
		return fmt.Sprintf("不能大于 %s", fe.Param())
	case "ltefield":
		return fmt.Sprintf("不能大于 %s", fe.Param())
	case "len":
		return fmt.Sprintf("长度必须为 %s", fe.Param())
	case "uppercase":
		return "必须为大写"
	case "oneof":
		return fmt.Sprintf("必须是 [%s] 之一", fe.Param())
	case "cents":
		return "最多两位小数"
	case "min":
		return fmt.Sprintf("至少 %s 项", fe.Param())
	default:
		return "格式不正确"
	}
}

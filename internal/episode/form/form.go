// Package form binds and validates episode and comment submissions.
package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/castboard/castboard/internal/slugify"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FormError is the key of errors that do not belong to a single field.
const FormError = "_form"

const maxMultipartMemory = 32 << 20

// Result is the outcome of binding a request.
type Result struct {
	Submitted bool
	Errors    map[string]string
}

// Valid reports whether the form was submitted without errors.
func (r Result) Valid() bool {
	return r.Submitted && len(r.Errors) == 0
}

type normalizer interface {
	normalize()
}

var setup sync.Once

func engine() *validator.Validate {
	v, _ := binding.Validator.Engine().(*validator.Validate)
	setup.Do(func() {
		if v == nil {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("sluggable", func(fl validator.FieldLevel) bool {
			return slugify.Generate(fl.Field().String()) != ""
		})
	})
	return v
}

// Bind fills obj from a POST request body (urlencoded, multipart or JSON)
// and validates it. GET requests are reported as not submitted and leave obj untouched.
func Bind(c *gin.Context, obj any) Result {
	engine()
	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
		return Result{}
	}
	res := Result{Submitted: true, Errors: map[string]string{}}
	if err := decode(c, obj); err != nil {
		res.Errors[FormError] = "The submitted data is invalid."
		return res
	}
	if n, ok := obj.(normalizer); ok {
		n.normalize()
	}
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			res.Errors[FormError] = err.Error()
			return res
		}
		for _, fe := range verrs {
			if _, seen := res.Errors[fe.Field()]; !seen {
				res.Errors[fe.Field()] = message(fe)
			}
		}
	}
	return res
}

func decode(c *gin.Context, obj any) error {
	switch c.ContentType() {
	case binding.MIMEJSON:
		if c.Request.Body == nil {
			return errors.New("empty body")
		}
		return json.NewDecoder(c.Request.Body).Decode(obj)
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
			return err
		}
	default:
		if err := c.Request.ParseForm(); err != nil {
			return err
		}
	}
	return binding.MapFormWithTag(obj, c.Request.PostForm, "form")
}

// message renders a validation failure the way users expect to read it.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This value should not be blank."
	case "max":
		return fmt.Sprintf("This value is too long. It should have %s characters or less.", fe.Param())
	case "url":
		return "This value is not a valid URL."
	case "sluggable":
		return "This value should contain at least one letter or digit."
	}
	return "This value is not valid."
}

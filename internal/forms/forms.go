// Package forms holds the HTML forms of the site and their validation rules.
package forms

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report errors under the html input names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	// byte length, where max counts runes
	if err := v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	}); err != nil {
		panic(err)
	}
	return v
}

// Errors maps an input name to the message shown next to it.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	return fmt.Sprintf("invalid form fields: %s", strings.Join(fields, ", "))
}

type LoginForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// Password is capped at the 72 bytes bcrypt accepts.
type RegisterForm struct {
	Email    string `form:"email" validate:"required,max=250,email"`
	Password string `form:"password" validate:"required,maxbytes=72"`
	Name     string `form:"name" validate:"required,max=250"`
}

type PostForm struct {
	Title    string `form:"title" validate:"required,max=250"`
	Subtitle string `form:"subtitle" validate:"required,max=250"`
	ImgURL   string `form:"img_url" validate:"required,url,max=250"`
	Body     string `form:"body" validate:"required"`
}

type CommentForm struct {
	Body string `form:"body" validate:"required,max=500"`
}

func ParseLoginForm(r *http.Request) *LoginForm {
	return &LoginForm{
		Email:    value(r, "email"),
		Password: r.PostFormValue("password"),
	}
}

func ParseRegisterForm(r *http.Request) *RegisterForm {
	return &RegisterForm{
		Email:    value(r, "email"),
		Password: r.PostFormValue("password"),
		Name:     value(r, "name"),
	}
}

func ParsePostForm(r *http.Request) *PostForm {
	return &PostForm{
		Title:    value(r, "title"),
		Subtitle: value(r, "subtitle"),
		ImgURL:   value(r, "img_url"),
		Body:     value(r, "body"),
	}
}

func ParseCommentForm(r *http.Request) *CommentForm {
	return &CommentForm{
		Body: value(r, "body"),
	}
}

func value(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

// Validate checks form against its validate tags. It returns nil or Errors.
func Validate(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := Errors{}
	for _, fe := range validationErrors {
		errs[fe.Field()] = message(fe)
	}
	return errs
}

// FieldErrors returns the per-field messages carried by err, or an empty map.
func FieldErrors(err error) Errors {
	var errs Errors
	if errors.As(err, &errs) {
		return errs
	}
	return Errors{}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "url":
		return "Invalid URL."
	case "max":
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("Field cannot be longer than %s bytes.", fe.Param())
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}

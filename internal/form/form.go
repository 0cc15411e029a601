// Package form validates user input before it is sent to the API.
package form

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation codes.
const (
	CodeRequired  = "required"
	CodeMinLength = "min_length"
	CodeMismatch  = "mismatch"
)

// Field lengths enforced on the auth forms.
const (
	MinUsernameLength = 4
	MinPasswordLength = 6
)

// Summary messages shown when a form is rejected.
const (
	MsgInvalidForm      = "Por favor, preencha todos os campos corretamente."
	MsgPasswordMismatch = "As senhas não conferem."
)

// DefaultStatusVida is preselected on the person form.
const DefaultStatusVida = "Vivo(a)"

// ErrPasswordMismatch is matched by errors.Is on a registration whose
// passwords differ.
var ErrPasswordMismatch = errors.New(MsgPasswordMismatch)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors collects the failures of one form, in field order.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrPasswordMismatch) see through a mismatch entry.
func (e Errors) Is(target error) bool {
	if target != ErrPasswordMismatch {
		return false
	}
	for _, fe := range e {
		if fe.Code == CodeMismatch {
			return true
		}
	}
	return false
}

// Summary returns the message a page shows for the whole form.
func (e Errors) Summary() string {
	for _, fe := range e {
		if fe.Code == CodeMismatch {
			return MsgPasswordMismatch
		}
	}
	return MsgInvalidForm
}

// Field returns the messages for one field.
func (e Errors) Field(name string) []string {
	var out []string
	for _, fe := range e {
		if fe.Field == name {
			out = append(out, fe.Message)
		}
	}
	return out
}

// Err returns nil when nothing failed.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e *Errors) add(field, code, message string) {
	*e = append(*e, FieldError{Field: field, Code: code, Message: message})
}

// required reports whether value is non-blank, recording a failure if not.
func (e *Errors) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.add(field, CodeRequired, "Este campo é obrigatório.")
		return false
	}
	return true
}

func (e *Errors) minLength(field, value string, n int) {
	if utf8.RuneCountInString(value) < n {
		e.add(field, CodeMinLength, fmt.Sprintf("Deve ter pelo menos %d caracteres.", n))
	}
}

// Login checks the login form: username required, password of at least
// MinPasswordLength characters.
func Login(username, password string) error {
	var errs Errors
	errs.required("username", username)
	if errs.required("password", password) {
		errs.minLength("password", password, MinPasswordLength)
	}
	return errs.Err()
}

// Register checks the registration form. Field rules are checked first; the
// password confirmation is compared only once every field is valid.
func Register(username, password, password2 string) error {
	var errs Errors
	if errs.required("username", username) {
		errs.minLength("username", username, MinUsernameLength)
	}
	if errs.required("password", password) {
		errs.minLength("password", password, MinPasswordLength)
	}
	errs.required("password2", password2)
	if len(errs) > 0 {
		return errs
	}
	if password != password2 {
		errs.add("password2", CodeMismatch, MsgPasswordMismatch)
	}
	return errs.Err()
}

// Person checks the fields the person form requires.
func Person(nome, genero, statusVida string) error {
	var errs Errors
	errs.required("nome", nome)
	errs.required("genero", genero)
	errs.required("status_vida", statusVida)
	return errs.Err()
}

// Message returns the text a page shows for a validation error, or "" when
// err did not come from this package.
func Message(err error) string {
	var errs Errors
	if errors.As(err, &errs) {
		return errs.Summary()
	}
	return ""
}

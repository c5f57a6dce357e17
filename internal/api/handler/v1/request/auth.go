package request

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	passwordRegexPattern = `^(?=.*[A-Za-z])(?=.*\d).{8,}$`
)

var (
	passwordExp = regexp2.MustCompile(passwordRegexPattern, regexp2.None)
	whatsappExp = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

	errInvalidPassword         = errors.New("the password must be at least 8 characters and contain 1 letter and 1 number")
	errConfirmPasswordMismatch = errors.New("confirm password doesn't match the password")
)

// NormalizeWhatsApp strips formatting from a phone number and makes sure it
// carries a leading '+'.
func NormalizeWhatsApp(raw string) string {
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return ""
	}

	return "+" + sb.String()
}

type SignupRequest struct {
	WhatsApp        string `json:"whatsapp"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (req *SignupRequest) Validate() error {
	req.WhatsApp = NormalizeWhatsApp(req.WhatsApp)

	err := validation.ValidateStruct(
		req,
		validation.Field(&req.WhatsApp, validation.Required, validation.Match(whatsappExp)),
		validation.Field(&req.Name, validation.Required, validation.Length(2, 80)),
		validation.Field(&req.Password, validation.Required),
		validation.Field(&req.ConfirmPassword, validation.Required),
	)
	if err != nil {
		return err
	}

	if ok, _ := passwordExp.MatchString(req.Password); !ok {
		return errInvalidPassword
	}

	if req.Password != req.ConfirmPassword {
		return errConfirmPasswordMismatch
	}

	return nil
}

type LoginRequest struct {
	WhatsApp string `json:"whatsapp"`
	Password string `json:"password"`
}

func (req *LoginRequest) Validate() error {
	req.WhatsApp = NormalizeWhatsApp(req.WhatsApp)

	return validation.ValidateStruct(
		req,
		validation.Field(&req.WhatsApp, validation.Required, validation.Match(whatsappExp)),
		validation.Field(&req.Password, validation.Required),
	)
}

package usecase

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/FilipeAphrody/authsys/internal/domain"
)

const (
	minPasswordLength = 8
	maxEmailLength    = 255
	maxNameLength     = 100
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration returns every problem with req. req is expected to be
// normalized already.
func validateRegistration(req domain.RegisterRequest) []string {
	var details []string

	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		details = append(details, domain.MsgInvalidEmail)
	} else if len(req.Email) > maxEmailLength {
		details = append(details, domain.MsgEmailTooLong)
	}

	if req.FirstName == "" {
		details = append(details, domain.MsgFirstNameMissing)
	}
	if req.LastName == "" {
		details = append(details, domain.MsgLastNameMissing)
	}
	if utf8.RuneCountInString(req.FirstName) > maxNameLength || utf8.RuneCountInString(req.LastName) > maxNameLength {
		details = append(details, domain.MsgNameTooLong)
	}

	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		details = append(details, domain.MsgPasswordTooShort)
	}
	if req.Password != req.ConfirmPassword {
		details = append(details, domain.MsgPasswordMismatch)
	}

	return details
}

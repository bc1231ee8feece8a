package security

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/pquerna/otp/totp"
)

const (
	codeFloor = 100000
	codeSpan  = 900000
)

// GenerateTwoFactorCode draws a uniform six digit code in [100000, 999999].
func GenerateTwoFactorCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeFloor), nil
}

// TwoFactorSecret is a freshly generated authenticator secret.
type TwoFactorSecret struct {
	Secret string
	URI    string
}

// GenerateTwoFactorSecret creates a Base32 TOTP secret and its otpauth:// URI.
func GenerateTwoFactorSecret(issuer, accountName string) (*TwoFactorSecret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, err
	}
	return &TwoFactorSecret{Secret: key.Secret(), URI: key.URL()}, nil
}

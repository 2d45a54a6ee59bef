package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/XB811/index12306/internal/models"
	"github.com/XB811/index12306/internal/user"
	"github.com/XB811/index12306/internal/validation"
)

// ClaimsOutput вывод команды decode
type ClaimsOutput struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	RealName  string    `json:"realName"`
	Issuer    string    `json:"iss"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (c *Cli) runEncode(args []string) error {
	fs := newFlagSet("encode")
	userID := fs.String("user-id", "", "User id (required)")
	username := fs.String("username", "", "Username")
	realName := fs.String("real-name", "", "Real name")
	issuer := fs.String("issuer", user.DefaultIssuer, "Token issuer")
	ttl := fs.Duration("ttl", user.DefaultTTL, "Token lifetime")
	secretFile := fs.String("secret-file", "", "File containing the signing secret")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if err := validation.ValidateUserID(*userID); err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	if *ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	secret, err := c.getSecret(*secretFile)
	if err != nil {
		return err
	}

	codec := user.NewCodec(user.CodecConfig{Secret: secret, Issuer: *issuer, TTL: *ttl}, c.logger)
	token, err := codec.Encode(models.UserInfo{
		UserID:   *userID,
		Username: *username,
		RealName: *realName,
	})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	c.io.Println(token)
	return nil
}

func (c *Cli) runDecode(args []string) error {
	fs := newFlagSet("decode")
	issuer := fs.String("issuer", user.DefaultIssuer, "Token issuer")
	secretFile := fs.String("secret-file", "", "File containing the signing secret")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	// Токен с префиксом "Bearer " может прийти двумя аргументами
	token := strings.Join(fs.Args(), " ")
	if token == "" {
		var err error
		token, err = c.io.ReadInput("Token: ")
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	secret, err := c.getSecret(*secretFile)
	if err != nil {
		return err
	}

	codec := user.NewCodec(user.CodecConfig{Secret: secret, Issuer: *issuer}, c.logger)
	claims, err := codec.Parse(token)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	out := ClaimsOutput{
		UserID:   claims.UserID,
		Username: claims.Username,
		RealName: claims.RealName,
		Issuer:   claims.Issuer,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.UTC()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode claims: %w", err)
	}
	c.io.Println(string(data))
	return nil
}

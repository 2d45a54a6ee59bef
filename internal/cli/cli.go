// Package cli реализует команды утилиты jwtctl.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/XB811/index12306/internal/iocli"
	"github.com/XB811/index12306/internal/validation"
)

// SecretEnv переменная окружения с ключом подписи
const SecretEnv = "JWT_SECRET"

// ErrUnknownCommand возвращается для неизвестной команды
var ErrUnknownCommand = errors.New("unknown command")

type Cli struct {
	io     iocli.IO
	logger *slog.Logger
	getenv func(string) string
}

// New создает Cli, getenv обычно os.Getenv
func New(stdio iocli.IO, logger *slog.Logger, getenv func(string) string) *Cli {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Cli{
		io:     stdio,
		logger: logger,
		getenv: getenv,
	}
}

// Run выполняет команду
func (c *Cli) Run(command string, args []string) error {
	switch command {
	case "encode":
		return c.runEncode(args)
	case "decode":
		return c.runDecode(args)
	case "help", "-h", "--help":
		c.PrintUsage()
		return nil
	default:
		c.PrintUsage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// getSecret получает ключ подписи из различных источников с приоритетом:
// 1. Переменная окружения JWT_SECRET
// 2. Файл, указанный флагом -secret-file
// 3. Интерактивный ввод без эха
func (c *Cli) getSecret(secretFile string) ([]byte, error) {
	secret := c.getenv(SecretEnv)

	if secret == "" && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret file: %w", err)
		}
		// Убираем trailing newline/whitespace
		secret = strings.TrimSpace(string(content))
		if secret == "" {
			return nil, fmt.Errorf("secret file is empty")
		}
	}

	if secret == "" {
		var err error
		secret, err = c.io.ReadSecret("JWT secret: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read secret from stdin: %w", err)
		}
	}

	if err := validation.ValidateSecret(secret); err != nil {
		return nil, fmt.Errorf("invalid secret: %w", err)
	}

	return []byte(secret), nil
}

func (c *Cli) PrintUsage() {
	c.io.Println("jwtctl - index12306 token tool")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  jwtctl [--version] COMMAND [OPTIONS]")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  encode -user-id ID [-username NAME] [-real-name NAME]   Issue a token")
	c.io.Println("  decode [TOKEN]                                          Verify a token and print its claims")
	c.io.Println()
	c.io.Println("Common options:")
	c.io.Println("  -issuer ISSUER       Token issuer (default: index12306)")
	c.io.Println("  -ttl DURATION        Token lifetime for encode (default: 24h)")
	c.io.Println("  -secret-file PATH    File containing the signing secret")
	c.io.Println()
	c.io.Println("Secret priority (highest to lowest):")
	c.io.Println("  1. JWT_SECRET environment variable")
	c.io.Println("  2. -secret-file")
	c.io.Println("  3. Interactive prompt")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  export JWT_SECRET=$(cat ~/.index12306-secret)")
	c.io.Println("  jwtctl encode -user-id 1813274434794377216 -username '李四'")
	c.io.Println("  jwtctl decode 'Bearer eyJhbGciOiJIUzUxMiJ9...'")
}

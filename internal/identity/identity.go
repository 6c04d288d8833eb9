// Package identity resolves the owner identifier every record is scoped to.
//
// The host environment wins when it provides an identity. Otherwise a
// development identifier is generated once and persisted on disk so the
// same owner is used across runs.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/peterbourgon/diskv/v3"
)

const (
	// DefaultDir holds the persisted fallback identity.
	DefaultDir = "~/.hq"

	fallbackKey = "hq_dev_uid"
	devPrefix   = "dev_"
	devIDLength = 10
	base36      = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Host environment variables, checked in order.
var hostVars = []string{"HQ_OWNER_ID", "TELEGRAM_USER_ID"}

// ErrNoIdentity is returned when neither the host nor a fallback store can
// provide an owner.
var ErrNoIdentity = errors.New("no owner identity available")

// Resolver resolves the owner ID.
type Resolver struct {
	// Env looks up host variables. Defaults to os.Getenv.
	Env func(string) string
	// Fallback persists the generated development ID. May be nil.
	Fallback *diskv.Diskv

	logger *slog.Logger
}

// New creates a Resolver whose fallback lives under dir. An empty dir means
// DefaultDir; a leading ~ is expanded to the home directory.
func New(dir string, logger *slog.Logger) (*Resolver, error) {
	if dir == "" {
		dir = DefaultDir
	}
	base, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expanding identity dir: %w", err)
	}
	return &Resolver{
		Env: os.Getenv,
		Fallback: diskv.New(diskv.Options{
			BasePath:     base,
			CacheSizeMax: 1024,
		}),
		logger: logger,
	}, nil
}

// OwnerID returns the host-provided owner, or the persisted development ID,
// generating and storing it on first use.
func (r *Resolver) OwnerID() (string, error) {
	env := r.Env
	if env == nil {
		env = os.Getenv
	}
	for _, name := range hostVars {
		if v := strings.TrimSpace(env(name)); v != "" {
			return v, nil
		}
	}

	if r.Fallback == nil {
		return "", ErrNoIdentity
	}
	if r.Fallback.Has(fallbackKey) {
		val, err := r.Fallback.Read(fallbackKey)
		if err != nil {
			return "", fmt.Errorf("reading fallback identity: %w", err)
		}
		if id := strings.TrimSpace(string(val)); id != "" {
			return id, nil
		}
	}

	id, err := NewDevID()
	if err != nil {
		return "", err
	}
	if err := r.Fallback.Write(fallbackKey, []byte(id)); err != nil {
		return "", fmt.Errorf("persisting fallback identity: %w", err)
	}
	if r.logger != nil {
		r.logger.Info("generated development owner id", "owner_id", id, "dir", r.Fallback.BasePath)
	}
	return id, nil
}

// NewDevID returns "dev_" followed by random base36 characters.
func NewDevID() (string, error) {
	var sb strings.Builder
	sb.WriteString(devPrefix)
	limit := big.NewInt(int64(len(base36)))
	for i := 0; i < devIDLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating owner id: %w", err)
		}
		sb.WriteByte(base36[n.Int64()])
	}
	return sb.String(), nil
}

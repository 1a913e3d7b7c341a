package repository

import (
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CooldownRepository is a keyed expiring-entry store used to rate-limit
// notifications. Backing it with the database keeps the cooldown correct
// when several service instances run against the same store.
type CooldownRepository interface {
	// Claim reports whether the key was free and, in the same statement,
	// claims it for the given window.
	Claim(key string, window time.Duration) (bool, error)
}

type cooldownRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewCooldownRepository(db *sqlx.DB, logger *zap.Logger) CooldownRepository {
	return &cooldownRepository{db: db, logger: logger}
}

func (r *cooldownRepository) Claim(key string, window time.Duration) (bool, error) {
	// Insert wins when the key is new; the conflict arm wins only when the
	// previous claim has expired. Zero rows means the cooldown is active.
	query := `
		INSERT INTO notification_cooldowns (key, expires_at)
		VALUES ($1, now() + make_interval(secs => $2))
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE notification_cooldowns.expires_at < now()
	`
	res, err := r.db.Exec(query, key, window.Seconds())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

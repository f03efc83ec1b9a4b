package certificate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"veripass/pkg/platform/sentinel"
)

// PostgresRepository persists extended certificates. The certificate payload
// is stored as JSONB; the mutable flags live in their own columns so flag
// updates never rewrite the payload.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const certificateSchema = `
CREATE TABLE IF NOT EXISTS certificates (
    uvci                   TEXT PRIMARY KEY,
    holder_key             TEXT NOT NULL,
    payload                JSONB NOT NULL,
    revoked                SMALLINT NOT NULL DEFAULT 0,
    invalid                SMALLINT NOT NULL DEFAULT 0,
    expiry_alert_shown     BOOLEAN NOT NULL DEFAULT FALSE,
    reissue_initial_seen   BOOLEAN NOT NULL DEFAULT FALSE,
    reissue_new_badge_seen BOOLEAN NOT NULL DEFAULT FALSE,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS certificates_holder_key_idx ON certificates (holder_key);
`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, certificateSchema); err != nil {
		return fmt.Errorf("ensure certificates schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, cert Extended) error {
	payload, err := json.Marshal(cert.Certificate)
	if err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO certificates
			(uvci, holder_key, payload, revoked, invalid,
			 expiry_alert_shown, reissue_initial_seen, reissue_new_badge_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (uvci) DO UPDATE SET
			holder_key = EXCLUDED.holder_key,
			payload = EXCLUDED.payload,
			revoked = EXCLUDED.revoked,
			invalid = EXCLUDED.invalid,
			expiry_alert_shown = EXCLUDED.expiry_alert_shown,
			reissue_initial_seen = EXCLUDED.reissue_initial_seen,
			reissue_new_badge_seen = EXCLUDED.reissue_new_badge_seen`,
		cert.DGC.UVCI(), cert.DGC.HolderKey(), payload,
		int(cert.Revoked), int(cert.Invalid),
		cert.ExpiryAlertShown, cert.ReissueInitialSeen, cert.ReissueNewBadgeSeen,
	)
	if err != nil {
		return fmt.Errorf("save certificate: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Extended, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload, revoked, invalid,
		       expiry_alert_shown, reissue_initial_seen, reissue_new_badge_seen
		FROM certificates
		ORDER BY created_at, uvci`)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var out []Extended
	for rows.Next() {
		cert, err := scanExtended(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) FindByUVCI(ctx context.Context, uvci string) (Extended, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT payload, revoked, invalid,
		       expiry_alert_shown, reissue_initial_seen, reissue_new_badge_seen
		FROM certificates
		WHERE uvci = $1`, uvci)
	cert, err := scanExtended(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Extended{}, sentinel.ErrNotFound
	}
	return cert, err
}

func (r *PostgresRepository) SetFlags(ctx context.Context, uvci string, update FlagUpdate) error {
	assignments := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Revoked != nil {
		add("revoked", int(*update.Revoked))
	}
	if update.Invalid != nil {
		add("invalid", int(*update.Invalid))
	}
	if update.ExpiryAlertShown != nil {
		add("expiry_alert_shown", *update.ExpiryAlertShown)
	}
	if update.ReissueInitialSeen != nil {
		add("reissue_initial_seen", *update.ReissueInitialSeen)
	}
	if update.ReissueNewBadgeSeen != nil {
		add("reissue_new_badge_seen", *update.ReissueNewBadgeSeen)
	}
	if len(assignments) == 0 {
		return nil
	}
	args = append(args, uvci)

	query := fmt.Sprintf("UPDATE certificates SET %s WHERE uvci = $%d",
		strings.Join(assignments, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set certificate flags: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set certificate flags: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, uvci string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM certificates WHERE uvci = $1`, uvci)
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtended(row rowScanner) (Extended, error) {
	var (
		payload          []byte
		revoked, invalid int
		cert             Extended
	)
	if err := row.Scan(&payload, &revoked, &invalid,
		&cert.ExpiryAlertShown, &cert.ReissueInitialSeen, &cert.ReissueNewBadgeSeen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Extended{}, err
		}
		return Extended{}, fmt.Errorf("scan certificate: %w", err)
	}
	if err := json.Unmarshal(payload, &cert.Certificate); err != nil {
		return Extended{}, fmt.Errorf("unmarshal certificate payload: %w", err)
	}
	cert.Revoked = TriState(revoked)
	cert.Invalid = TriState(invalid)
	return cert, nil
}

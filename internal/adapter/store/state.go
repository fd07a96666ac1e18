package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"
)

// ErrNoState is returned when nothing was stored yet.
var ErrNoState = errors.New("no stored state")

const (
	thermostatRowID = 1

	upsertLevelSQL = `
		INSERT INTO output_state (device, level, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(device) DO UPDATE SET
			level=excluded.level,
			updated_at=excluded.updated_at
	`

	selectLevelSQL = `SELECT level FROM output_state WHERE device=?`

	upsertModeSQL = `
		INSERT INTO thermostat_state (id, mode, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode=excluded.mode,
			updated_at=excluded.updated_at
	`

	selectModeSQL = `SELECT mode FROM thermostat_state WHERE id=?`
)

// StateSQLite keeps the last published level of each output and the thermostat mode.
// It records DeviceState and ModeState samples and ignores the rest.
type StateSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db, now: time.Now}
}

func (r *StateSQLite) Record(ctx context.Context, sample domain.Sample) error {
	switch s := sample.(type) {
	case domain.DeviceState:
		return r.SaveLevel(ctx, s.Device, s.Level)
	case domain.ModeState:
		return r.SaveMode(ctx, s.Mode)
	}
	return nil
}

func (r *StateSQLite) SaveLevel(ctx context.Context, device string, level bool) error {
	_, err := r.db.ExecContext(ctx, upsertLevelSQL, device, level, r.now().UTC())
	return err
}

func (r *StateSQLite) LoadLevel(ctx context.Context, device string) (bool, error) {
	var level bool
	if err := r.db.QueryRowContext(ctx, selectLevelSQL, device).Scan(&level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNoState
		}
		return false, err
	}
	return level, nil
}

func (r *StateSQLite) SaveMode(ctx context.Context, mode domain.Mode) error {
	_, err := r.db.ExecContext(ctx, upsertModeSQL, thermostatRowID, mode.String(), r.now().UTC())
	return err
}

func (r *StateSQLite) LoadMode(ctx context.Context) (domain.Mode, error) {
	var mode string
	if err := r.db.QueryRowContext(ctx, selectModeSQL, thermostatRowID).Scan(&mode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ModeAuto, ErrNoState
		}
		return domain.ModeAuto, err
	}
	return domain.ParseMode(mode)
}

func (r *StateSQLite) Close() error {
	return r.db.Close()
}

var (
	_ port.StateStore     = (*StateSQLite)(nil)
	_ port.SampleRecorder = (*StateSQLite)(nil)
)

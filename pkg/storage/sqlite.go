package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/brightwire/knxlogic/pkg/types"
)

// SQLiteAddressStore implements AddressStore on a pure-Go sqlite database.
// The schema is the literal addresses table the external interface commits
// to: one row per bus address, value columns stored as JSON text so the
// tagged Value union round-trips without a wider column set per kind.
type SQLiteAddressStore struct {
	db *sql.DB
}

// NewSQLiteAddressStore opens (creating if absent) the address database
// under dataDir.
func NewSQLiteAddressStore(dataDir string) (*SQLiteAddressStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "addresses.sqlite")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open address database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		// non-fatal: WAL is an optimisation, not a correctness requirement.
		_ = err
	}

	schema := `CREATE TABLE IF NOT EXISTS addresses (
		key TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		dpt TEXT NOT NULL DEFAULT '',
		internal INTEGER NOT NULL DEFAULT 0,
		group_label TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		last_value TEXT NOT NULL DEFAULT '',
		last_updated TEXT NOT NULL DEFAULT '',
		initial_value TEXT
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init address schema: %w", err)
	}

	return &SQLiteAddressStore{db: db}, nil
}

func (s *SQLiteAddressStore) Close() error { return s.db.Close() }

func encodeValue(v types.Value) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeValue(s string) (types.Value, error) {
	if s == "" {
		return types.NullValue(), nil
	}
	var v types.Value
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return types.Value{}, err
	}
	return v, nil
}

func (s *SQLiteAddressStore) CreateAddress(addr *types.Address) error {
	lastValue, err := encodeValue(addr.LastValue)
	if err != nil {
		return fmt.Errorf("encode last value: %w", err)
	}

	var initial sql.NullString
	if addr.Initial != nil {
		encoded, err := encodeValue(*addr.Initial)
		if err != nil {
			return fmt.Errorf("encode initial value: %w", err)
		}
		initial = sql.NullString{String: encoded, Valid: true}
	}

	internal := 0
	if addr.Internal {
		internal = 1
	}

	_, err = s.db.Exec(
		`INSERT INTO addresses(key, name, dpt, internal, group_label, unit, last_value, last_updated, initial_value)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			name=excluded.name, dpt=excluded.dpt, internal=excluded.internal,
			group_label=excluded.group_label, unit=excluded.unit,
			last_value=excluded.last_value, last_updated=excluded.last_updated,
			initial_value=excluded.initial_value`,
		addr.Key, addr.Name, addr.DPT, internal, addr.GroupLabel, addr.Unit,
		lastValue, addr.LastUpdated.Format(time.RFC3339Nano), initial,
	)
	if err != nil {
		return fmt.Errorf("insert address %s: %w", addr.Key, err)
	}
	return nil
}

func (s *SQLiteAddressStore) UpdateAddress(addr *types.Address) error {
	return s.CreateAddress(addr)
}

func (s *SQLiteAddressStore) scanAddress(row interface {
	Scan(dest ...interface{}) error
}) (*types.Address, error) {
	var (
		addr         types.Address
		internal     int
		lastValue    string
		lastUpdated  string
		initialValue sql.NullString
	)
	if err := row.Scan(&addr.Key, &addr.Name, &addr.DPT, &internal, &addr.GroupLabel,
		&addr.Unit, &lastValue, &lastUpdated, &initialValue); err != nil {
		return nil, err
	}

	addr.Internal = internal != 0
	v, err := decodeValue(lastValue)
	if err != nil {
		return nil, fmt.Errorf("decode last value for %s: %w", addr.Key, err)
	}
	addr.LastValue = v

	if lastUpdated != "" {
		t, err := time.Parse(time.RFC3339Nano, lastUpdated)
		if err == nil {
			addr.LastUpdated = t
		}
	}

	if initialValue.Valid {
		iv, err := decodeValue(initialValue.String)
		if err != nil {
			return nil, fmt.Errorf("decode initial value for %s: %w", addr.Key, err)
		}
		addr.Initial = &iv
	}

	return &addr, nil
}

func (s *SQLiteAddressStore) GetAddress(key string) (*types.Address, error) {
	row := s.db.QueryRow(
		`SELECT key, name, dpt, internal, group_label, unit, last_value, last_updated, initial_value
		 FROM addresses WHERE key = ?`, key)
	addr, err := s.scanAddress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.KindNotFound, "address %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("get address %s: %w", key, err)
	}
	return addr, nil
}

func (s *SQLiteAddressStore) ListAddresses() ([]*types.Address, error) {
	rows, err := s.db.Query(
		`SELECT key, name, dpt, internal, group_label, unit, last_value, last_updated, initial_value
		 FROM addresses ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var out []*types.Address
	for rows.Next() {
		addr, err := s.scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

func (s *SQLiteAddressStore) DeleteAddress(key string) error {
	_, err := s.db.Exec(`DELETE FROM addresses WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete address %s: %w", key, err)
	}
	return nil
}

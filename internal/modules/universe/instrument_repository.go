// Package universe manages the instrument universes a portfolio can draw
// from. Instruments live in universe.db.
package universe

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/rs/zerolog"
)

// InstrumentRepository handles instrument database operations.
type InstrumentRepository struct {
	universeDB *sql.DB // universe.db - instruments table
	log        zerolog.Logger
}

// NewInstrumentRepository creates a new instrument repository.
func NewInstrumentRepository(universeDB *sql.DB, log zerolog.Logger) *InstrumentRepository {
	return &InstrumentRepository{
		universeDB: universeDB,
		log:        log.With().Str("repo", "instrument").Logger(),
	}
}

// GetByUniverse returns the active instruments of one universe, ordered by
// symbol.
func (r *InstrumentRepository) GetByUniverse(name string) ([]domain.Instrument, error) {
	rows, err := r.universeDB.Query(
		"SELECT symbol, name, universe, active FROM instruments WHERE universe = ? AND active = 1 ORDER BY symbol",
		normalizeUniverse(name),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.Symbol, &inst.Name, &inst.Universe, &inst.Active); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

// Symbols returns just the active symbols of one universe.
func (r *InstrumentRepository) Symbols(name string) ([]string, error) {
	instruments, err := r.GetByUniverse(name)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(instruments))
	for i, inst := range instruments {
		symbols[i] = inst.Symbol
	}
	return symbols, nil
}

// Count returns the number of instruments (active or not) in a universe.
func (r *InstrumentRepository) Count(name string) (int, error) {
	var count int
	err := r.universeDB.QueryRow(
		"SELECT COUNT(*) FROM instruments WHERE universe = ?", normalizeUniverse(name),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count instruments: %w", err)
	}
	return count, nil
}

// Sync replaces the membership of one universe in a single transaction.
// Instruments present in the new set are upserted and activated, instruments
// missing from it are deactivated rather than deleted so rebalance history
// stays explainable.
func (r *InstrumentRepository) Sync(name string, instruments []domain.Instrument) error {
	name = normalizeUniverse(name)

	err := database.WithTransaction(r.universeDB, func(tx *sql.Tx) error {
		if _, err := tx.Exec("UPDATE instruments SET active = 0 WHERE universe = ?", name); err != nil {
			return fmt.Errorf("failed to deactivate universe %s: %w", name, err)
		}
		for _, inst := range instruments {
			symbol := strings.ToUpper(strings.TrimSpace(inst.Symbol))
			if symbol == "" {
				continue
			}
			_, err := tx.Exec(
				`INSERT INTO instruments (symbol, name, universe, active) VALUES (?, ?, ?, 1)
				 ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, universe = excluded.universe, active = 1`,
				symbol, inst.Name, name,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert instrument %s: %w", symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Str("universe", name).Int("instruments", len(instruments)).Msg("Universe synced")
	return nil
}

func normalizeUniverse(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

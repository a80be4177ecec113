package universe

import (
	"fmt"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/rs/zerolog"
)

// Service wraps the instrument repository with seeding and sync logic.
type Service struct {
	repo *InstrumentRepository
	log  zerolog.Logger
}

// NewService creates a new universe service.
func NewService(repo *InstrumentRepository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "universe").Logger(),
	}
}

// EnsureSeeded populates a built-in universe on first use. Universes with
// existing rows are left alone.
func (s *Service) EnsureSeeded(name string) error {
	count, err := s.repo.Count(name)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	instruments, ok := KnownUniverse(name)
	if !ok {
		return nil
	}

	s.log.Info().Str("universe", name).Int("instruments", len(instruments)).Msg("Seeding built-in universe")
	return s.repo.Sync(name, instruments)
}

// Instruments returns the active instruments of a universe, seeding built-in
// universes on first access. An unknown empty universe is ErrNotFound.
func (s *Service) Instruments(name string) ([]domain.Instrument, error) {
	if err := s.EnsureSeeded(name); err != nil {
		return nil, err
	}
	instruments, err := s.repo.GetByUniverse(name)
	if err != nil {
		return nil, err
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("universe %q: %w", name, domain.ErrNotFound)
	}
	return instruments, nil
}

// Symbols returns the active symbols of a universe.
func (s *Service) Symbols(name string) ([]string, error) {
	instruments, err := s.Instruments(name)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(instruments))
	for i, inst := range instruments {
		symbols[i] = inst.Symbol
	}
	return symbols, nil
}

// Sync replaces a universe's membership. An empty instrument list with a
// built-in universe re-seeds the defaults.
func (s *Service) Sync(name string, instruments []domain.Instrument) error {
	if len(instruments) == 0 {
		builtin, ok := KnownUniverse(name)
		if !ok {
			return fmt.Errorf("universe %q has no built-in membership: %w", name, domain.ErrNotFound)
		}
		instruments = builtin
	}
	return s.repo.Sync(name, instruments)
}

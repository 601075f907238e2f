package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/db"
	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/seed"
	"github.com/hpungsan/keepsake/internal/store"
)

// Export formats
const (
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	// Path is a directory for json, or a database file for sqlite
	Path   string
	Format string // json (default) or sqlite
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path         string    `json:"path"`
	Format       string    `json:"format"`
	Contributors int       `json:"contributors"`
	Capsules     int       `json:"capsules"`
	Items        int       `json:"items"`
	Merges       int       `json:"merges"`
	ExportedAt   time.Time `json:"exported_at"`
}

// Export writes a consistent snapshot of the store as a seed directory or a SQLite file.
func Export(ctx context.Context, st *store.Store, input ExportInput) (*ExportOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = FormatJSON
	}

	snap := st.Snapshot()
	out := &ExportOutput{
		Path:         input.Path,
		Format:       format,
		Contributors: len(snap.Contributors),
		Capsules:     len(snap.Capsules),
		Items:        len(snap.Items),
		Merges:       len(snap.Merges),
		ExportedAt:   st.Now(),
	}

	switch format {
	case FormatJSON:
		path, err := seed.WriteDir(input.Path, snap)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.Path = path
	case FormatSQLite:
		database, err := db.Init(input.Path)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		defer database.Close()
		if err := db.SaveSnapshot(database, snap); err != nil {
			return nil, errors.NewInternal(err)
		}
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (want json or sqlite)", input.Format))
	}

	zerolog.Ctx(ctx).Info().Str("path", out.Path).Str("format", format).
		Int("capsules", out.Capsules).Int("items", out.Items).Msg("snapshot exported")
	return out, nil
}

// BootstrapInput names where to seed the store from. SeedDir wins when both are set.
type BootstrapInput struct {
	SeedDir string
	SeedDB  string
}

// Bootstrap replaces the store's contents with a seed directory or SQLite
// snapshot. With neither source set it leaves the store empty and returns a
// zero report.
func Bootstrap(ctx context.Context, st *store.Store, cfg *config.Config, input BootstrapInput) (*store.LoadReport, error) {
	var (
		snap   *store.Snapshot
		source string
		err    error
	)
	switch {
	case input.SeedDir != "":
		source = input.SeedDir
		snap, err = seed.LoadDir(input.SeedDir)
	case input.SeedDB != "":
		source = input.SeedDB
		snap, err = loadSQLite(input.SeedDB)
	default:
		return &store.LoadReport{}, nil
	}
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("failed to read seed %s: %v", source, err))
	}

	report, err := st.Load(*snap, cfg.ModificationWindow())
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)
	logger.Info().Str("source", source).
		Int("contributors", report.Contributors).
		Int("capsules", report.Capsules).
		Int("items", report.Items).
		Int("merges", report.Merges).
		Msg("store seeded")
	if len(report.DroppedCapsules) > 0 || len(report.DroppedItems) > 0 {
		logger.Warn().
			Interface("dropped_capsules", report.DroppedCapsules).
			Interface("dropped_items", report.DroppedItems).
			Msg("seed contained orphaned records")
	}
	return report, nil
}

func loadSQLite(path string) (*store.Snapshot, error) {
	database, err := db.Init(path)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	return db.LoadSnapshot(database)
}

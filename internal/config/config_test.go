package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunarcal/internal/model"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadPartialAndNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: lunation
year: 2021
geolocate: false
location:
  lat: 52.52
  lon: 13.405
astro:
  moon: usno
  sun: sextant
  concurrency: -3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lunation", cfg.Mode)
	assert.Equal(t, 2021, cfg.Year)
	assert.False(t, cfg.Geolocate)
	assert.Equal(t, model.Location{Lat: 52.52, Lon: 13.405}, cfg.Location)
	assert.Equal(t, ProviderUSNO, cfg.Astro.Moon)
	assert.Equal(t, ProviderLocal, cfg.Astro.Sun)
	assert.Equal(t, 64, cfg.Astro.Concurrency)
	assert.Equal(t, "Europe/Moscow", cfg.Timezone)
	assert.Equal(t, "5 0 * * *", cfg.RefreshCron)
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	cfg := &Config{Mode: "weekly", Year: -1, Location: model.Location{Lat: 200}}
	cfg.Normalize()

	assert.Equal(t, "phase", cfg.Mode)
	assert.Zero(t, cfg.Year)
	assert.True(t, cfg.Location.Valid())
	assert.NotEmpty(t, cfg.PhaseFeedURL)
	assert.Contains(t, cfg.NewMoonFeedURL, "{year}")
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestTimeLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	_, err := cfg.TimeLocation()
	assert.Error(t, err)

	cfg.Timezone = "UTC"
	loc, err := cfg.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

package validate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devskill-org/plant-dispatch/validate"
)

func TestCheckAdmixtureAcceptsOnlyEnumeratedValues(t *testing.T) {
	for _, f := range []float64{0, 0.3, 0.5, 1.0} {
		require.NoError(t, validate.CheckAdmixture("s", f))
	}
	err := validate.CheckAdmixture("s", 0.7)
	require.Error(t, err)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	require.Equal(t, validate.ConfigInvalid, ve.Kind)
}

func TestResolveCHPParamsFileZeroAdmixtureUsesBaseUnconditionally(t *testing.T) {
	resolved, warn := validate.ResolveCHPParamsFile("/any/chp.csv", 0)
	require.Equal(t, "/any/chp.csv", resolved)
	require.Empty(t, warn)
}

func TestResolveCHPParamsFilePrefersVariantWhenPresent(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "chp.csv")
	variant := filepath.Join(dir, "chp_h2_30.csv")
	require.NoError(t, os.WriteFile(base, []byte("index,power\n"), 0o644))
	require.NoError(t, os.WriteFile(variant, []byte("index,power\n"), 0o644))

	resolved, warn := validate.ResolveCHPParamsFile(base, 0.3)
	require.Equal(t, variant, resolved)
	require.Empty(t, warn)
}

func TestResolveCHPParamsFileFallsBackWithWarningWhenVariantMissing(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "chp.csv")
	require.NoError(t, os.WriteFile(base, []byte("index,power\n"), 0o644))

	resolved, warn := validate.ResolveCHPParamsFile(base, 0.5)
	require.Equal(t, base, resolved)
	require.NotEmpty(t, warn)
}

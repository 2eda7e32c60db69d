package iothreads

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T, cfg Config) (*Pool, *fakeHost) {
	t.Helper()
	host := &fakeHost{}
	pool, err := NewPool(cfg, testClassifier, host)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Shutdown(context.Background())
	})
	return pool, host
}

func TestClassify_KnownKindsMapToConfiguredBand(t *testing.T) {
	cfg := DefaultConfig()
	pool, _ := testPool(t, cfg)

	band, err := pool.classify(kindRead, 1000)
	require.NoError(t, err)
	require.Equal(t, BandHi, band)

	band, err = pool.classify(kindWrite, 1000)
	require.NoError(t, err)
	require.Equal(t, BandNormal, band)

	band, err = pool.classify(kindFsync, 1000)
	require.NoError(t, err)
	require.Equal(t, BandLo, band)
}

func TestClassify_UnknownKindIsInvalid(t *testing.T) {
	pool, _ := testPool(t, DefaultConfig())

	_, err := pool.classify(kindBogus, 1000)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidKind))
}

func TestClassify_TableLeastKindStaysLeastForOrdinaryCaller(t *testing.T) {
	pool, _ := testPool(t, DefaultConfig())

	band, err := pool.classify(kindReaddir, 1000)
	require.NoError(t, err)
	require.Equal(t, BandLeast, band)
}

func TestClassify_LowTrustCallerForcedToLeastWhenEnabled(t *testing.T) {
	pool, _ := testPool(t, DefaultConfig())

	// kindWrite would ordinarily map to NORMAL; a low-trust (negative pid)
	// caller must be overridden to LEAST ahead of the table entirely.
	band, err := pool.classify(kindWrite, -1)
	require.NoError(t, err)
	require.Equal(t, BandLeast, band)
}

func TestClassify_LowTrustOverrideDisabledFallsBackToTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableLeastPriority = false
	pool, _ := testPool(t, cfg)

	band, err := pool.classify(kindWrite, -1)
	require.NoError(t, err)
	require.Equal(t, BandNormal, band)
}

func TestClassify_OrdinaryCallerPIDUnaffected(t *testing.T) {
	pool, _ := testPool(t, DefaultConfig())

	band, err := pool.classify(kindWrite, 1000)
	require.NoError(t, err)
	require.Equal(t, BandNormal, band)
}

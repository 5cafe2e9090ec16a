package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

type memStore struct {
	imported map[string]*coupon.Coupon
	err      error
}

func (s *memStore) Import(_ context.Context, c *coupon.Coupon) error {
	if s.err != nil {
		return s.err
	}
	if err := coupon.ValidateDefinition(c); err != nil {
		return err
	}
	if s.imported == nil {
		s.imported = map[string]*coupon.Coupon{}
	}
	s.imported[c.Code] = c
	return nil
}

func definition(code string, value int) string {
	return `{"code":"` + code + `","name":"` + code + ` deal","type":"CART_WISE",` +
		`"discountType":"PERCENTAGE","discountValue":` + strconv.Itoa(value) + `,` +
		`"startDate":"2025-01-01T00:00:00","endDate":"2025-12-31T00:00:00","minCartAmount":50}`
}

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func TestImporter_Run(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.ndjson.gz",
			definition("ALPHA", 5),
			definition("SHARED", 5),
			definition("ZERO", 0),
			`{not json`,
		),
		writeGz(t, dir, "b.ndjson.gz",
			definition("BETA", 7),
			"",
			definition("SHARED", 9),
		),
	}

	st := &memStore{}
	im := &importer{lg: zaptest.NewLogger(t), store: st}

	sum, err := im.Run(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, &summary{
		Files:     2,
		Lines:     6,
		Imported:  2,
		Invalid:   2,
		Conflicts: 1,
	}, sum)
	assert.Contains(t, st.imported, "ALPHA")
	assert.Contains(t, st.imported, "BETA")
	assert.NotContains(t, st.imported, "SHARED")
	assert.NotContains(t, st.imported, "ZERO")
	assert.Equal(t, coupon.TypeCartWise, st.imported["BETA"].Type())
}

func TestImporter_StoreError(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeGz(t, dir, "a.ndjson.gz", definition("ALPHA", 5))}

	im := &importer{lg: zaptest.NewLogger(t), store: &memStore{err: errors.New("db down")}}
	_, err := im.Run(context.Background(), files)
	require.EqualError(t, err, `import "ALPHA": db down`)
}

func TestImporter_MissingFile(t *testing.T) {
	im := &importer{lg: zaptest.NewLogger(t), store: &memStore{}}
	_, err := im.Run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.ndjson.gz")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build bloom filters")
}

func TestImporter_Canceled(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeGz(t, dir, "a.ndjson.gz", definition("ALPHA", 5))}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	im := &importer{lg: zaptest.NewLogger(t), store: &memStore{}}
	_, err := im.Run(ctx, files)
	require.ErrorIs(t, err, context.Canceled)
}

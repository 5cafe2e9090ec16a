package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupon-engine/internal/codec"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	maxLineBytes  = 1 << 20
)

// store persists validated definitions. *coupon.Service satisfies it.
type store interface {
	Import(ctx context.Context, c *coupon.Coupon) error
}

// summary reports the outcome of an import run.
type summary struct {
	Files     int
	Lines     int
	Imported  int
	Invalid   int
	Conflicts int
}

// fileScan holds the definitions of one file and the codes that may also
// appear in another file.
type fileScan struct {
	defs       []*coupon.Coupon
	invalid    int
	lines      int
	candidates map[string]uint
}

type importer struct {
	lg    *zap.Logger
	store store
}

// Run imports every definition of files. Codes defined in more than one file
// are ambiguous and skipped. Invalid definitions are logged and counted.
func (im *importer) Run(ctx context.Context, files []string) (*summary, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("too many files: %d (max %d)", len(files), bits.UintSize)
	}

	im.lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	im.lg.Info("Pass 2: decoding definitions")
	scans, err := im.scanFiles(ctx, files, filters)
	if err != nil {
		return nil, errors.Wrap(err, "scan files")
	}

	merged := make(map[string]uint)
	for _, s := range scans {
		for code, mask := range s.candidates {
			merged[code] |= mask
		}
	}
	conflicts := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			conflicts[code] = struct{}{}
		}
	}

	sum := &summary{Files: len(files), Conflicts: len(conflicts)}
	for i, s := range scans {
		sum.Lines += s.lines
		sum.Invalid += s.invalid
		for _, c := range s.defs {
			if _, ok := conflicts[c.Code]; ok {
				im.lg.Warn("Skipping code defined in several files",
					zap.String("file", files[i]),
					zap.String("code", c.Code),
				)
				continue
			}
			if err := im.store.Import(ctx, c); err != nil {
				var invalid *coupon.InvalidCouponError
				if errors.As(err, &invalid) {
					im.lg.Warn("Invalid definition",
						zap.String("file", files[i]),
						zap.String("code", c.Code),
						zap.Error(err),
					)
					sum.Invalid++
					continue
				}
				return nil, errors.Wrapf(err, "import %q", c.Code)
			}
			sum.Imported++
		}
	}
	return sum, nil
}

// buildFilters creates one bloom filter of codes per file, concurrently.
func (im *importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count int
			err := streamFile(ctx, path, func(line []byte) {
				c, err := codec.DecodeCoupon(line)
				if err != nil || c.Code == "" {
					return
				}
				filter.AddString(c.Code)
				count++
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			im.lg.Info("Pass 1 complete", zap.String("file", path), zap.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// scanFiles decodes every file, concurrently, and marks codes that hit the
// bloom filter of another file with the bit of their own file.
func (im *importer) scanFiles(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]fileScan, error) {
	scans := make([]fileScan, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			s := fileScan{candidates: make(map[string]uint)}
			fileBit := uint(1) << uint(i)

			err := streamFile(ctx, path, func(line []byte) {
				s.lines++
				c, err := codec.DecodeCoupon(line)
				if err != nil {
					im.lg.Warn("Malformed definition",
						zap.String("file", path),
						zap.Int("line", s.lines),
						zap.Error(err),
					)
					s.invalid++
					return
				}
				s.defs = append(s.defs, c)
				for j, f := range filters {
					if j != i && f.TestString(c.Code) {
						s.candidates[c.Code] |= fileBit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}

			im.lg.Info("Pass 2 complete",
				zap.String("file", path),
				zap.Int("definitions", len(s.defs)),
				zap.Int("candidates", len(s.candidates)),
			)
			scans[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scans, nil
}

// streamFile calls fn for every non-empty line of a gzip-compressed file.
func streamFile(ctx context.Context, path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if line := scanner.Bytes(); len(line) > 0 {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

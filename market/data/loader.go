package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/backtester/market"
)

// LoadMany loads paths with at most workers files open at once
// (workers <= 0 means GOMAXPROCS). Two files for the same symbol are an
// error.
func LoadMany(ctx context.Context, paths []string, workers int) (map[string][]market.Bar, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu   sync.Mutex
		out  = make(map[string][]market.Bar, len(paths))
		from = make(map[string]string, len(paths))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			bars, err := LoadCSV(p)
			if err != nil {
				return err
			}

			sym := bars[0].Symbol
			mu.Lock()
			defer mu.Unlock()
			if prev, dup := from[sym]; dup {
				return fmt.Errorf("%w: symbol %s in both %s and %s", market.ErrData, sym, prev, p)
			}
			from[sym] = p
			out[sym] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadHistory loads paths and aligns them on their common dates.
func LoadHistory(ctx context.Context, paths []string, workers int) (*market.History, error) {
	series, err := LoadMany(ctx, paths, workers)
	if err != nil {
		return nil, err
	}
	return market.Align(series)
}

// Find expands each argument: directories yield the price files directly
// inside them, anything else is taken as a glob pattern. The result is
// sorted and de-duplicated.
func Find(args ...string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		if fi, err := os.Stat(arg); err == nil && fi.IsDir() {
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if !e.IsDir() && isPriceFile(e.Name()) {
					add(filepath.Join(arg, e.Name()))
				}
			}
			continue
		}

		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(out)
	return out, nil
}

func isPriceFile(name string) bool {
	name = strings.ToLower(name)
	for _, ext := range []string{".csv", ".csv.xz", ".csv.lzma", ".csv.gz"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

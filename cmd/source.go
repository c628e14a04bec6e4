package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/cache"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/fetcher"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/processes"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &cfg.Store.Pool)
}

func newDatasetLoader() *dataset.Loader {
	var memo *cache.Memo[*dataset.Dataset]
	if cfg.Cache.MaxEntries > 0 {
		memo = cache.NewMemo(cache.New[*dataset.Dataset](cfg.Cache.MaxEntries, cfg.Cache.TTL()))
	}
	return dataset.NewLoader(cfg.Load.Loader(), memo)
}

func newProcessesLoader() *processes.Loader {
	var memo *cache.Memo[*processes.Table]
	if cfg.Cache.MaxEntries > 0 {
		memo = cache.NewMemo(cache.New[*processes.Table](cfg.Cache.MaxEntries, cfg.Cache.TTL()))
	}
	return processes.NewLoader(cfg.Processes.ParseOptions(), memo)
}

// readSource returns the bytes of path (a local file or an http(s) URL), or
// of the named slot when path is empty.
func readSource(ctx context.Context, path, slot string) ([]byte, error) {
	switch {
	case fetcher.IsURL(path):
		return fetcher.NewHTTPFetcher(cfg.Download.HTTPOptions()).Download(ctx, path)
	case path != "":
		b, err := os.ReadFile(path)
		return b, eris.Wrapf(err, "read %s", path)
	case slot != "":
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		defer st.Close() //nolint:errcheck
		s, err := st.GetSlot(ctx, slot)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("read slot", zap.String("slot", slot), zap.String("file", s.FileName))
		return s.Data, nil
	}
	return nil, eris.New("no input: pass --file or --slot")
}

// loadDataset loads the primary dataset named by the persistent flags and
// applies the filters.
func loadDataset(ctx context.Context) (*dataset.Dataset, error) {
	f, err := dataset.ParseFilter(flagYears, flagStates, flagSubstances)
	if err != nil {
		return nil, err
	}
	b, err := readSource(ctx, flagFile, flagSlot)
	if err != nil {
		return nil, err
	}
	d, err := newDatasetLoader().Load(ctx, b)
	if err != nil {
		return nil, err
	}
	return d.Filter(f), nil
}

// processColumns merges flag overrides over configured overrides.
func processColumns(flags processes.Columns) processes.Columns {
	return cfg.Processes.Columns.Override(flags)
}

// loadProcessRecords reads the processes export from path or slot and
// resolves its columns.
func loadProcessRecords(ctx context.Context, path, slot string, overrides processes.Columns) ([]processes.Record, error) {
	b, err := readSource(ctx, path, slot)
	if err != nil {
		return nil, err
	}
	t, err := newProcessesLoader().Load(ctx, b)
	if err != nil {
		return nil, err
	}
	cols := processes.DetectColumns(t).Override(processColumns(overrides))
	zap.L().Debug("processes columns",
		zap.String("municipality", cols.Municipality),
		zap.String("holder", cols.Holder),
		zap.String("substance", cols.Substance),
		zap.String("process", cols.Process),
		zap.String("phase", cols.Phase),
	)
	return processes.Records(t, cols)
}

package upchuk

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

type ManagerOption func(*Manager)

func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

func WithOutput(w io.Writer) ManagerOption {
	return func(m *Manager) {
		m.out = w
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(bk Backend, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		bk:    bk,
		log:   zap.NewNop(),
		out:   io.Discard,
		now:   time.Now,
		index: cache.New(cache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.watch(); err != nil {
		m.log.Warn("store watcher disabled", zap.String("store", bk.Path()), zap.Error(err))
	}
	return m, nil
}

// Add stores url with an optional tag. An empty url is a no-op.
func (m *Manager) Add(url string, tag *string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadIndex(); err != nil {
		return err
	}
	if _, found := m.index.Get(url); found {
		return ErrDuplicateUrl
	}
	rec := &UrlRecord{Url: url, Date: m.now().Format(DateLayout)}
	if tag != nil {
		if strings.IndexFunc(*tag, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidTag, *tag)
		}
		t := strings.TrimSpace(*tag)
		rec.Tag = &t
	}
	if err := m.bk.Append(rec); err != nil {
		return err
	}
	// m.stamp is left as is so the next Add rescans anything appended
	// by another writer since the last load.
	m.index.SetDefault(url, struct{}{})
	m.log.Debug("url added", zap.String("url", url), zap.Stringp("tag", rec.Tag), zap.String("store", m.bk.Path()))
	return nil
}

// Records reads every parsable record, logging the lines that were skipped.
func (m *Manager) Records() ([]UrlRecord, error) {
	report, err := m.bk.ReadAll()
	if err != nil {
		return nil, err
	}
	if report.Created {
		_, _ = fmt.Fprintln(m.out, "No urls found, Please add urls before checking")
	}
	for _, s := range report.Skipped {
		m.log.Warn("failed to decode url entry",
			zap.String("store", m.bk.Path()),
			zap.Int("line", s.Line),
			zap.Error(s.Err))
	}
	return report.Records, nil
}

// loadIndex rebuilds the url index unless the store is unchanged since
// the last load. The stamp is taken before reading, so a write that races
// the read forces another rebuild next time.
func (m *Manager) loadIndex() error {
	stamp, err := m.bk.Stamp()
	if err != nil {
		return err
	}
	if m.loaded && stamp == m.stamp {
		return nil
	}
	records, err := m.Records()
	if err != nil {
		return err
	}
	m.index.Flush()
	for _, rec := range records {
		m.index.SetDefault(strings.TrimSpace(rec.Url), struct{}{})
	}
	m.loaded = true
	m.stamp = stamp
	return nil
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index.Flush()
	m.loaded = false
}

// watch drops the url index whenever something else touches the store file.
func (m *Manager) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	target := filepath.Clean(m.bk.Path())
	if err = w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return err
	}
	m.w = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					m.invalidate()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.log.Warn("store watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (m *Manager) Close() error {
	var err error
	if m.w != nil {
		err = m.w.Close()
	}
	if bkErr := m.bk.Close(); bkErr != nil {
		return bkErr
	}
	return err
}

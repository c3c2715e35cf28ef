package upchuk

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	AppDir       = "upchuk"
	UrlFileName  = "upchuk_urls.json"
	SqliteDbName = "upchuk_urls.db"
	DateLayout   = "2006-01-02"
)

var (
	ErrConfigDirUnavailable = errors.New("could not find config directory")
	ErrDuplicateUrl         = errors.New("url is already present")
	ErrInvalidTag           = errors.New("tag cannot contain whitespace")
	ErrMalformedRecord      = errors.New("malformed record")
)

// UrlRecord is one stored url. A nil Tag is written as null.
type UrlRecord struct {
	Url  string  `json:"url"`
	Tag  *string `json:"tag"`
	Date string  `json:"date"`
}

type SkippedLine struct {
	Line int
	Raw  string
	Err  error
}

type ReadReport struct {
	Records []UrlRecord
	Skipped []SkippedLine
	// Created is set when the read had to create an empty store.
	Created bool
}

type Backend interface {
	Append(rec *UrlRecord) error
	ReadAll() (*ReadReport, error)
	// Stamp changes whenever the stored content changes.
	Stamp() (string, error)
	Path() string
	Close() error
}

type Manager struct {
	bk     Backend
	log    *zap.Logger
	out    io.Writer
	now    func() time.Time
	mu     sync.Mutex
	index  *cache.Cache
	loaded bool
	stamp  string
	w      *fsnotify.Watcher
}

type Checker struct {
	client *http.Client
	out    io.Writer
}

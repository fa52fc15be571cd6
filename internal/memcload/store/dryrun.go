package store

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/memcload/internal/memcload/userapps"
)

// DryRunStore logs every write it is asked to perform and reports success.
type DryRunStore struct {
	addr   string
	logger *log.Entry
}

func NewDryRunStore(addr string) *DryRunStore {
	return &DryRunStore{addr: addr, logger: log.NewEntry(log.StandardLogger())}
}

// WithLogger returns a copy of the store that logs writes through logger.
func (s *DryRunStore) WithLogger(logger *log.Entry) Store {
	return &DryRunStore{addr: s.addr, logger: logger}
}

func (s *DryRunStore) Put(key string, value []byte) error {
	if !s.logger.Logger.IsLevelEnabled(log.DebugLevel) {
		return nil
	}
	decoded, err := userapps.Unmarshal(value)
	if err != nil {
		s.logger.WithError(err).Debugf("%s - %s -> %d undecodable bytes", s.addr, key, len(value))
		return nil
	}
	s.logger.Debugf("%s - %s -> %s", s.addr, key, strings.ReplaceAll(decoded.String(), "\n", " "))
	return nil
}

func (s *DryRunStore) Addr() string {
	return s.addr
}

func (s *DryRunStore) Close() error {
	return nil
}

package sqlite

import (
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/interfaces"
)

// Manager implements interfaces.StorageManager over a single SQLite
// connection, composing one sub-store per domain concern the way the
// teacher's Manager composes Auth/Document/Job/Source stores.
type Manager struct {
	db      *SQLiteDB
	source  interfaces.SourceStorage
	news    interfaces.NewsStorage
	image   interfaces.ImageStorage
	refdata interfaces.RefDataStorage
	entity  interfaces.EntityStorage
	topic   interfaces.TopicStorage
	event   interfaces.EventStorage
	outbox  interfaces.OutboxStorage
	logger  arbor.ILogger
}

// NewManager opens the database at path and wires every sub-store against it.
func NewManager(logger arbor.ILogger, path string) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, path)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:      db,
		source:  NewSourceStorage(db, logger),
		news:    NewNewsStorage(db, logger),
		image:   NewImageStorage(db, logger),
		refdata: NewRefDataStorage(db, logger),
		entity:  NewEntityStorage(db, logger),
		topic:   NewTopicStorage(db, logger),
		event:   NewEventStorage(db, logger),
		outbox:  NewOutboxStorage(db, logger),
		logger:  logger,
	}, nil
}

func (m *Manager) SourceStorage() interfaces.SourceStorage   { return m.source }
func (m *Manager) NewsStorage() interfaces.NewsStorage       { return m.news }
func (m *Manager) ImageStorage() interfaces.ImageStorage     { return m.image }
func (m *Manager) RefDataStorage() interfaces.RefDataStorage { return m.refdata }
func (m *Manager) EntityStorage() interfaces.EntityStorage   { return m.entity }
func (m *Manager) TopicStorage() interfaces.TopicStorage     { return m.topic }
func (m *Manager) EventStorage() interfaces.EventStorage     { return m.event }
func (m *Manager) OutboxStorage() interfaces.OutboxStorage   { return m.outbox }

// DB returns the underlying *sql.DB, boxed as interface{} per
// interfaces.StorageManager so callers outside this package never import
// database/sql just to hold a reference.
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.DB()
	}
	return nil
}

func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

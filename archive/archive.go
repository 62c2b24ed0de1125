/*
Package archive persists the outcome of every tracked task.

Records are keyed by task id so that re-tracking a task overwrites its
previous outcome. The Datastore archive is used when a Google Cloud project
is configured; otherwise records are kept in memory.
*/
package archive

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/sirupsen/logrus"
)

// Kind is the Datastore kind of archived records
const Kind = "ScrapeOutcome"

// ErrNotFound is returned when no record exists for a task
var ErrNotFound = errors.New("archive record not found")

// Record is the archived outcome of a tracked task
type Record struct {
	TaskID       int64     `json:"task_id" datastore:"task_id"`
	Phase        string    `json:"phase" datastore:"phase"`
	Status       string    `json:"status" datastore:"status"`
	ResultID     int64     `json:"result_id,omitempty" datastore:"result_id"`
	Title        string    `json:"title,omitempty" datastore:"title,noindex"`
	PageURL      string    `json:"page_url,omitempty" datastore:"page_url"`
	LinksCount   int       `json:"links_count" datastore:"links_count"`
	ImagesCount  int       `json:"images_count" datastore:"images_count"`
	Links        []string  `json:"links,omitempty" datastore:"links,noindex"`
	ErrorKind    string    `json:"error_kind,omitempty" datastore:"error_kind"`
	ErrorMessage string    `json:"error_message,omitempty" datastore:"error_message,noindex"`
	ArchivedAt   time.Time `json:"archived_at" datastore:"archived_at"`
}

// RecordFromSnapshot builds a record from a terminal snapshot. It returns
// false for snapshots that are not terminal or track no task.
func RecordFromSnapshot(snap lifecycle.Snapshot) (*Record, bool) {
	if snap.TrackedTaskID == nil || !snap.Terminal() {
		return nil, false
	}
	record := &Record{
		TaskID:     *snap.TrackedTaskID,
		Phase:      string(snap.Phase),
		Status:     string(snap.Status),
		ArchivedAt: snap.UpdatedAt.UTC(),
	}
	if snap.Result != nil {
		record.ResultID = snap.Result.ID
		record.Title = snap.Result.Content.Title
		record.PageURL = snap.Result.Content.URL
		record.LinksCount = snap.Result.Content.LinksCount
		record.ImagesCount = snap.Result.Content.ImagesCount
		record.Links = snap.Result.Content.Links
	}
	if snap.Error != nil {
		record.ErrorKind = string(snap.Error.Kind)
		record.ErrorMessage = snap.Error.Message
	}
	return record, true
}

// Archive stores task outcomes
type Archive interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, taskID int64) (*Record, error)
	List(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// DatastoreClientInterface is the subset of *datastore.Client the archive uses
type DatastoreClientInterface interface {
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
	Get(ctx context.Context, key *datastore.Key, dst interface{}) error
	GetAll(ctx context.Context, q *datastore.Query, dst interface{}) ([]*datastore.Key, error)
	Close() error
}

// DatastoreArchive stores records in Google Cloud Datastore
type DatastoreArchive struct {
	client DatastoreClientInterface
	logger *logrus.Logger
}

// NewDatastoreArchive creates an archive backed by client
func NewDatastoreArchive(client DatastoreClientInterface, logger *logrus.Logger) *DatastoreArchive {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DatastoreArchive{client: client, logger: logger}
}

// Save stores record under its task id, replacing any previous record
func (a *DatastoreArchive) Save(ctx context.Context, record *Record) error {
	key := datastore.IDKey(Kind, record.TaskID, nil)
	if _, err := a.client.Put(ctx, key, record); err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"task_id": record.TaskID,
		"phase":   record.Phase,
	}).Debug("Archived task outcome")
	return nil
}

// Get loads the record of a task
func (a *DatastoreArchive) Get(ctx context.Context, taskID int64) (*Record, error) {
	var record Record
	err := a.client.Get(ctx, datastore.IDKey(Kind, taskID, nil), &record)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns the most recently archived records first
func (a *DatastoreArchive) List(ctx context.Context, limit int) ([]*Record, error) {
	query := datastore.NewQuery(Kind).Order("-archived_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []*Record
	if _, err := a.client.GetAll(ctx, query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the Datastore client
func (a *DatastoreArchive) Close() error {
	return a.client.Close()
}

// MemoryArchive keeps records in memory
type MemoryArchive struct {
	mu      sync.RWMutex
	records map[int64]*Record
}

// NewMemoryArchive creates an empty in-memory archive
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{records: make(map[int64]*Record)}
}

func (a *MemoryArchive) Save(ctx context.Context, record *Record) error {
	copied := *record
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[record.TaskID] = &copied
	return nil
}

func (a *MemoryArchive) Get(ctx context.Context, taskID int64) (*Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	record, ok := a.records[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (a *MemoryArchive) List(ctx context.Context, limit int) ([]*Record, error) {
	a.mu.RLock()
	records := make([]*Record, 0, len(a.records))
	for _, record := range a.records {
		copied := *record
		records = append(records, &copied)
	}
	a.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].ArchivedAt.After(records[j].ArchivedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (a *MemoryArchive) Close() error {
	return nil
}

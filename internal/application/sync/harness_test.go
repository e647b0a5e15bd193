package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
)

// ---------------------------------------------------------------------------
// In-memory test doubles
// ---------------------------------------------------------------------------

type fakeQueueRepo struct {
	mu        sync.Mutex
	queues    map[uuid.UUID]*syncqueue.Queue
	sequences map[string]int64

	appendLineCalls int
	updateLineCalls int
	failOn          string // method name that should return an error
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{
		queues:    make(map[uuid.UUID]*syncqueue.Queue),
		sequences: make(map[string]int64),
	}
}

func (r *fakeQueueRepo) err(method string) error {
	if r.failOn == method {
		return fmt.Errorf("%s: forced failure", method)
	}
	return nil
}

func (r *fakeQueueRepo) Create(_ context.Context, queue *syncqueue.Queue) error {
	if err := r.err("Create"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[queue.ID] = queue
	return nil
}

func (r *fakeQueueRepo) Save(_ context.Context, queue *syncqueue.Queue) error {
	if err := r.err("Save"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[queue.ID] = queue
	return nil
}

func (r *fakeQueueRepo) FindByID(_ context.Context, id uuid.UUID) (*syncqueue.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue, ok := r.queues[id]
	if !ok {
		return nil, syncqueue.ErrQueueNotFound
	}
	return queue, nil
}

func (r *fakeQueueRepo) FindOpenQueue(_ context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (*syncqueue.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var open *syncqueue.Queue
	for _, q := range r.queues {
		if q.InstanceID != instanceID || q.Collection != collection || !q.CanAccept() {
			continue
		}
		if open == nil || q.CreatedAt.After(open.CreatedAt) {
			open = q
		}
	}
	if open == nil {
		return nil, syncqueue.ErrQueueNotFound
	}
	return open, nil
}

func (r *fakeQueueRepo) FindProcessable(_ context.Context, instanceID uuid.UUID, collection syncqueue.Collection) ([]*syncqueue.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*syncqueue.Queue
	for _, q := range r.queues {
		if q.InstanceID != instanceID || q.Collection != collection {
			continue
		}
		if q.State == syncqueue.QueueStateCompleted || q.RequiresManualAction {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeQueueRepo) List(_ context.Context, instanceID uuid.UUID, collection syncqueue.Collection, limit, offset int) ([]*syncqueue.Queue, error) {
	queues, _ := r.FindProcessable(context.Background(), instanceID, collection)
	_ = limit
	_ = offset
	return queues, nil
}

func (r *fakeQueueRepo) AppendLine(_ context.Context, _ *syncqueue.QueueLine) error {
	if err := r.err("AppendLine"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLineCalls++
	return nil
}

func (r *fakeQueueRepo) UpdateLine(_ context.Context, _ *syncqueue.QueueLine) error {
	if err := r.err("UpdateLine"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateLineCalls++
	return nil
}

func (r *fakeQueueRepo) SetProcessing(_ context.Context, queueID uuid.UUID, processing bool) error {
	if err := r.err("SetProcessing"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[queueID]; ok {
		q.IsProcessing = processing
	}
	return nil
}

func (r *fakeQueueRepo) Delete(_ context.Context, queueID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[queueID]
	if !ok {
		return syncqueue.ErrQueueNotFound
	}
	if len(q.Lines) > 0 {
		return syncqueue.ErrQueueHasLines
	}
	delete(r.queues, queueID)
	return nil
}

func (r *fakeQueueRepo) NextSequence(_ context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := instanceID.String() + "/" + collection.String()
	r.sequences[key]++
	return r.sequences[key], nil
}

func (r *fakeQueueRepo) CountByState(_ context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (map[syncqueue.LineState]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[syncqueue.LineState]int64)
	for _, q := range r.queues {
		if q.InstanceID != instanceID || q.Collection != collection {
			continue
		}
		for i := range q.Lines {
			counts[q.Lines[i].State]++
		}
	}
	return counts, nil
}

// queuesByName returns the repo's queues sorted by name for stable assertions
func (r *fakeQueueRepo) queuesByName() []*syncqueue.Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*syncqueue.Queue, 0, len(r.queues))
	for _, q := range r.queues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type fakeLogBookRepo struct {
	mu      sync.Mutex
	books   map[uuid.UUID]*syncqueue.LogBook // keyed by queue ID
	deleted []uuid.UUID
}

func newFakeLogBookRepo() *fakeLogBookRepo {
	return &fakeLogBookRepo{books: make(map[uuid.UUID]*syncqueue.LogBook)}
}

func (r *fakeLogBookRepo) GetOrCreateForQueue(_ context.Context, queue *syncqueue.Queue) (*syncqueue.LogBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if book, ok := r.books[queue.ID]; ok {
		return book, nil
	}
	book := syncqueue.NewLogBook(queue.ID, queue.InstanceID)
	r.books[queue.ID] = book
	return book, nil
}

func (r *fakeLogBookRepo) FindByQueue(_ context.Context, queueID uuid.UUID) (*syncqueue.LogBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	book, ok := r.books[queueID]
	if !ok {
		return nil, syncqueue.ErrLogBookNotFound
	}
	return book, nil
}

func (r *fakeLogBookRepo) AddLine(_ context.Context, _ *syncqueue.LogLine) error { return nil }

func (r *fakeLogBookRepo) CountLines(_ context.Context, logBookID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, book := range r.books {
		if book.ID == logBookID {
			return int64(len(book.Lines)), nil
		}
	}
	return 0, syncqueue.ErrLogBookNotFound
}

func (r *fakeLogBookRepo) DeleteIfEmpty(_ context.Context, logBookID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for queueID, book := range r.books {
		if book.ID == logBookID && book.IsEmpty() {
			delete(r.books, queueID)
			r.deleted = append(r.deleted, logBookID)
		}
	}
	return nil
}

type fakeInstanceRepo struct {
	mu        sync.Mutex
	instances map[uuid.UUID]*syncqueue.Instance
}

func newFakeInstanceRepo(instances ...*syncqueue.Instance) *fakeInstanceRepo {
	r := &fakeInstanceRepo{instances: make(map[uuid.UUID]*syncqueue.Instance)}
	for _, i := range instances {
		r.instances[i.ID] = i
	}
	return r
}

func (r *fakeInstanceRepo) FindByID(_ context.Context, id uuid.UUID) (*syncqueue.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return nil, syncqueue.ErrInstanceNotFound
	}
	return instance, nil
}

func (r *fakeInstanceRepo) FindActive(_ context.Context) ([]*syncqueue.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*syncqueue.Instance
	for _, i := range r.instances {
		if i.Active {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeInstanceRepo) Save(_ context.Context, instance *syncqueue.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[instance.ID] = instance
	return nil
}

type fakeCursorRepo struct {
	mu      sync.Mutex
	cursors map[string]*remote.PaginationCursor
	saves   int
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: make(map[string]*remote.PaginationCursor)}
}

func (r *fakeCursorRepo) GetOrCreate(_ context.Context, instanceID uuid.UUID, collection syncqueue.Collection) (*remote.PaginationCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := instanceID.String() + "/" + collection.String()
	if c, ok := r.cursors[key]; ok {
		return c, nil
	}
	c := remote.NewPaginationCursor(instanceID, collection)
	r.cursors[key] = c
	return c, nil
}

func (r *fakeCursorRepo) Save(_ context.Context, cursor *remote.PaginationCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := cursor.InstanceID.String() + "/" + cursor.Collection.String()
	r.cursors[key] = cursor
	r.saves++
	return nil
}

func (r *fakeCursorRepo) page(instanceID uuid.UUID, collection syncqueue.Collection) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := instanceID.String() + "/" + collection.String()
	if c, ok := r.cursors[key]; ok {
		return c.CurrentPage
	}
	return 0
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, _ uuid.UUID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) contains(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type fakeActivityScheduler struct {
	mu       sync.Mutex
	subjects []string
}

func (s *fakeActivityScheduler) ScheduleFollowUp(_ context.Context, _ *syncqueue.Instance, subject, _ string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subject)
	return nil
}

type fakeDedupStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDedupStore() *fakeDedupStore {
	return &fakeDedupStore{seen: make(map[string]bool)}
}

func (s *fakeDedupStore) key(instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) string {
	return instance.ID.String() + "/" + collection.String() + "/" + recordKey
}

func (s *fakeDedupStore) Seen(_ context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[s.key(instance, collection, recordKey)], nil
}

func (s *fakeDedupStore) Mark(_ context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[s.key(instance, collection, recordKey)] = true
	return nil
}

// fakeGateway serves a fixed record set, slicing it into pages per the
// criteria's pagination parameters.
type fakeGateway struct {
	mu          sync.Mutex
	records     []remote.Record
	countErr    error
	pageErr     error
	stockErr    error
	pagesServed int
	stockPushes []remote.StockItem
}

func recordSet(n int) []remote.Record {
	records := make([]remote.Record, n)
	for i := range records {
		records[i] = remote.Record{
			Key:     fmt.Sprintf("10000%04d", i),
			Payload: []byte(fmt.Sprintf(`{"increment_id":"10000%04d"}`, i)),
		}
	}
	return records
}

func (g *fakeGateway) FetchCount(_ context.Context, _ *syncqueue.Instance, _ syncqueue.Collection, _ *remote.SearchCriteria) (int, error) {
	if g.countErr != nil {
		return 0, g.countErr
	}
	return len(g.records), nil
}

func (g *fakeGateway) FetchPage(_ context.Context, _ *syncqueue.Instance, _ syncqueue.Collection, criteria *remote.SearchCriteria) (*remote.Page, error) {
	if g.pageErr != nil {
		return nil, g.pageErr
	}
	g.mu.Lock()
	g.pagesServed++
	g.mu.Unlock()

	if criteria.CurrentPage == 0 {
		// Key-set fetch without pagination returns everything at once.
		return &remote.Page{Items: g.records, TotalCount: len(g.records)}, nil
	}

	from := (criteria.CurrentPage - 1) * criteria.PageSize
	to := from + criteria.PageSize
	if from > len(g.records) {
		from = len(g.records)
	}
	if to > len(g.records) {
		to = len(g.records)
	}
	return &remote.Page{Items: g.records[from:to], TotalCount: len(g.records)}, nil
}

func (g *fakeGateway) UpdateStock(_ context.Context, _ *syncqueue.Instance, items []remote.StockItem) error {
	if g.stockErr != nil {
		return g.stockErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stockPushes = append(g.stockPushes, items...)
	return nil
}

// fakeProcessor fails the records whose keys are listed in failKeys and
// succeeds otherwise. Failures write a log book line like a real processor.
type fakeProcessor struct {
	collection syncqueue.Collection
	failKeys   map[string]bool
	procErr    error
	processed  []string
}

func (p *fakeProcessor) Collection() syncqueue.Collection { return p.collection }

func (p *fakeProcessor) Process(_ context.Context, line *syncqueue.QueueLine, _ *syncqueue.Instance, logBook *syncqueue.LogBook) (bool, error) {
	p.processed = append(p.processed, line.RecordKey)
	if p.procErr != nil {
		return false, p.procErr
	}
	if p.failKeys[line.RecordKey] {
		logBook.Add(fmt.Sprintf("Record %s could not be matched", line.RecordKey), line.RecordKey, &line.ID)
		return false, nil
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Builders
// ---------------------------------------------------------------------------

func testInstance() *syncqueue.Instance {
	now := time.Now()
	return &syncqueue.Instance{
		ID:                 uuid.New(),
		Name:               "webshop-main",
		BaseURL:            "https://shop.example.com",
		AccessToken:        "token",
		Active:             true,
		ImportOrders:       true,
		ImportProducts:     true,
		ImportCustomers:    true,
		ExportStock:        true,
		ImportPageSize:     syncqueue.DefaultImportPageSize,
		MaxProcessAttempts: syncqueue.DefaultMaxProcessAttempts,
		ActivityLeadDays:   2,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

package link

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"testing"
	"weak"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/internal/omekatest"
	"github.com/teranos/omekalink/internal/util"
	"github.com/teranos/omekalink/omeka"
)

const artist = "rcl:artist"

func ref(id int64) string {
	return fmt.Sprintf(`{"type":"resource:item","value_resource_id":%d}`, id)
}

// seedThreePages stores six items in source item set 3, two per page.
// Items 1 (page 1) and 3 (page 2) both reference item 77.
func seedThreePages(srv *omekatest.Server) {
	srv.AddItemSet(3)
	srv.AddItemSet(5)
	inSource := `"o:item_set":[{"o:id":3}]`
	srv.AddItem(1, `{`+inSource+`,"rcl:artist":[`+ref(77)+`]}`)
	srv.AddItem(2, `{`+inSource+`,"rcl:artist":[`+ref(78)+`]}`)
	srv.AddItem(3, `{`+inSource+`,"rcl:artist":[`+ref(77)+`,`+ref(79)+`]}`)
	srv.AddItem(4, `{`+inSource+`}`)
	srv.AddItem(5, `{`+inSource+`,"rcl:artist":{"broken":true}}`)
	srv.AddItem(6, `{`+inSource+`,"rcl:artist":[{"type":"literal","@value":"x"}]}`)
	srv.AddItem(77, `{}`)
	srv.AddItem(78, `{"o:item_set":[{"o:id":5}]}`)
	srv.AddItem(79, `{}`)
}

func newTestCoordinator(srv *omekatest.Server, workers int) *Coordinator {
	return NewCoordinator(newClient(srv), Options{PerPage: 2, Workers: workers})
}

func TestRunDedupAcrossPages(t *testing.T) {
	srv := newFakeOmeka(t)
	seedThreePages(srv)

	report, err := newTestCoordinator(srv, 1).Run(context.Background(), Request{
		SourceItemSet: util.Ptr(int64(3)),
		Targets:       map[string]int64{artist: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, srv.ListedPages())
	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, 6, report.Items)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.Interrupted)

	// 77 is referenced on pages 1 and 2 but written once
	assert.Equal(t, 1, srv.Gets(77))
	assert.Len(t, srv.Puts(77), 1)
	assert.Equal(t, []int64{5}, srv.ItemSetIDs(77))

	assert.Equal(t, FieldStats{Found: 3, Added: 2, Skipped: 1, Errors: 0}, report.Field(artist))
	assert.Empty(t, srv.Puts(78), "78 was already in item set 5")
	assert.Zero(t, srv.Unauthenticated())
}

func TestRunIsIdempotent(t *testing.T) {
	srv := newFakeOmeka(t)
	seedThreePages(srv)
	c := newTestCoordinator(srv, 1)
	req := Request{SourceItemSet: util.Ptr(int64(3)), Targets: map[string]int64{artist: 5}}

	first, err := c.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Field(artist).Added)

	second, err := c.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, FieldStats{Found: 3, Added: 0, Skipped: 3}, second.Field(artist))
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunMissingDestinationFailsBeforePaging(t *testing.T) {
	srv := newFakeOmeka(t)
	seedThreePages(srv)

	report, err := newTestCoordinator(srv, 1).Run(context.Background(), Request{
		Targets: map[string]int64{artist: 999, "rcl:author": 5},
	})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, ErrPrecondition))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Contains(t, err.Error(), "999")
	assert.Contains(t, errors.FlattenHints(err), "create item set 999")

	assert.Empty(t, srv.ListedPages(), "no page requested")
	assert.Zero(t, srv.TotalPuts())
}

func TestRunProbesEachItemSetOnce(t *testing.T) {
	srv := newFakeOmeka(t)
	seedThreePages(srv)

	_, err := newTestCoordinator(srv, 1).Run(context.Background(), Request{
		SourceItemSet: util.Ptr(int64(3)),
		Targets:       map[string]int64{artist: 5, "rcl:author": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Probes(5))
	assert.Equal(t, 1, srv.Probes(3))
}

func TestRunMissingSourceItemSet(t *testing.T) {
	srv := newFakeOmeka(t)
	seedThreePages(srv)

	_, err := newTestCoordinator(srv, 1).Run(context.Background(), Request{
		SourceItemSet: util.Ptr(int64(42)),
		Targets:       map[string]int64{artist: 5},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPrecondition))
	assert.Contains(t, err.Error(), "source item set 42")
	assert.Empty(t, srv.ListedPages())
}

func TestRunProbeFailureIsNotPrecondition(t *testing.T) {
	srv := newFakeOmeka(t)
	c := NewCoordinator(omeka.NewClient(omeka.Config{APIURL: srv.APIURL()}), Options{})

	_, err := c.Run(context.Background(), Request{Targets: map[string]int64{artist: 5}})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPrecondition))
	assert.True(t, errors.IsUnauthorizedError(err))
}

func TestRunRejectsEmptyTargets(t *testing.T) {
	c := NewCoordinator(newFakeRemote(), Options{})

	_, err := c.Run(context.Background(), Request{})
	assert.Error(t, err)

	_, err = c.Run(context.Background(), Request{Targets: map[string]int64{artist: 0}})
	assert.Error(t, err)
}

func TestRunRetrievalFailureReturnsPartialReport(t *testing.T) {
	srv := newFakeOmeka(t)
	seedThreePages(srv)
	srv.FailList(2, http.StatusInternalServerError)

	report, err := newTestCoordinator(srv, 1).Run(context.Background(), Request{
		SourceItemSet: util.Ptr(int64(3)),
		Targets:       map[string]int64{artist: 5},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetrieval))
	assert.Equal(t, http.StatusInternalServerError, omeka.StatusCode(err))
	require.NotNil(t, report)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, FieldStats{Found: 2, Added: 1, Skipped: 1}, report.Field(artist))

	// Page 1 writes stand, no retry of page 2
	assert.Equal(t, []int64{5}, srv.ItemSetIDs(77))
	assert.Equal(t, []int{1, 2}, srv.ListedPages())
}

func TestRunWriteErrorsAreCounted(t *testing.T) {
	srv := newFakeOmeka(t)
	seedThreePages(srv)
	srv.FailPut(77, http.StatusInternalServerError)
	srv.FailGet(79, http.StatusBadGateway)

	report, err := newTestCoordinator(srv, 1).Run(context.Background(), Request{
		SourceItemSet: util.Ptr(int64(3)),
		Targets:       map[string]int64{artist: 5},
	})

	require.NoError(t, err, "write failures do not abort the run")
	assert.Equal(t, FieldStats{Found: 3, Added: 0, Skipped: 1, Errors: 2}, report.Field(artist))
	assert.Len(t, srv.Puts(77), 1)
	assert.Len(t, srv.Puts(79), 0)
}

func TestRunParallelWorkersMatchSequential(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	remote := newFakeRemote()
	remote.itemSets[5] = true
	pages := make([][]omeka.Resource, 0, 4)
	for p := 0; p < 4; p++ {
		var page []omeka.Resource
		for i := 0; i < 5; i++ {
			// Ids repeat across pages so dedup and concurrency interact
			page = append(page, relatesTo(t, int64(100+(p*5+i)%12), int64(100+(p*5+i+1)%12)))
		}
		pages = append(pages, page)
	}
	for id := int64(100); id < 112; id++ {
		remote.items[id] = omeka.Resource{}
	}
	remote.items[103], _ = omeka.Resource{}.WithItemSet(omeka.Reference{ID: 5})

	c := NewCoordinator(remote, Options{
		Workers:    4,
		PageSource: func(Request) PageSource { return &cannedPages{pages: pages} },
	})

	report, err := c.Run(context.Background(), Request{Targets: map[string]int64{artist: 5}})
	require.NoError(t, err)

	assert.Equal(t, FieldStats{Found: 12, Added: 11, Skipped: 1}, report.Field(artist))
	for id := int64(100); id < 112; id++ {
		assert.Equal(t, 1, remote.getCount(id), "item %d fetched once", id)
	}
	assert.LessOrEqual(t, remote.maxInFlight(), 4)
}

func TestRunCancellationStopsAfterInFlightWrite(t *testing.T) {
	remote := newFakeRemote()
	remote.itemSets[5] = true
	for id := int64(1); id <= 3; id++ {
		remote.items[id] = omeka.Resource{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remote.onGet = func(id int64) {
		if id == 1 {
			cancel()
		}
	}

	c := NewCoordinator(remote, Options{
		PageSource: func(Request) PageSource {
			return &cannedPages{pages: [][]omeka.Resource{{relatesTo(t, 1, 2, 3)}, {relatesTo(t, 4)}}}
		},
	})
	report, err := c.Run(ctx, Request{Targets: map[string]int64{artist: 5}})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Pages)
	stats := report.Field(artist)
	assert.Equal(t, 3, stats.Found)
	assert.Equal(t, 1, stats.Added, "in-flight write completes and stands")
	assert.Equal(t, 0, remote.getCount(2))
}

func TestRunReleasesPreviousPages(t *testing.T) {
	remote := newFakeRemote()
	remote.itemSets[5] = true
	for id := int64(1); id <= 100; id++ {
		remote.items[id] = omeka.Resource{}
	}

	src := &generatedPages{t: t, total: 6}
	c := NewCoordinator(remote, Options{PageSource: func(Request) PageSource { return src }})

	report, err := c.Run(context.Background(), Request{Targets: map[string]int64{artist: 5}})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Pages)
	assert.Empty(t, src.leaked, "pages still reachable after a later page was processed")
}

func TestRunMetrics(t *testing.T) {
	srv := newFakeOmeka(t)
	seedThreePages(srv)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	c := NewCoordinator(newClient(srv), Options{PerPage: 2, Metrics: metrics})
	_, err := c.Run(context.Background(), Request{
		SourceItemSet: util.Ptr(int64(3)),
		Targets:       map[string]int64{artist: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.pages))
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.items))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.found.WithLabelValues(artist)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues(artist, "added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues(artist, "already_present")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.writeDuration))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.observePage(1)
		nilMetrics.observeOutcome(artist, OutcomeAdded)
	})
}

func TestReportTotals(t *testing.T) {
	r := newReport("run", Request{Targets: map[string]int64{"b": 1, "a": 2}})
	r.Fields["a"].Found = 2
	r.Fields["a"].record(OutcomeAdded)
	r.Fields["b"].record(OutcomeAlreadyPresent)
	r.Fields["b"].record(OutcomeError)

	assert.Equal(t, []string{"a", "b"}, r.FieldNames())
	assert.Equal(t, FieldStats{Found: 2, Added: 1, Skipped: 1, Errors: 1}, r.Totals())
	assert.Equal(t, FieldStats{}, r.Field("missing"))
	assert.Zero(t, r.Duration())
}

// relatesTo builds an item whose rcl:artist references targets
func relatesTo(t *testing.T, targets ...int64) omeka.Resource {
	t.Helper()
	entries := make([]map[string]interface{}, 0, len(targets))
	for _, id := range targets {
		entries = append(entries, map[string]interface{}{"type": omeka.KindResourceItem, "value_resource_id": id})
	}
	r, err := omeka.Resource{}.Set(artist, entries)
	require.NoError(t, err)
	return r
}

// cannedPages serves fixed pages
type cannedPages struct {
	pages [][]omeka.Resource
	next  int
}

func (c *cannedPages) Next(ctx context.Context) (Page, bool, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, false, err
	}
	if c.next >= len(c.pages) {
		return Page{}, false, nil
	}
	c.next++
	return Page{Number: c.next, Resources: c.pages[c.next-1]}, true, nil
}

// generatedPages builds each page on demand and checks, before building the
// next one, that pages older than the previous one have been collected
type generatedPages struct {
	t      *testing.T
	total  int
	refs   []weak.Pointer[omeka.Resource]
	leaked []int
}

func (g *generatedPages) Next(context.Context) (Page, bool, error) {
	runtime.GC()
	runtime.GC()
	for i := 0; i < len(g.refs)-1; i++ {
		if g.refs[i].Value() != nil {
			g.leaked = append(g.leaked, i+1)
		}
	}

	n := len(g.refs) + 1
	if n > g.total {
		return Page{}, false, nil
	}

	resources := make([]omeka.Resource, 0, 10)
	for i := 0; i < 10; i++ {
		resources = append(resources, relatesTo(g.t, int64((n-1)*10+i+1)))
	}
	g.refs = append(g.refs, weak.Make(&resources[0]))
	return Page{Number: n, Resources: resources}, true, nil
}

// fakeRemote is an in-memory Remote safe for concurrent writers
type fakeRemote struct {
	mu       sync.Mutex
	items    map[int64]omeka.Resource
	itemSets map[int64]bool
	gets     map[int64]int
	inFlight int
	peak     int
	onGet    func(id int64)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		items:    map[int64]omeka.Resource{},
		itemSets: map[int64]bool{},
		gets:     map[int64]int{},
	}
}

func (f *fakeRemote) ListItems(context.Context, omeka.ItemQuery) ([]omeka.Resource, error) {
	return nil, nil
}

func (f *fakeRemote) ItemSetExists(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.itemSets[id], nil
}

func (f *fakeRemote) ItemSetRef(id int64) omeka.Reference {
	return omeka.Reference{AtID: fmt.Sprintf("https://x.org/api/item_sets/%d", id), ID: id}
}

func (f *fakeRemote) GetItem(_ context.Context, id int64) (omeka.Resource, error) {
	f.mu.Lock()
	f.gets[id]++
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	item, ok := f.items[id]
	onGet := f.onGet
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if onGet != nil {
		onGet(id)
	}
	if !ok {
		return nil, errors.NewNotFoundError("item %d", id)
	}
	return item.Clone(), nil
}

func (f *fakeRemote) ReplaceItem(_ context.Context, id int64, item omeka.Resource) (omeka.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = item
	return item, nil
}

func (f *fakeRemote) getCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[id]
}

func (f *fakeRemote) maxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

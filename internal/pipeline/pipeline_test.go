package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/stockline/internal/answer"
	"github.com/nadzzz/stockline/internal/apperr"
	"github.com/nadzzz/stockline/internal/catalog"
	"github.com/nadzzz/stockline/internal/config"
	"github.com/nadzzz/stockline/internal/locator"
	"github.com/nadzzz/stockline/internal/locator/geo"
	"github.com/nadzzz/stockline/internal/matcher"
	"github.com/nadzzz/stockline/internal/matcher/keyword"
	"github.com/nadzzz/stockline/internal/message"
	"github.com/nadzzz/stockline/internal/metrics"
	"github.com/nadzzz/stockline/internal/retrieval"
	"github.com/nadzzz/stockline/internal/retrieval/retrievaltest"
)

const sanJose = "880 Mabury Rd, San Jose, CA 95133"

var retrievalCfg = config.RetrievalConfig{APIKey: "sl-key", DatafileID: "df-1"}

func terminal(answer string) string {
	return `{"__type__":"responseResult","llmResponse":{"complete_answer":"` + answer + `"}}`
}

// --- test doubles ---

type stubMatcher struct {
	items []catalog.Item
	err   error
	panic bool
	calls int
}

func (s *stubMatcher) Name() string { return "stub" }

func (s *stubMatcher) Match(ctx context.Context, transcript string) (matcher.Result, error) {
	s.calls++
	if s.panic {
		panic("matcher exploded")
	}
	return matcher.Result{Items: s.items}, s.err
}

type stubLocator struct {
	loc   catalog.Location
	err   error
	calls int
}

func (s *stubLocator) Name() string { return "stub" }

func (s *stubLocator) Nearest(ctx context.Context, c catalog.Coordinates) (catalog.Location, error) {
	s.calls++
	return s.loc, s.err
}

func newPipeline(t *testing.T, m matcher.Matcher, l locator.Resolver, o retrieval.Opener, cfg config.RetrievalConfig) *Pipeline {
	t.Helper()
	if m == nil {
		km, err := keyword.New(nil)
		require.NoError(t, err)
		m = km
	}
	p := New(m, l, o, cfg)
	p.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("PST", -8*3600)) }
	return p
}

// --- scenarios ---

func TestResolveCerealWithoutCoordinates(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Chunks: []string{
		`{"__type__":"schemaData"}`,
		terminal("There are 18 boxes of cereal in stock."),
	}}}
	p := newPipeline(t, nil, geo.New(), opener, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{ID: "r1", Transcript: "um how many, uh, boxes of cereal do you have"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Boxes of Cereal", resp.Analysis)
	assert.Nil(t, resp.Location)
	assert.Equal(t, "Boxes of Cereal", resp.Item)
	assert.Equal(t, "Check the stock of Boxes of Cereal. How many are in stock?", resp.Question)
	assert.Equal(t, "There are 18 boxes of cereal in stock.", resp.Answer)
	assert.Equal(t, resp.Answer, resp.StockInfo)
	assert.JSONEq(t, terminal("There are 18 boxes of cereal in stock."), string(resp.RawData))
	assert.Equal(t, time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC), resp.Timestamp)
	assert.Empty(t, resp.Error)

	clients := opener.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, 1, clients[0].Closes())
	assert.Equal(t, []string{"df-1"}, clients[0].Datafiles())
}

func TestResolveBlanketsNearSanJose(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Chunks: []string{terminal("30 blankets")}}}
	p := newPipeline(t, nil, geo.New(), opener, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{
		Transcript: "blankets please",
		Latitude:   "37.3382",
		Longitude:  "-121.8863",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Blankets/Throws", resp.Analysis)
	require.NotNil(t, resp.Location)
	require.NotNil(t, resp.Location.Name)
	assert.Equal(t, sanJose, *resp.Location.Name)
	assert.InDelta(t, 37.3382, resp.Location.Latitude, 1e-9)
	assert.InDelta(t, -121.8863, resp.Location.Longitude, 1e-9)
	assert.Contains(t, resp.Question, "Blankets/Throws")
	assert.Contains(t, resp.Question, sanJose)
	assert.Equal(t, "Check the stock of Blankets/Throws at "+sanJose+". How many are available?", resp.Question)
	assert.Equal(t, []string{resp.Question}, opener.Clients()[0].Questions())
}

func TestResolveWeatherIsNoMatch(t *testing.T) {
	opener := &retrievaltest.Opener{}
	loc := &stubLocator{}
	p := newPipeline(t, nil, loc, opener, retrievalCfg)

	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(opTranscript, metrics.OutcomeNoMatch))

	resp, err := p.Resolve(context.Background(), &message.Request{
		Transcript: "what's the weather today",
		Latitude:   "37.3382",
		Longitude:  "-121.8863",
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, catalog.NoMatch, resp.Analysis)
	assert.Equal(t, catalog.NoMatch, resp.Answer)
	assert.Empty(t, resp.Question)
	require.NotNil(t, resp.Location, "coordinates are echoed")
	assert.Nil(t, resp.Location.Name)
	assert.Zero(t, loc.calls, "no location resolution on no-match")
	assert.Zero(t, opener.Opens(), "no stock query on no-match")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(opTranscript, metrics.OutcomeNoMatch)))
}

func TestResolveNoMatchNeverTouchesBackends(t *testing.T) {
	for _, transcript := range []string{"hello there", "um uh", "what time is it", "can you hear me"} {
		opener := &retrievaltest.Opener{}
		loc := &stubLocator{}
		p := newPipeline(t, nil, loc, opener, config.RetrievalConfig{})

		resp, err := p.Resolve(context.Background(), &message.Request{Transcript: transcript, Latitude: "40.7", Longitude: "-74"})
		require.NoError(t, err, transcript)
		assert.Equal(t, catalog.NoMatch, resp.Analysis)
		assert.Zero(t, loc.calls)
		assert.Zero(t, opener.Opens())
	}
}

// --- properties ---

func TestResolveIsIdempotent(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Chunks: []string{terminal("7 cans")}}}
	p := newPipeline(t, nil, geo.New(), opener, retrievalCfg)
	req := &message.Request{Transcript: "any tuna", Latitude: "37.79", Longitude: "-122.40"}

	first, err := p.Resolve(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Resolve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Analysis, second.Analysis)
	require.NotNil(t, first.Location.Name)
	assert.Equal(t, *first.Location.Name, *second.Location.Name)
	assert.Equal(t, first.Answer, second.Answer)
}

func TestResolveReleasesClientOnceAcrossFailures(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{
		Chunks:  []string{`{"__type__":"progress"}`},
		RecvErr: errors.New("stream reset by peer"),
	}}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)
	openBefore := testutil.ToFloat64(metrics.RetrievalClientsOpen)

	for i := 0; i < 100; i++ {
		resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "rice"})
		require.Error(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	}

	clients := opener.Clients()
	require.Len(t, clients, 100)
	for i, c := range clients {
		assert.Equal(t, 1, c.Closes(), "client %d", i)
		assert.Equal(t, 1, c.StreamCloses(), "stream %d", i)
	}
	assert.Equal(t, openBefore, testutil.ToFloat64(metrics.RetrievalClientsOpen))
}

// --- degradations and failures ---

func TestResolveWithoutTerminalChunk(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Chunks: []string{`{"__type__":"progress"}`}}}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "peanut butter"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, answer.Default, resp.Answer)
	assert.Nil(t, resp.RawData)
}

func TestResolveSummaryFallback(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Chunks: []string{
		`{"__type__":"responseResult","llmResponse":{"data":{"summary":"Backpacks: 9"}}}`,
	}}}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "backpacks"})
	require.NoError(t, err)
	assert.Equal(t, "Backpacks: 9", resp.Answer)
}

func TestResolveMissingTranscript(t *testing.T) {
	m := &stubMatcher{}
	p := newPipeline(t, m, nil, &retrievaltest.Opener{}, retrievalCfg)

	for _, transcript := range []string{"", "   "} {
		resp, err := p.Resolve(context.Background(), &message.Request{Transcript: transcript})
		require.Error(t, err)
		assert.Equal(t, apperr.KindInput, apperr.KindOf(err))
		assert.Equal(t, "No transcript provided", resp.Error)
		assert.NotEmpty(t, resp.Answer)
		assert.Empty(t, resp.Analysis, "matching was never reached")
	}
	assert.Zero(t, m.calls)
}

func TestResolveMissingConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RetrievalConfig
		want string
	}{
		{"api key", config.RetrievalConfig{DatafileID: "df"}, "retrieval backend API key not configured"},
		{"datafile", config.RetrievalConfig{APIKey: "k"}, "retrieval backend datafile ID not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &retrievaltest.Opener{}
			p := newPipeline(t, nil, nil, opener, tt.cfg)

			resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "diapers"})
			require.Error(t, err)
			assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
			assert.Equal(t, tt.want, resp.Error)
			assert.Equal(t, "Boxes of Diapers", resp.Analysis)
			assert.Zero(t, opener.Opens())
		})
	}
}

func TestResolveClassificationFailure(t *testing.T) {
	m := &stubMatcher{err: errors.New("rate limited")}
	opener := &retrievaltest.Opener{}
	p := newPipeline(t, m, nil, opener, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "cereal"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindClassification, apperr.KindOf(err))
	assert.Equal(t, "Failed to classify transcript", resp.Error)
	assert.Equal(t, "rate limited", resp.Details)
	assert.Empty(t, resp.Analysis, "a failed classifier is not a no-match")
	assert.Zero(t, opener.Opens())
}

func TestResolveClassifierConfigError(t *testing.T) {
	m := &stubMatcher{err: apperr.Config("Classifier API key not configured")}
	p := newPipeline(t, m, nil, &retrievaltest.Opener{}, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "cereal"})
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	assert.Equal(t, "Classifier API key not configured", resp.Error)
}

func TestResolveLocationFailureDegrades(t *testing.T) {
	for name, loc := range map[string]*stubLocator{
		"error":            {err: errors.New("upstream 503")},
		"unknown location": {loc: catalog.Location{Name: "Somewhere else"}},
	} {
		t.Run(name, func(t *testing.T) {
			opener := &retrievaltest.Opener{Script: retrievaltest.Script{Chunks: []string{terminal("5")}}}
			p := newPipeline(t, &stubMatcher{items: []catalog.Item{"Winter Coats"}}, loc, opener, retrievalCfg)

			resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "coats", Latitude: "32.7", Longitude: "-117.1"})
			require.NoError(t, err)
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Location)
			assert.Nil(t, resp.Location.Name)
			assert.Equal(t, "Check the stock of Winter Coats. How many are in stock?", resp.Question)
			assert.Equal(t, 1, loc.calls)
		})
	}
}

func TestResolvePartialCoordinatesAreAbsent(t *testing.T) {
	loc := &stubLocator{}
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Chunks: []string{terminal("5")}}}
	p := newPipeline(t, nil, loc, opener, retrievalCfg)

	for _, req := range []*message.Request{
		{Transcript: "milk", Latitude: "37.3"},
		{Transcript: "milk", Longitude: "-121.8"},
		{Transcript: "milk", Latitude: "north", Longitude: "-121.8"},
		{Transcript: "milk", Latitude: "137.3", Longitude: "-121.8"},
	} {
		resp, err := p.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Nil(t, resp.Location)
		assert.Equal(t, "Check the stock of Shelf-Stable Milk. How many are in stock?", resp.Question)
	}
	assert.Zero(t, loc.calls)
}

func TestResolveMultipleItems(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Chunks: []string{terminal("both")}}}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "black beans and chicken noodle soup"})
	require.NoError(t, err)
	assert.Equal(t, "Canned Black Beans, Chicken Noodle Soup", resp.Analysis)
	assert.Equal(t, "Check the stock of Canned Black Beans, Chicken Noodle Soup. How many are in stock?", resp.Question)
}

func TestResolveNetworkUnreachable(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{
		ResponseErr: &net.DNSError{Err: "no such host", Name: "api.snowleopard.ai", IsNotFound: true},
	}}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "hand sanitizer"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Equal(t, 200, apperr.HTTPStatus(apperr.KindOf(err)))
	assert.False(t, resp.Success)
	assert.Equal(t, retrieval.NetworkMessage, resp.Answer)
	assert.Equal(t, retrieval.NetworkMessage, resp.Error)
	assert.Equal(t, "Hand Sanitizer", resp.Analysis)
	assert.Equal(t, 1, opener.Clients()[0].Closes())
}

func TestResolveOpenFailure(t *testing.T) {
	opener := &retrievaltest.Opener{OpenErr: errors.New("bad base url")}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "lays chips"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "Failed to process transcript", resp.Error)
	assert.Equal(t, "bad base url", resp.Details)
}

func TestResolveRecoversPanic(t *testing.T) {
	p := newPipeline(t, &stubMatcher{panic: true}, nil, &retrievaltest.Opener{}, retrievalCfg)

	resp, err := p.Resolve(context.Background(), &message.Request{Transcript: "cereal"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "Failed to process transcript", resp.Error)
	assert.Contains(t, resp.Details, "matcher exploded")
}

// --- item lookup ---

func TestQueryItem(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Result: &retrieval.RetrieveResult{
		Data: &retrieval.RetrieveData{
			QuerySummary: "Rice by location",
			Rows:         []json.RawMessage{json.RawMessage(`{"count":4}`)},
		},
	}}}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	resp, err := p.QueryItem(context.Background(), &message.ItemRequest{Item: "Bags of Rice"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Bags of Rice", resp.Item)
	assert.Equal(t, "How many of Bags of Rice is currently available in stock?", resp.Question)
	assert.Equal(t, "Rice by location\n\nDetails:\n1. {\"count\":4}", resp.StockInfo)
	assert.JSONEq(t, `{"querySummary":"Rice by location","rows":[{"count":4}]}`, string(resp.RawData))
	assert.Equal(t, 1, opener.Clients()[0].Closes())
}

func TestQueryItemRejectsInvalidItem(t *testing.T) {
	opener := &retrievaltest.Opener{}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	for _, item := range []string{"", catalog.NoMatch, "Cereal Boxes"} {
		resp, err := p.QueryItem(context.Background(), &message.ItemRequest{Item: item})
		require.Error(t, err, item)
		assert.Equal(t, apperr.KindInput, apperr.KindOf(err))
		assert.Equal(t, "No valid item provided", resp.Error)
	}
	assert.Zero(t, opener.Opens())
}

func TestQueryItemBackendError(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{Result: &retrieval.RetrieveResult{Error: "datafile not found"}}}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	resp, err := p.QueryItem(context.Background(), &message.ItemRequest{Item: "Backpacks"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "Failed to retrieve stock information", resp.Error)
	assert.Equal(t, "datafile not found", resp.Details)
	assert.Equal(t, 1, opener.Clients()[0].Closes())
}

func TestQueryItemNetworkUnreachable(t *testing.T) {
	opener := &retrievaltest.Opener{Script: retrievaltest.Script{
		RetrieveErr: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}}
	p := newPipeline(t, nil, nil, opener, retrievalCfg)

	resp, err := p.QueryItem(context.Background(), &message.ItemRequest{Item: "Reading Glasses"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Equal(t, retrieval.NetworkMessage, resp.Error)
}

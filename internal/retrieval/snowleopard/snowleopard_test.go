package snowleopard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/stockline/internal/apperr"
	"github.com/nadzzz/stockline/internal/config"
	"github.com/nadzzz/stockline/internal/retrieval"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestResponseStream(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/datafiles/df-42/response", r.URL.Path)
		assert.Equal(t, "Bearer sl-key", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Check the stock of Canned Tuna. How many are in stock?", body["userQuery"])

		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"__type__":"schemaData"}`+"\n\n")
		w.(http.Flusher).Flush()
		io.WriteString(w, `data: {"__type__":"responseResult","llmResponse":{"complete_answer":"There are 7 cans."}}`+"\n")
		io.WriteString(w, `{"__type__":"done"}`+"\n")
	})

	c := New(config.RetrievalConfig{BaseURL: srv.URL + "/", APIKey: "sl-key"})
	defer c.Close()

	out, err := retrieval.Consume(context.Background(), c, "df-42", "Check the stock of Canned Tuna. How many are in stock?")
	require.NoError(t, err)
	assert.Equal(t, 3, out.Chunks)
	require.NotNil(t, out.Terminal)
	assert.JSONEq(t, `{"__type__":"responseResult","llmResponse":{"complete_answer":"There are 7 cans."}}`, string(out.Terminal.Raw))
}

func TestResponseEventStream(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "retry: 3000\n")
		io.WriteString(w, ": keep-alive\n\n")
		io.WriteString(w, "id: 1\nevent: message\n")
		io.WriteString(w, `data: {"__type__":"schemaData"}`+"\n\n")
		io.WriteString(w, "id: 2\nevent: message\n")
		io.WriteString(w, `data: {"__type__":"responseResult","llmResponse":{"complete_answer":"7"}}`+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	})

	c := New(config.RetrievalConfig{BaseURL: srv.URL, APIKey: "sl-key"})
	defer c.Close()

	out, err := retrieval.Consume(context.Background(), c, "df", "q")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Chunks)
	require.NotNil(t, out.Terminal)
	assert.JSONEq(t, `{"__type__":"responseResult","llmResponse":{"complete_answer":"7"}}`, string(out.Terminal.Raw))
}

func TestResponseStatusError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	})

	c := New(config.RetrievalConfig{BaseURL: srv.URL, APIKey: "bad"})
	defer c.Close()

	_, err := c.Response(context.Background(), "df", "q")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "invalid api key")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(retrieval.Classify(err)))
}

func TestResponseMalformedChunk(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{not json}\n")
	})

	c := New(config.RetrievalConfig{BaseURL: srv.URL})
	defer c.Close()

	_, err := retrieval.Consume(context.Background(), c, "df", "q")
	assert.ErrorContains(t, err, "decoding chunk")
}

func TestRetrieve(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datafiles/df-1/retrieve", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"querySummary":"Rice stock","rows":[{"item":"Bags of Rice","count":4}],"isTrimmed":true}}`)
	})

	c := New(config.RetrievalConfig{BaseURL: srv.URL, APIKey: "k"})
	defer c.Close()

	res, err := c.Retrieve(context.Background(), "df-1", "How many of Bags of Rice is currently available in stock?")
	require.NoError(t, err)
	require.NotNil(t, res.Data)
	assert.Equal(t, "Rice stock", res.Data.QuerySummary)
	require.Len(t, res.Data.Rows, 1)
	assert.JSONEq(t, `{"item":"Bags of Rice","count":4}`, string(res.Data.Rows[0]))
	assert.True(t, res.Data.IsTrimmed)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.Raw)
}

func TestRetrieveBodyError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":"datafile not found"}`)
	})

	c := New(config.RetrievalConfig{BaseURL: srv.URL})
	defer c.Close()

	res, err := c.Retrieve(context.Background(), "missing", "q")
	require.NoError(t, err)
	assert.Equal(t, "datafile not found", res.Error)
	assert.Nil(t, res.Data)
}

func TestUnreachableHost(t *testing.T) {
	// .invalid never resolves.
	c := New(config.RetrievalConfig{BaseURL: "http://retrieval.stockline.invalid"})
	defer c.Close()

	_, err := retrieval.Consume(context.Background(), c, "df", "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, retrieval.ErrNetworkUnreachable)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestOpener(t *testing.T) {
	o := NewOpener(config.RetrievalConfig{BaseURL: "http://localhost:1"})
	c, err := o.Open(context.Background())
	require.NoError(t, err)
	assert.NoError(t, c.Close())

	_, err = NewOpener(config.RetrievalConfig{}).Open(context.Background())
	assert.Error(t, err)
}

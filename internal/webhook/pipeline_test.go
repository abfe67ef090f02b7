package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/pushbox/internal/checkpoint"
	"github.com/teemow/pushbox/internal/gmail"
	"github.com/teemow/pushbox/internal/pubsub"
)

type stubVerifier struct {
	err       error
	calls     int
	gotToken  string
	gotSigner string
}

func (v *stubVerifier) Verify(_ context.Context, rawToken, expectedSignerEmail string) (*pubsub.Claims, error) {
	v.calls++
	v.gotToken = rawToken
	v.gotSigner = expectedSignerEmail
	if v.err != nil {
		return nil, v.err
	}
	return &pubsub.Claims{Email: expectedSignerEmail, EmailVerified: true}, nil
}

type stubEnumerator struct {
	result    *gmail.HistoryResult
	err       error
	calls     int
	gotToken  string
	gotCursor string
}

func (e *stubEnumerator) EnumerateSince(_ context.Context, accessToken, startCursor string) (*gmail.HistoryResult, error) {
	e.calls++
	e.gotToken = accessToken
	e.gotCursor = startCursor
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

type failingPutStore struct {
	checkpoint.Store
	putErr error
}

func (s *failingPutStore) Put(_ context.Context, _, _ string) error {
	return s.putErr
}

type recordingObserver struct {
	results       []string
	resyncs       []string
	checkpointOps []string
	pages         []int
}

func (o *recordingObserver) DeliveryProcessed(_ context.Context, server, result string, _ float64) {
	o.results = append(o.results, server+"/"+result)
}

func (o *recordingObserver) ResyncPerformed(_ context.Context, server string) {
	o.resyncs = append(o.resyncs, server)
}

func (o *recordingObserver) RecordCheckpointOperation(_ context.Context, operation, result string) {
	o.checkpointOps = append(o.checkpointOps, operation+"/"+result)
}

func (o *recordingObserver) RecordHistoryPages(_ context.Context, pages int) {
	o.pages = append(o.pages, pages)
}

// envelope builds a push request body with the given decoded data payload
// and attributes.
func envelope(t *testing.T, data map[string]any, attributes map[string]string) []byte {
	t.Helper()

	msg := pubsub.PushMessage{Attributes: attributes}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		msg.Data = base64.StdEncoding.EncodeToString(raw)
	}

	body, err := json.Marshal(pubsub.PushRequest{Message: msg})
	require.NoError(t, err)
	return body
}

func delivery(body []byte) Delivery {
	return Delivery{
		ID:          "d1",
		ServerName:  "serverA",
		AccessToken: "tok123",
		PushToken:   "push-token",
		Body:        body,
	}
}

func newTestPipeline(t *testing.T, enumerator Enumerator, store checkpoint.Store) *Pipeline {
	t.Helper()
	return NewPipeline(&stubVerifier{}, enumerator, store, "proj", nil, nil)
}

func TestProcessEndToEnd(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	verifier := &stubVerifier{}
	enumerator := &stubEnumerator{result: &gmail.HistoryResult{
		MessageIDs:   []string{"m1", "m2"},
		NewHistoryID: "150",
		Pages:        1,
	}}
	observer := &recordingObserver{}
	pipeline := NewPipeline(verifier, enumerator, store, "proj", nil, observer)

	body := envelope(t, map[string]any{"emailAddress": "a@x.com", "historyId": "150"}, nil)
	resp, err := pipeline.Process(ctx, delivery(body))
	require.NoError(t, err)

	assert.Equal(t, 202, resp.ReqResponseCode)
	assert.Empty(t, resp.ReqResponseContent)
	require.NotNil(t, resp.ProcessData)
	assert.Contains(t, resp.ProcessData.PromptContent, "m1")
	assert.Contains(t, resp.ProcessData.PromptContent, "m2")
	assert.Contains(t, resp.ProcessData.PromptContent, "a@x.com")
	assert.Contains(t, resp.ProcessData.PromptContent, "serverA")

	// Enumeration starts from the stored cursor with the delivery credential.
	assert.Equal(t, "100", enumerator.gotCursor)
	assert.Equal(t, "tok123", enumerator.gotToken)

	// The expected signer is derived from the tenant name.
	assert.Equal(t, "serverA@proj.iam.gserviceaccount.com", verifier.gotSigner)
	assert.Equal(t, "push-token", verifier.gotToken)

	cursor, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "150", cursor)

	assert.Equal(t, []string{"serverA/success"}, observer.results)
	assert.Equal(t, []string{"get/success", "put/success"}, observer.checkpointOps)
	assert.Equal(t, []int{1}, observer.pages)
}

func TestProcessRecordsCheckpointMiss(t *testing.T) {
	observer := &recordingObserver{}
	pipeline := NewPipeline(&stubVerifier{}, &stubEnumerator{}, checkpoint.NewMemoryStore(), "proj", nil, observer)

	body := envelope(t, map[string]any{"emailAddress": "a@x.com", "historyId": "150"}, nil)
	_, err := pipeline.Process(context.Background(), delivery(body))
	require.Error(t, err)

	assert.Equal(t, []string{"get/miss"}, observer.checkpointOps)
	assert.Empty(t, observer.pages)
}

func TestProcessIdempotentRedelivery(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	body := envelope(t, map[string]any{"emailAddress": "a@x.com", "historyId": "150"}, nil)

	first := &stubEnumerator{result: &gmail.HistoryResult{
		MessageIDs:   []string{"m1", "m2"},
		NewHistoryID: "150",
	}}
	_, err := newTestPipeline(t, first, store).Process(ctx, delivery(body))
	require.NoError(t, err)

	// Redelivery: the mailbox saw no further changes past 150.
	second := &stubEnumerator{result: &gmail.HistoryResult{NewHistoryID: "150"}}
	resp, err := newTestPipeline(t, second, store).Process(ctx, delivery(body))
	require.NoError(t, err)

	assert.Equal(t, 202, resp.ReqResponseCode)
	assert.Nil(t, resp.ProcessData)
	assert.Equal(t, "150", second.gotCursor)

	cursor, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "150", cursor)
}

func TestProcessMissingCheckpoint(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	enumerator := &stubEnumerator{}
	pipeline := newTestPipeline(t, enumerator, store)

	body := envelope(t, map[string]any{"emailAddress": "a@x.com", "historyId": "150"}, nil)
	_, err := pipeline.Process(context.Background(), delivery(body))

	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "watch not initialized")
	assert.Zero(t, enumerator.calls)
}

func TestProcessAttributeCursorFallback(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	enumerator := &stubEnumerator{result: &gmail.HistoryResult{NewHistoryID: "140"}}
	pipeline := newTestPipeline(t, enumerator, store)

	// Data blob lacks the cursor; the attribute map fills the gap and the
	// checkpoint advances to the attribute value.
	body := envelope(t, map[string]any{"emailAddress": "a@x.com"}, map[string]string{"historyId": "150"})
	_, err := pipeline.Process(ctx, delivery(body))
	require.NoError(t, err)

	cursor, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "150", cursor)
}

func TestProcessEnumeratorCursorFallback(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	enumerator := &stubEnumerator{result: &gmail.HistoryResult{
		MessageIDs:   []string{"m1"},
		NewHistoryID: "130",
	}}
	pipeline := newTestPipeline(t, enumerator, store)

	// Delivery carries no cursor at all: the enumerator's observed frontier
	// is the only candidate.
	body := envelope(t, map[string]any{"emailAddress": "a@x.com"}, nil)
	_, err := pipeline.Process(ctx, delivery(body))
	require.NoError(t, err)

	cursor, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "130", cursor)
}

func TestProcessMissingServerName(t *testing.T) {
	verifier := &stubVerifier{}
	pipeline := NewPipeline(verifier, &stubEnumerator{}, checkpoint.NewMemoryStore(), "proj", nil, nil)

	d := delivery(envelope(t, nil, nil))
	d.ServerName = ""

	_, err := pipeline.Process(context.Background(), d)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Zero(t, verifier.calls)
}

func TestProcessMissingAccessToken(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "serverA", "100"))

	enumerator := &stubEnumerator{}
	pipeline := newTestPipeline(t, enumerator, store)

	d := delivery(envelope(t, nil, nil))
	d.AccessToken = ""

	_, err := pipeline.Process(context.Background(), d)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Zero(t, enumerator.calls)
}

func TestProcessAuthFailure(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "serverA", "100"))

	verifier := &stubVerifier{err: fmt.Errorf("%w: bad signature", pubsub.ErrUnauthenticated)}
	enumerator := &stubEnumerator{}
	pipeline := NewPipeline(verifier, enumerator, store, "proj", nil, nil)

	_, err := pipeline.Process(context.Background(), delivery(envelope(t, nil, nil)))

	assert.ErrorIs(t, err, pubsub.ErrUnauthenticated)
	assert.Zero(t, enumerator.calls)

	// No cursor work happened.
	cursor, getErr := store.Get(context.Background(), "serverA")
	require.NoError(t, getErr)
	assert.Equal(t, "100", cursor)
}

func TestProcessUndecodableEnvelope(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "serverA", "100"))

	pipeline := newTestPipeline(t, &stubEnumerator{}, store)

	d := delivery([]byte("{not json"))
	_, err := pipeline.Process(context.Background(), d)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestProcessEmptyPayloadTolerated(t *testing.T) {
	// An envelope with neither data nor attributes is "no actionable
	// payload", not an error: enumeration still runs from the stored cursor.
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	enumerator := &stubEnumerator{result: &gmail.HistoryResult{NewHistoryID: "100"}}
	pipeline := newTestPipeline(t, enumerator, store)

	resp, err := pipeline.Process(ctx, delivery(envelope(t, nil, nil)))
	require.NoError(t, err)

	assert.Equal(t, 202, resp.ReqResponseCode)
	assert.Equal(t, 1, enumerator.calls)
}

func TestProcessUpstreamFailure(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	enumerator := &stubEnumerator{err: errors.New("backend unavailable")}
	pipeline := newTestPipeline(t, enumerator, store)

	_, err := pipeline.Process(ctx, delivery(envelope(t, map[string]any{"historyId": "150"}, nil)))
	require.Error(t, err)

	assert.Equal(t, 502, StatusForError(err))

	// A transient failure must not advance the checkpoint.
	cursor, getErr := store.Get(ctx, "serverA")
	require.NoError(t, getErr)
	assert.Equal(t, "100", cursor)
}

func TestProcessStaleCursorResynchronizes(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	enumerator := &stubEnumerator{err: fmt.Errorf("start cursor 100: %w", gmail.ErrStaleHistoryID)}
	observer := &recordingObserver{}
	pipeline := NewPipeline(&stubVerifier{}, enumerator, store, "proj", nil, observer)

	body := envelope(t, map[string]any{"emailAddress": "a@x.com", "historyId": "150"}, nil)
	resp, err := pipeline.Process(ctx, delivery(body))
	require.NoError(t, err)

	// Zero-item acknowledgement; the gap is unrecoverable.
	assert.Equal(t, 202, resp.ReqResponseCode)
	assert.Nil(t, resp.ProcessData)

	cursor, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "150", cursor)

	assert.Equal(t, []string{"serverA"}, observer.resyncs)
}

func TestProcessStaleCursorWithoutReplacement(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	enumerator := &stubEnumerator{err: fmt.Errorf("start cursor 100: %w", gmail.ErrStaleHistoryID)}
	pipeline := newTestPipeline(t, enumerator, store)

	// No cursor anywhere in the delivery: fail so the broker retries.
	_, err := pipeline.Process(ctx, delivery(envelope(t, nil, nil)))
	require.Error(t, err)
	assert.Equal(t, 502, StatusForError(err))

	cursor, getErr := store.Get(ctx, "serverA")
	require.NoError(t, getErr)
	assert.Equal(t, "100", cursor)
}

func TestProcessCheckpointWriteFailure(t *testing.T) {
	base := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, base.Put(ctx, "serverA", "100"))
	store := &failingPutStore{Store: base, putErr: errors.New("redis down")}

	enumerator := &stubEnumerator{result: &gmail.HistoryResult{
		MessageIDs:   []string{"m1"},
		NewHistoryID: "150",
	}}
	pipeline := newTestPipeline(t, enumerator, store)

	// The write must fail loudly before any success response.
	_, err := pipeline.Process(ctx, delivery(envelope(t, map[string]any{"historyId": "150"}, nil)))
	require.Error(t, err)
	assert.Equal(t, 502, StatusForError(err))
}

func TestProcessTruncatedEnumeration(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "serverA", "100"))

	enumerator := &stubEnumerator{result: &gmail.HistoryResult{
		MessageIDs:   []string{"m1", "m2"},
		NewHistoryID: "120",
		Truncated:    true,
	}}
	pipeline := newTestPipeline(t, enumerator, store)

	// No delivery cursor: a truncated walk checkpoints at the consumed
	// prefix so the next delivery resumes the scan.
	resp, err := pipeline.Process(ctx, delivery(envelope(t, map[string]any{"emailAddress": "a@x.com"}, nil)))
	require.NoError(t, err)

	require.NotNil(t, resp.ProcessData)
	assert.Contains(t, resp.ProcessData.PromptContent, "More changes may exist")

	cursor, err := store.Get(ctx, "serverA")
	require.NoError(t, err)
	assert.Equal(t, "120", cursor)
}

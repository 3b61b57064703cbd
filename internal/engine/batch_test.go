package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/column-runner/internal/model"
)

// failPlan makes a fake model fail the first Times attempts for one prompt
// (Times < 0 fails every attempt).
type failPlan struct {
	Times   int
	Status  int
	Message string
}

// fakeModel is an httptest handler that identifies rows by their prompt
// and counts attempts per prompt.
type fakeModel struct {
	mu       sync.Mutex
	attempts map[string]int
	failures map[string]failPlan
	reply    func(prompt string) string
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		attempts: make(map[string]int),
		failures: make(map[string]failPlan),
		reply:    func(prompt string) string { return "ok: " + prompt },
	}
}

func (f *fakeModel) calls(prompt string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[prompt]
}

func (f *fakeModel) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.attempts {
		total += n
	}
	return total
}

func (f *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	prompt := req.Messages[0].Content

	f.mu.Lock()
	f.attempts[prompt]++
	attempt := f.attempts[prompt]
	plan, planned := f.failures[prompt]
	f.mu.Unlock()

	if planned && (plan.Times < 0 || attempt <= plan.Times) {
		w.WriteHeader(plan.Status)
		fmt.Fprintf(w, `{"error":{"message":%q}}`, plan.Message)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": f.reply(prompt)}},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 5,
			"total_tokens":      15,
			"cost":              0.001,
		},
	})
}

func testTable(n int) *model.Table {
	t := &model.Table{Header: []string{"ID"}}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, model.Row{"ID": fmt.Sprintf("r%d", i)})
	}
	return t
}

func testSpec() model.ColumnSpec {
	return model.ColumnSpec{
		Kind:      model.KindSingle,
		Name:      "Summary",
		Model:     "test/model",
		Prompt:    "{{ID}}",
		BatchSize: 10,
	}
}

// batchFixture wires a fake model, an engine with recorded backoff delays,
// and a table of n rows.
func batchFixture(t *testing.T, n int) (*fakeModel, *Engine, *model.Table, *[]time.Duration) {
	t.Helper()

	fake := newFakeModel()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	e := newTestEngine(t, srv.URL)
	delays := &[]time.Duration{}
	e.sleep = func(d time.Duration) { *delays = append(*delays, d) }

	return fake, e, testTable(n), delays
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// TestProcessBatchAllSucceed covers the happy path: one call per row, no
// backoff, outcomes in row order, rows mutated in place.
func TestProcessBatchAllSucceed(t *testing.T) {
	fake, e, table, delays := batchFixture(t, 3)

	outcomes, err := e.ProcessBatch(context.Background(), table, indices(3), testSpec())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for i, outcome := range outcomes {
		assert.Equal(t, i, outcome.Index)
		assert.NoError(t, outcome.Err)
		assert.Equal(t, 10, outcome.Usage.PromptTokens)
		assert.Equal(t, fmt.Sprintf("ok: r%d", i), table.Rows[i]["Summary"])
	}
	assert.Equal(t, 3, fake.totalCalls())
	assert.Empty(t, *delays)
}

// TestProcessBatchRetriesOnlyFailedRows checks the core partial-failure
// property: K of N rows fail once, total invocations are N+K, and the rows
// that succeeded in round one are never re-invoked.
func TestProcessBatchRetriesOnlyFailedRows(t *testing.T) {
	fake, e, table, delays := batchFixture(t, 4)
	fake.failures["r1"] = failPlan{Times: 1, Status: 500, Message: "transient"}
	fake.failures["r3"] = failPlan{Times: 1, Status: 500, Message: "transient"}

	outcomes, err := e.ProcessBatch(context.Background(), table, indices(4), testSpec())
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.Equal(t, 6, fake.totalCalls(), "expected N+K invocations")
	assert.Equal(t, 1, fake.calls("r0"))
	assert.Equal(t, 2, fake.calls("r1"))
	assert.Equal(t, 1, fake.calls("r2"))
	assert.Equal(t, 2, fake.calls("r3"))

	for i := range table.Rows {
		assert.Equal(t, fmt.Sprintf("ok: r%d", i), table.Rows[i]["Summary"])
	}
	assert.Equal(t, []time.Duration{2 * time.Second}, *delays)
}

// TestProcessBatchBackoffDoubles verifies successive retry delays are
// 2, 4, 8, ... seconds.
func TestProcessBatchBackoffDoubles(t *testing.T) {
	fake, e, table, delays := batchFixture(t, 1)
	fake.failures["r0"] = failPlan{Times: 3, Status: 500, Message: "flaky"}

	outcomes, err := e.ProcessBatch(context.Background(), table, indices(1), testSpec())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}, *delays)
	assert.Equal(t, 4, fake.calls("r0"))
}

// TestProcessBatchRetryExhausted verifies the fatal error after the
// ceiling: it names exactly the still-failing rows and de-duplicates
// identical error signatures.
func TestProcessBatchRetryExhausted(t *testing.T) {
	fake, e, table, delays := batchFixture(t, 3)
	e.Config.MaxRetries = 2
	fake.failures["r0"] = failPlan{Times: -1, Status: 500, Message: "boom"}
	fake.failures["r2"] = failPlan{Times: -1, Status: 500, Message: "boom"}

	outcomes, err := e.ProcessBatch(context.Background(), table, indices(3), testSpec())
	require.Error(t, err)
	assert.Nil(t, outcomes)

	var exhausted *RetryExhaustedError
	require.True(t, errors.As(err, &exhausted), "expected *RetryExhaustedError, got %T", err)
	assert.Equal(t, 2, exhausted.Retries)
	assert.Equal(t, []int{0, 2}, exhausted.Rows)

	require.Len(t, exhausted.Signatures, 1, "identical errors must collapse into one signature")
	sig := exhausted.Signatures[0]
	assert.Equal(t, 500, sig.Status)
	assert.Contains(t, sig.Message, "boom")
	assert.Equal(t, []int{0, 2}, sig.Rows)

	// Initial round + 2 retries for the failing rows; the healthy row ran once.
	assert.Equal(t, 3, fake.calls("r0"))
	assert.Equal(t, 1, fake.calls("r1"))
	assert.Equal(t, 3, fake.calls("r2"))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)

	// The healthy row's work is still in the table.
	assert.Equal(t, "ok: r1", table.Rows[1]["Summary"])
}

// TestProcessBatchDistinctSignatures verifies different failures produce
// separate summary entries, ordered by status.
func TestProcessBatchDistinctSignatures(t *testing.T) {
	fake, e, table, _ := batchFixture(t, 2)
	e.Config.MaxRetries = 1
	fake.failures["r0"] = failPlan{Times: -1, Status: 502, Message: "bad gateway"}
	fake.failures["r1"] = failPlan{Times: -1, Status: 429, Message: "rate limited"}

	_, err := e.ProcessBatch(context.Background(), table, indices(2), testSpec())
	var exhausted *RetryExhaustedError
	require.True(t, errors.As(err, &exhausted))

	require.Len(t, exhausted.Signatures, 2)
	assert.Equal(t, 429, exhausted.Signatures[0].Status)
	assert.Equal(t, []int{1}, exhausted.Signatures[0].Rows)
	assert.Equal(t, 502, exhausted.Signatures[1].Status)
	assert.Equal(t, []int{0}, exhausted.Signatures[1].Rows)

	msg := err.Error()
	assert.Contains(t, msg, "rate limited")
	assert.Contains(t, msg, "bad gateway")
}

// TestProcessBatchSizeOne confirms a one-row batch goes through the same
// retry loop.
func TestProcessBatchSizeOne(t *testing.T) {
	fake, e, table, delays := batchFixture(t, 1)
	e.Config.MaxRetries = 1
	fake.failures["r0"] = failPlan{Times: -1, Status: 503, Message: "down"}

	_, err := e.ProcessBatch(context.Background(), table, indices(1), testSpec())
	var exhausted *RetryExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, []int{0}, exhausted.Rows)
	assert.Equal(t, []time.Duration{2 * time.Second}, *delays)
	assert.Equal(t, 2, fake.calls("r0"))
}

// TestProcessBatchGroupColumn verifies group distribution happens inside
// the row task: a malformed payload degrades to unresolved markers without
// failing the batch.
func TestProcessBatchGroupColumn(t *testing.T) {
	fake, e, table, _ := batchFixture(t, 2)
	fake.reply = func(prompt string) string {
		if prompt == "r0" {
			return `{"Game":"chess","Category":"board"}`
		}
		return "not json at all"
	}

	spec := testSpec()
	spec.Kind = model.KindGroup
	spec.Name = "meta"
	spec.OutputColumns = []string{"Game", "Category"}

	outcomes, err := e.ProcessBatch(context.Background(), table, indices(2), spec)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "chess", table.Rows[0]["Game"])
	assert.Equal(t, "board", table.Rows[0]["Category"])
	assert.Equal(t, model.Unresolved, table.Rows[1]["Game"])
	assert.Equal(t, model.Unresolved, table.Rows[1]["Category"])
	assert.Equal(t, 2, fake.totalCalls(), "a decode failure must not trigger a retry")
}

package harness

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return s
}

func TestRun_ResolveAndSelect(t *testing.T) {
	scenario := mustParse(t, `
name: resolve_user
description: "resolve waits for the fetch"
fixtures:
  - route: GET /wp/v2/users/1
    body: {id: 1, name: Ada, roles: [administrator]}
steps:
  - resolve: getEntityRecord
    args: [root, user, 1]
    expect: {value: {name: Ada, roles: [administrator]}}
  - select: getUser
    args: [1]
    expect: {value: {id: 1}}
assertions:
  - type: resolution
    selector: getEntityRecord
    args: [root, user, 1]
    status: finished
  - type: fetch_count
    route: GET /wp/v2/users/1
    count: 1
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"START_RESOLUTION", "RECEIVE_ITEMS", "FINISH_RESOLUTION"}, result.Actions())
}

func TestRun_StepExpectationFailure(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_value
description: "a mismatched expectation fails the run"
fixtures:
  - route: GET /wp/v2/users/1
    body: {id: 1, name: Ada}
steps:
  - resolve: getEntityRecord
    args: [root, user, 1]
    expect: {value: {name: Grace}}
assertions:
  - type: fetch_count
    route: GET /wp/v2/users/1
    count: 1
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] resolve getEntityRecord")
	assert.Contains(t, result.Errors[0], `$.name: expected "Grace", got "Ada"`)
}

func TestRun_UnexpectedStepError(t *testing.T) {
	scenario := mustParse(t, `
name: unknown_selector
description: "infrastructure errors fail the step"
steps:
  - select: getNothing
assertions:
  - type: expr
    expr: "true"
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "unknown selector")
}

func TestRun_DispatchExpectError(t *testing.T) {
	scenario := mustParse(t, `
name: save_fails
description: "a failed save is reported through expect.error"
fixtures:
  - route: POST /wp/v2/menus
    error: rest_cannot_create
    status: 403
steps:
  - dispatch: saveMenu
    args: [{name: Footer}]
    expect: {error: rest_cannot_create}
assertions:
  - type: trace_count
    action: RECEIVE_ITEMS
    count: 0
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_TickRunsQueuedTasks(t *testing.T) {
	scenario := mustParse(t, `
name: ticks
description: "one tick runs every task queued before it"
fixtures:
  - route: GET /wp/v2/users/1
    body: {id: 1}
steps:
  - select: getEntityRecord
    args: [root, user, 1]
  - select: getUser
    args: [1]
  - tick: 1
assertions:
  - type: fetch_count
    route: GET /wp/v2/users/1
    count: 2
  - type: resolution
    selector: getUser
    args: [1]
    status: finished
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	scenario := mustParse(t, `
name: failing_assertions
description: "every failing assertion is listed"
steps:
  - select: getEntityRecords
    args: [root, user]
assertions:
  - type: fetch_count
    route: GET /wp/v2/users
    count: 1
  - type: resolution
    selector: getEntityRecords
    args: [root, user]
    status: finished
  - type: expr
    expr: 'resolving("getEntityRecords", "root", "user")'
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "fetch_count")
	assert.Contains(t, result.Errors[1], "unresolved")
	assert.Contains(t, result.Errors[2], "Actual: false")
}

func TestRun_CustomEntities(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.cue"), []byte(`
entities: [{label: "Book", kind: "root", name: "book", baseURL: "/books", key: "isbn", plural: "library"}]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.yaml"), []byte(`
name: books
description: "a custom table generates its own shortcuts"
entities: books.cue
fixtures:
  - route: GET /books
    body: [{isbn: "978-0", title: Dune}]
steps:
  - resolve: getLibrary
    expect: {len: 1}
  - select: getBook
    args: ["978-0"]
    expect: {value: {title: Dune}}
assertions:
  - type: resolution
    selector: getEntityRecord
    args: [root, book, "978-0"]
    status: finished
`), 0o644))

	scenario, err := LoadScenario(filepath.Join(dir, "books.yaml"))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_BadEntitiesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cue"), []byte(`entities: [`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.yaml"), []byte("entities: broken.cue\n"+minimalScenario), 0o644))

	scenario, err := LoadScenario(filepath.Join(dir, "s.yaml"))
	require.NoError(t, err)

	_, err = Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load entities")
}

func TestRun_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := Run(context.Background(), mustParse(t, minimalScenario), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "scenario finished")
	assert.Contains(t, buf.String(), "scenario=minimal")
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/widgets_resolve_once.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

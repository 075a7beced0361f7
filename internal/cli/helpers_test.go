package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/FgForrest/evitaDB-sub062/internal/engine"
	"github.com/FgForrest/evitaDB-sub062/internal/testutil"
)

// session runs CLI commands against one storage directory with
// deterministic transaction ids and commit timestamps.
type session struct {
	t       *testing.T
	storage string
	engine  []engine.Option
}

func newSession(t *testing.T) *session {
	t.Helper()
	clock := testutil.NewDeterministicClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), time.Second)
	return &session{
		t:       t,
		storage: t.TempDir(),
		engine: []engine.Option{
			engine.WithIDGenerator(testutil.NewSequentialIDs()),
			engine.WithClock(clock.Now),
		},
	}
}

// run executes evitactl with args and returns its standard output.
func (s *session) run(args ...string) (string, error) {
	s.t.Helper()
	cmd := newRootCommand(&RootOptions{EngineOptions: s.engine})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--storage", s.storage}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// mustRun fails the test when the command fails.
func (s *session) mustRun(args ...string) string {
	s.t.Helper()
	out, err := s.run(args...)
	if err != nil {
		s.t.Fatalf("evitactl %v: %v\n%s", args, err, out)
	}
	return out
}

func assertGolden(t *testing.T, name, actual string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(actual))
}

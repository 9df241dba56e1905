package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockIndexChecker struct {
	err error
}

func (m *mockIndexChecker) CheckIndex(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err   error
	block bool
}

func (m *mockEmbeddingChecker) HealthCheck(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"database", "index", "embedding"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockIndexChecker{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
}

func TestCheck_IndexMissing(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{err: errors.New("not found")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index"] != CheckError {
		t.Errorf("expected index %q, got %q", CheckError, r.Checks["index"])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, &mockEmbeddingChecker{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
}

func TestCheck_OptionalChecksAbsent(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
	if _, ok := r.Checks["index"]; ok {
		t.Error("index check should be absent when index is nil")
	}
}

func TestCheck_DBAndEmbeddingDown(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("down")}, &mockIndexChecker{}, &mockEmbeddingChecker{err: errors.New("down")})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("database failure must win over degraded, got %q", r.Status)
	}
	if r.Checks[CheckIndex] != CheckOK {
		t.Errorf("index = %q", r.Checks[CheckIndex])
	}
}

func TestCheck_ProbeTimeout(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, &mockEmbeddingChecker{block: true}, WithProbeTimeout(10*time.Millisecond))

	start := time.Now()
	r := svc.Check(context.Background())
	if time.Since(start) > time.Second {
		t.Fatal("probe timeout not applied")
	}
	if r.Status != Degraded || r.Checks[CheckEmbedding] != CheckError {
		t.Errorf("unexpected report: %+v", r)
	}
}

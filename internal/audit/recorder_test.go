package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mpesa_backend/internal/domain"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	lists map[string][]string
	keys  map[string]string
	ttls  map[string]time.Duration

	failSet bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: map[string][]string{}, keys: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append([]string{string(v.([]byte))}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) LTrim(_ context.Context, key string, start, stop int64) *redis.StatusCmd {
	l := f.lists[key]
	if int64(len(l)) > stop+1 {
		f.lists[key] = l[start : stop+1]
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	if f.failSet {
		return redis.NewStatusResult("", errors.New("READONLY"))
	}
	f.keys[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func TestNewEntry(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEntry(domain.CallbackOutcome{
		Kind:              domain.OutcomeError,
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        "0",
		Status:            domain.StatusCompleted,
		Err:               errors.New("update transaction: disk I/O error"),
		ReceivedAt:        at,
	})
	if e.Applied || e.Status != "" {
		t.Errorf("error outcome must not report a status: %+v", e)
	}
	if e.Error != "update transaction: disk I/O error" || !e.ReceivedAt.Equal(at) {
		t.Errorf("entry = %+v", e)
	}

	applied := NewEntry(domain.CallbackOutcome{Kind: domain.OutcomeApplied, Status: domain.StatusFailed})
	if !applied.Applied || applied.Status != domain.StatusFailed {
		t.Errorf("entry = %+v", applied)
	}
}

func TestRedisRecorder(t *testing.T) {
	fr := newFakeRedis()
	rec := NewRedisRecorder(fr)
	rec.maxEntries = 2

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := rec.Record(ctx, domain.CallbackOutcome{Kind: domain.OutcomeNotFound, CheckoutRequestID: id}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if n := len(fr.lists[ListKey]); n != 2 {
		t.Fatalf("list length = %d, want 2", n)
	}
	var newest Entry
	if err := json.Unmarshal([]byte(fr.lists[ListKey][0]), &newest); err != nil {
		t.Fatal(err)
	}
	if newest.CheckoutRequestID != "c" || newest.Kind != domain.OutcomeNotFound {
		t.Errorf("newest = %+v", newest)
	}

	if _, ok := fr.keys[OutcomeKey("a")]; !ok {
		t.Error("per-checkout key missing")
	}
	if fr.ttls[OutcomeKey("a")] != DefaultTTL {
		t.Errorf("ttl = %s", fr.ttls[OutcomeKey("a")])
	}
}

func TestRedisRecorderSkipsKeyWithoutID(t *testing.T) {
	fr := newFakeRedis()
	rec := NewRedisRecorder(fr)

	if err := rec.Record(context.Background(), domain.CallbackOutcome{Kind: domain.OutcomeMalformed}); err != nil {
		t.Fatal(err)
	}
	if len(fr.keys) != 0 || len(fr.lists[ListKey]) != 1 {
		t.Errorf("keys=%v list=%v", fr.keys, fr.lists)
	}
}

func TestRedisRecorderError(t *testing.T) {
	fr := newFakeRedis()
	fr.failSet = true
	rec := NewRedisRecorder(fr)

	err := rec.Record(context.Background(), domain.CallbackOutcome{Kind: domain.OutcomeApplied, CheckoutRequestID: "a"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLogRecorder(t *testing.T) {
	if err := (LogRecorder{}).Record(context.Background(), domain.CallbackOutcome{Kind: domain.OutcomeApplied}); err != nil {
		t.Fatal(err)
	}
}

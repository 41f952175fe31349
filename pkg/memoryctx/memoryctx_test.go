package memoryctx

import (
	"testing"

	"github.com/manifesto-ai/intentcore/pkg/value"
)

func TestFreezeWritesUnderAppSlot(t *testing.T) {
	input := value.Object(map[string]value.Value{"title": value.Str("hi")})
	frozen := Freeze(input, Recall{Key: "lastTasks", Value: value.Array([]value.Value{value.Str("a")})})

	v, ok := Get(frozen, "lastTasks")
	if !ok {
		t.Fatal("expected lastTasks to be recorded under $app")
	}
	arr, _ := v.AsArray()
	if len(arr) != 1 {
		t.Fatalf("expected 1 item, got %v", arr)
	}

	title, _ := value.Get(frozen, value.ParsePath("title"))
	if s, _ := title.AsStr(); s != "hi" {
		t.Fatalf("expected original input to survive untouched, got %v", title)
	}
}

func TestFreezeLaterRecallOverridesEarlier(t *testing.T) {
	frozen := Freeze(value.Null,
		Recall{Key: "x", Value: value.Num(1)},
		Recall{Key: "x", Value: value.Num(2)},
	)
	v, _ := Get(frozen, "x")
	if n, _ := v.AsNum(); n != 2 {
		t.Fatalf("expected the later recall to win, got %v", n)
	}
}

func TestFreezeDoesNotMutateInput(t *testing.T) {
	input := value.Object(map[string]value.Value{"$app": value.Object(map[string]value.Value{"seed": value.Str("orig")})})
	_ = Freeze(input, Recall{Key: "seed", Value: value.Str("changed")})

	v, _ := Get(input, "seed")
	if s, _ := v.AsStr(); s != "orig" {
		t.Fatalf("expected original input untouched, got %v", s)
	}
}

func TestReplaySeed(t *testing.T) {
	frozen := ReplaySeed(value.Null, "seed-123")
	v, ok := Get(frozen, "replaySeed")
	if !ok {
		t.Fatal("expected replaySeed to be recorded")
	}
	if s, _ := v.AsStr(); s != "seed-123" {
		t.Fatalf("expected seed-123, got %v", s)
	}
}

func TestGetMissingSlot(t *testing.T) {
	if _, ok := Get(value.Null, "missing"); ok {
		t.Fatal("expected Get on a non-object input to report false")
	}
	if _, ok := Get(value.Object(nil), "missing"); ok {
		t.Fatal("expected Get with no $app slot to report false")
	}
}

package effect

import (
	"context"
	"testing"

	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	r := NewRegistry()
	var gotType string
	var gotParams value.Value
	var gotCtx Context
	r.Register("api:fetch", func(ctx context.Context, typ string, params value.Value, hostCtx Context) ([]snapshot.Patch, *flowerr.Error) {
		gotType = typ
		gotParams = params
		gotCtx = hostCtx
		return []snapshot.Patch{{Op: snapshot.OpSet, Path: "data.response", Value: value.Bool(true)}}, nil
	})

	patches, err := r.Dispatch(context.Background(), "api:fetch", value.Str("in"), Context{Now: 42, RandomSeed: "seed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotType != "api:fetch" {
		t.Fatalf("handler saw type %q", gotType)
	}
	if !value.Equal(gotParams, value.Str("in")) {
		t.Fatalf("handler saw params %v", gotParams)
	}
	if gotCtx.Now != 42 || gotCtx.RandomSeed != "seed" {
		t.Fatalf("handler did not see the frozen context: %+v", gotCtx)
	}
	if len(patches) != 1 || patches[0].Path != "data.response" {
		t.Fatalf("unexpected patches: %+v", patches)
	}
}

func TestDispatchUnregisteredTypeIsInternalError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), "no.such.type", value.Null, Context{})
	if err == nil {
		t.Fatal("expected an error for an unregistered effect type")
	}
	if err.Code != flowerr.CodeInternalError {
		t.Fatalf("expected CodeInternalError, got %s", err.Code)
	}
}

func TestRegisterReplacesExistingHandler(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", func(ctx context.Context, typ string, params value.Value, hostCtx Context) ([]snapshot.Patch, *flowerr.Error) {
		return nil, flowerr.New(flowerr.CodeInternalError, "first")
	})
	r.Register("noop", func(ctx context.Context, typ string, params value.Value, hostCtx Context) ([]snapshot.Patch, *flowerr.Error) {
		return []snapshot.Patch{{Op: snapshot.OpSet, Path: "data.x", Value: value.Num(1)}}, nil
	})

	patches, err := r.Dispatch(context.Background(), "noop", value.Null, Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("expected the second registration to win, got %+v", patches)
	}
}

// Package http implements the reference `api:fetch` / `http.request`
// effect handler, the one concrete effect handler this module ships
// for demonstration and testing — everything else under the effect
// handler contract is an external collaborator. Built on resty with
// timeout/retry/debug config knobs; a handler must never panic, so
// request failures become patches to an error path instead.
package http

import (
	"context"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/manifesto-ai/intentcore/pkg/effect"
	"github.com/manifesto-ai/intentcore/pkg/flowerr"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

// requestParams is the typed shape `params` is decoded into via
// mapstructure before the handler touches it — a single map->struct
// crossing at the handler boundary instead of field-by-field value
// lookups. WeaklyTypedInput lets a schema author write
// query/header values as numbers or bools and still land in the
// string-keyed maps resty expects.
type requestParams struct {
	URL         string            `mapstructure:"url"`
	Method      string            `mapstructure:"method"`
	Headers     map[string]string `mapstructure:"headers"`
	Query       map[string]string `mapstructure:"query"`
	Body        any               `mapstructure:"body"`
	Into        string            `mapstructure:"into"`
	LoadingInto string            `mapstructure:"loadingInto"`
}

func decodeParams(params value.Value) (requestParams, error) {
	var p requestParams
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	if err := decoder.Decode(value.ToGo(params)); err != nil {
		return p, err
	}
	return p, nil
}

// Config carries the client's timeout/retry knobs, defaulted with
// creasty/defaults the way pkg/schema's Load defaults the domain
// schema document.
type Config struct {
	TimeoutMS   int  `default:"30000"`
	MaxRetries  int  `default:"3"`
	RetryWaitMS int  `default:"100"`
	Debug       bool `default:"false"`
}

// NewHandler builds an effect.Handler bound to cfg (zero value picks up
// defaults via creasty/defaults). Expected params shape (an Object):
//
//	url           string, required
//	method        string, default "GET"
//	headers       object<string,string>, optional
//	query         object<string,string>, optional
//	body          object, optional
//	into          dotted path to write {ok, status, body} into, optional
//	loadingInto   dotted path set to false once the request settles, optional
//
// A transport failure (not a non-2xx status, which is still a
// "successful" fetch as far as the flow is concerned) writes
// {ok:false, error:"..."} to `into` rather than returning a handler
// error: the handler always resolves with patches, and the flow's own
// logic decides what a non-ok response means.
func NewHandler(cfg Config) effect.Handler {
	if err := defaults.Set(&cfg); err != nil {
		cfg = Config{TimeoutMS: 30000, MaxRetries: 3, RetryWaitMS: 100}
	}
	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutMS) * time.Millisecond).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Duration(cfg.RetryWaitMS) * time.Millisecond).
		SetDebug(cfg.Debug)

	return func(ctx context.Context, typ string, params value.Value, hostCtx effect.Context) ([]snapshot.Patch, *flowerr.Error) {
		p, err := decodeParams(params)
		if err != nil {
			return nil, flowerr.New(flowerr.CodeInternalError, "http effect handler: decode params: "+err.Error())
		}
		if p.URL == "" {
			return nil, flowerr.New(flowerr.CodeInternalError, "http effect handler: missing required \"url\" param")
		}
		method := p.Method
		if method == "" {
			method = "GET"
		}

		req := client.R().SetContext(ctx)
		if len(p.Headers) > 0 {
			req.SetHeaders(p.Headers)
		}
		if len(p.Query) > 0 {
			req.SetQueryParams(p.Query)
		}
		if p.Body != nil {
			req.SetBody(p.Body)
		}

		var result any
		req.SetResult(&result)

		resp, reqErr := req.Execute(strings.ToUpper(method), p.URL)

		var patches []snapshot.Patch
		if p.Into != "" {
			patches = append(patches, snapshot.Patch{Op: snapshot.OpSet, Path: p.Into, Value: responseValue(resp, result, reqErr)})
		}
		if p.LoadingInto != "" {
			patches = append(patches, snapshot.Patch{Op: snapshot.OpSet, Path: p.LoadingInto, Value: value.Bool(false)})
		}
		return patches, nil
	}
}

func responseValue(resp *resty.Response, body any, err error) value.Value {
	if err != nil {
		return value.Object(map[string]value.Value{
			"ok":    value.Bool(false),
			"error": value.Str(err.Error()),
		})
	}
	return value.Object(map[string]value.Value{
		"ok":     value.Bool(!resp.IsError()),
		"status": value.Num(float64(resp.StatusCode())),
		"body":   value.FromGo(body),
	})
}

// Package access implements reusable HTTP request templates. An Access
// value is a capability set — a record of optional function references —
// not a base type to embed or subclass: screens compose Access values by
// calling Do, never by inheriting from one.
package access

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jihwankim/loadsmith/pkg/vuser"
)

// Access describes one reusable request template: an HTTP method, a path
// builder, optional request shaping, and optional before/after hooks. Every
// field is optional except Method and Path; the zero value of any hook is
// simply skipped.
type Access struct {
	// Name labels the metric recorded for requests made through this
	// Access. Defaults to "<Method> <built path>" when empty.
	Name string

	// Method is the HTTP method, e.g. http.MethodGet. Required.
	Method string

	// Path builds the request path from the current Context. Required.
	Path func(ctx *vuser.Context) string

	// Headers returns extra headers for this request, merged over the
	// Context's default headers.
	Headers func(ctx *vuser.Context) map[string]string

	// Query returns query parameters for this request.
	Query func(ctx *vuser.Context) map[string]string

	// JSONBody returns a value to marshal as the JSON request body. Mutually
	// exclusive with Body; if both are set, JSONBody wins.
	JSONBody func(ctx *vuser.Context) interface{}

	// Body returns a raw request body.
	Body func(ctx *vuser.Context) []byte

	// Before runs immediately before the request is issued. Returning an
	// error aborts the request and is recorded as a ScenarioError; the
	// request is not sent.
	Before func(ctx *vuser.Context) error

	// After runs immediately after the response is received (including
	// transport failures). Returning an error is recorded as a
	// ScenarioError but does not change the Response returned to the
	// caller.
	After func(ctx *vuser.Context, resp vuser.Response) error
}

// Do executes the Access against ctx: runs Before, issues the request, runs
// After, and returns the resulting Response. An error from Before prevents
// the request from being sent and is returned directly (the executor
// records it as a ScenarioError); an error from After is recorded as a
// ScenarioError but does not replace the Response.
func (a Access) Do(goCtx context.Context, ctx *vuser.Context) (vuser.Response, error) {
	if a.Before != nil {
		if err := a.Before(ctx); err != nil {
			return vuser.Response{}, fmt.Errorf("before hook: %w", err)
		}
	}

	path := ""
	if a.Path != nil {
		path = a.Path(ctx)
	}

	var opts []vuser.RequestOption
	if a.Headers != nil {
		for k, v := range a.Headers(ctx) {
			opts = append(opts, vuser.WithHeader(k, v))
		}
	}
	if a.Query != nil {
		for k, v := range a.Query(ctx) {
			opts = append(opts, vuser.WithQuery(k, v))
		}
	}
	if a.JSONBody != nil {
		opts = append(opts, vuser.WithJSON(a.JSONBody(ctx)))
	} else if a.Body != nil {
		opts = append(opts, vuser.WithBody(a.Body(ctx)))
	}
	name := a.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", a.Method, path)
	}
	opts = append(opts, vuser.WithMetricName(name))

	resp := a.request(goCtx, ctx, path, opts)

	if a.After != nil {
		if err := a.After(ctx, resp); err != nil {
			ctx.RecordScenarioError(name, fmt.Errorf("after hook: %w", err))
		}
	}

	return resp, nil
}

func (a Access) request(goCtx context.Context, ctx *vuser.Context, path string, opts []vuser.RequestOption) vuser.Response {
	switch a.Method {
	case http.MethodGet, "":
		return ctx.Get(goCtx, path, opts...)
	case http.MethodPost:
		return ctx.Post(goCtx, path, opts...)
	case http.MethodPut:
		return ctx.Put(goCtx, path, opts...)
	case http.MethodPatch:
		return ctx.Patch(goCtx, path, opts...)
	case http.MethodDelete:
		return ctx.Delete(goCtx, path, opts...)
	default:
		return ctx.Get(goCtx, path, opts...)
	}
}

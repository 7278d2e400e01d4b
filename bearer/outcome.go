package bearer

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-auth-bootstrap/authz"
)

const (
	MessageUnauthorized = "You are not Authorized"
	MessageForbidden    = "You are not authorized to access this resource"

	// MessageAuthenticationFailed replaces the failure text when error
	// details are hidden.
	MessageAuthenticationFailed = "An error occurred while authenticating the request"

	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"
)

// Kind classifies the result of authenticating and authorizing a request.
type Kind int

const (
	// KindSuccess lets the request through.
	KindSuccess Kind = iota
	// KindUnauthenticated means no usable credentials were presented.
	KindUnauthenticated
	// KindForbidden means the caller is authenticated but a policy denied it.
	KindForbidden
	// KindFailed means validating the presented token raised an error.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome carries the principal, the error or the policy decision that
// produced Kind.
type Outcome struct {
	Kind      Kind
	Principal *authz.Principal
	Err       error
	Decision  authz.Decision
}

func Success(p *authz.Principal) Outcome {
	return Outcome{Kind: KindSuccess, Principal: p}
}

func Unauthenticated(err error) Outcome {
	return Outcome{Kind: KindUnauthenticated, Principal: authz.Anonymous(), Err: err}
}

func Forbidden(p *authz.Principal, d authz.Decision) Outcome {
	return Outcome{Kind: KindForbidden, Principal: p, Decision: d}
}

func Failed(err error) Outcome {
	return Outcome{Kind: KindFailed, Principal: authz.Anonymous(), Err: err}
}

// Envelope is the JSON body written on challenge and forbidden responses.
type Envelope struct {
	Message string `json:"message"`
}

// Response is what an event hook wants written back to the client.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// TextResponse builds a text/plain response.
func TextResponse(status int, text string) Response {
	return Response{Status: status, ContentType: ContentTypeText, Body: []byte(text)}
}

// JSONResponse builds an application/json response with the envelope body.
func JSONResponse(status int, message string) Response {
	body, err := json.Marshal(Envelope{Message: message})
	if err != nil {
		// Envelope only holds a string
		body = []byte(`{"message":""}`)
	}
	return Response{Status: status, ContentType: ContentTypeJSON, Body: body}
}

// EventHandler turns a failed outcome into the response to write.
type EventHandler func(ctx context.Context, o Outcome) Response

// Events are the hooks invoked for each failure kind.
type Events struct {
	OnAuthenticationFailed EventHandler
	OnChallenge            EventHandler
	OnForbidden            EventHandler
}

// DefaultEvents returns the stock hooks: a 500 text/plain body with the
// validation error, a 401 and a 403 JSON envelope. With hideDetail the
// 500 body is a fixed message instead of the error text.
func DefaultEvents(hideDetail bool) Events {
	return Events{
		OnAuthenticationFailed: func(_ context.Context, o Outcome) Response {
			if hideDetail || o.Err == nil {
				return TextResponse(500, MessageAuthenticationFailed)
			}
			return TextResponse(500, o.Err.Error())
		},
		OnChallenge: func(context.Context, Outcome) Response {
			return JSONResponse(401, MessageUnauthorized)
		},
		OnForbidden: func(context.Context, Outcome) Response {
			return JSONResponse(403, MessageForbidden)
		},
	}
}

// merge fills unset hooks from defaults.
func (e Events) merge(defaults Events) Events {
	if e.OnAuthenticationFailed == nil {
		e.OnAuthenticationFailed = defaults.OnAuthenticationFailed
	}
	if e.OnChallenge == nil {
		e.OnChallenge = defaults.OnChallenge
	}
	if e.OnForbidden == nil {
		e.OnForbidden = defaults.OnForbidden
	}
	return e
}

// Respond maps an outcome to its response. The boolean is false for
// successful outcomes, which write nothing.
func (e Events) Respond(ctx context.Context, o Outcome) (Response, bool) {
	switch o.Kind {
	case KindSuccess:
		return Response{}, false
	case KindUnauthenticated:
		return e.OnChallenge(ctx, o), true
	case KindForbidden:
		return e.OnForbidden(ctx, o), true
	default:
		return e.OnAuthenticationFailed(ctx, o), true
	}
}

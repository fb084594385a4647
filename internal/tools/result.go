// Package tools implements the named operations exposed over MCP. Every
// operation returns a tagged Result; failures never escape as errors.
package tools

import (
	"errors"
	"time"

	"pokewatch/internal/model"
	"pokewatch/internal/poke"
	"pokewatch/internal/quota"
	"pokewatch/internal/reminder"
	"pokewatch/internal/xclient"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindProvider       Kind = "provider"
	KindRateLimited    Kind = "rate_limited"
	KindQuotaExhausted Kind = "quota_exhausted"
	KindConfiguration  Kind = "configuration"
	KindDelivery       Kind = "delivery"
	KindInternal       Kind = "internal"
)

// Failure is the error variant of a Result.
type Failure struct {
	Kind              Kind   `json:"kind"`
	Message           string `json:"message"`
	StatusCode        int    `json:"status_code,omitempty"`
	Body              string `json:"body,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func (f *Failure) Error() string { return string(f.Kind) + ": " + f.Message }

// Result is either a success carrying Data or a failure carrying Error.
type Result[T any] struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      T         `json:"data,omitempty"`
	Error     *Failure  `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (r Result[T]) OK() bool { return r.Success }

func (r Result[T]) Failure() *Failure { return r.Error }

func ok[T any](data T, msg string, now time.Time) Result[T] {
	return Result[T]{Success: true, Data: data, Message: msg, Timestamp: now}
}

func fail[T any](err error, msg string, now time.Time) Result[T] {
	return Result[T]{Error: Classify(err), Message: msg, Timestamp: now}
}

// failDelivery is fail for Poke operations: unclassified errors are
// transport failures.
func failDelivery[T any](err error, msg string, now time.Time) Result[T] {
	return Result[T]{Error: classify(err, KindDelivery), Message: msg, Timestamp: now}
}

// Classify maps typed errors from the clients and registry onto a Failure.
func Classify(err error) *Failure { return classify(err, KindInternal) }

func classify(err error, fallback Kind) *Failure {
	if err == nil {
		return nil
	}
	f := &Failure{Kind: fallback, Message: err.Error()}

	var (
		fe *Failure
		ve *model.ValidationError
		nf *xclient.NotFoundError
		rl *xclient.RateLimitedError
		pe *xclient.ProviderError
		de *poke.DeliveryError
	)
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.As(err, &ve):
		f.Kind = KindValidation
	case errors.As(err, &nf), errors.Is(err, reminder.ErrNotFound):
		f.Kind = KindNotFound
	case errors.As(err, &rl):
		f.Kind = KindRateLimited
		f.RetryAfterSeconds = int(rl.RetryAfter / time.Second)
		f.Body = rl.Body
	case errors.As(err, &pe):
		f.Kind = KindProvider
		f.StatusCode = pe.StatusCode
		f.Body = pe.Body
	case errors.Is(err, quota.ErrExhausted):
		f.Kind = KindQuotaExhausted
	case errors.Is(err, xclient.ErrMissingToken), errors.Is(err, poke.ErrMissingKey):
		f.Kind = KindConfiguration
	case errors.As(err, &de):
		f.Kind = KindDelivery
		f.StatusCode = de.StatusCode
		f.Body = de.Body
	}
	return f
}

package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/marcelsud/chat-webhooks/webhook"
	"github.com/marcelsud/chat-webhooks/webhook/payload"
	"github.com/marcelsud/chat-webhooks/webhook/signature"
	"github.com/rs/zerolog"
)

// DefaultMaxBodyBytes bounds how much of a response body is kept
const DefaultMaxBodyBytes = 64 * 1024

/* Dispatcher performs HTTP attempts against a single webhook
 * The http.Client carries no timeout of its own; every attempt gets a fresh deadline
 * from the webhook's TimeoutMS
 */
type Dispatcher struct {
	client   *http.Client
	recorder Recorder
	logger   zerolog.Logger
	maxBody  int64
	now      func() time.Time
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRecorder sets the recorder notified of attempts and sequences
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithDispatcherLogger sets the logger used to report retries
func WithDispatcherLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMaxBodyBytes bounds how much of each response body is read
func WithMaxBodyBytes(n int64) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxBody = n
		}
	}
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:   &http.Client{},
		recorder: nopRecorder{},
		logger:   zerolog.Nop(),
		maxBody:  DefaultMaxBodyBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Attempt performs exactly one HTTP call bounded by the webhook timeout
func (d *Dispatcher) Attempt(ctx context.Context, wh webhook.Webhook, body string) AttemptResult {
	start := d.now()
	res := d.attempt(ctx, wh, body)
	res.Elapsed = d.now().Sub(start)

	kind := FailureNone
	if !res.Success {
		kind = Classify(res.Err)
	}
	d.recorder.RecordAttempt(ctx, wh, kind, res.Elapsed)
	return res
}

func (d *Dispatcher) attempt(ctx context.Context, wh webhook.Webhook, body string) AttemptResult {
	ctx, cancel := context.WithTimeout(ctx, wh.Timeout())
	defer cancel()

	method := wh.Method
	if method == 0 {
		method = webhook.POST
	}
	var reader io.Reader
	if method.HasBody() {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method.String(), wh.URL, reader)
	if err != nil {
		return AttemptResult{Err: &AttemptError{Kind: FailureTransport, Cause: fmt.Errorf("creating request: %w", err)}}
	}
	for _, h := range wh.Headers {
		req.Header.Set(h.Name, h.Value)
	}
	if wh.SigningSecret != "" {
		if err := d.sign(req.Header, wh.SigningSecret, body); err != nil {
			return AttemptResult{Err: &AttemptError{Kind: FailureTransport, Cause: fmt.Errorf("signing request: %w", err)}}
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return AttemptResult{Err: classifyTransport(ctx, err, wh.Timeout())}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBody))
	if err != nil {
		return AttemptResult{Status: resp.StatusCode, Err: classifyTransport(ctx, fmt.Errorf("reading response: %w", err), wh.Timeout())}
	}

	res := AttemptResult{
		Status:  resp.StatusCode,
		Body:    payload.DecodeBody(raw),
		RawBody: string(raw),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.Success = true
		return res
	}
	res.Err = &AttemptError{Kind: FailureHTTP, Status: resp.StatusCode}
	return res
}

func (d *Dispatcher) sign(h http.Header, encoded, body string) error {
	secret, err := signature.ParseSecret(encoded)
	if err != nil {
		return err
	}
	return signature.Apply(h, secret, "msg_"+uuid.NewString(), d.now(), []byte(body))
}

// classifyTransport tells a deadline apart from any other network failure
func classifyTransport(ctx context.Context, err error, timeout time.Duration) *AttemptError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &AttemptError{Kind: FailureTimeout, Cause: fmt.Errorf("no response within %s", timeout)}
	}
	return &AttemptError{Kind: FailureTransport, Cause: err}
}

/* DeliverWithRetry runs attempts with a fixed delay until one succeeds or retries run out
 * At most Retries+1 attempts are made; only the last attempt's diagnostics are kept
 */
func (d *Dispatcher) DeliverWithRetry(ctx context.Context, wh webhook.Webhook, body string) Result {
	start := d.now()
	retries := wh.Retries
	if retries < 0 {
		retries = 0
	}

	var (
		last     AttemptResult
		attempts int
	)
	operation := func() error {
		attempts++
		last = d.Attempt(ctx, wh, body)
		if last.Success {
			return nil
		}
		return last.Err
	}
	notify := func(err error, wait time.Duration) {
		d.logger.Warn().
			Err(err).
			Str("webhook_id", wh.ID).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Msg("webhook attempt failed, retrying")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(wh.RetryDelay()), uint64(retries)),
		ctx,
	)
	_ = backoff.RetryNotify(operation, policy, notify)

	res := resultFromAttempt(wh, last, attempts)
	res.Elapsed = d.now().Sub(start)
	if !res.Success {
		var attemptErr *AttemptError
		if !errors.As(last.Err, &attemptErr) {
			attemptErr = &AttemptError{Kind: FailureTransport, Cause: last.Err}
		}
		res.Err = &ExhaustedError{Attempts: attempts, Last: attemptErr}
	}
	d.recorder.RecordSequence(ctx, wh, res)
	return res
}

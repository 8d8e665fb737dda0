package fetcher

import (
	"context"
	"io"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Meter accumulates request and byte counts across one collection task.
// Safe for concurrent use.
type Meter struct {
	requests atomic.Int64
	bytes    atomic.Int64
}

// AddRequest records one outbound HTTP request.
func (m *Meter) AddRequest() { m.requests.Add(1) }

// AddBytes records n bytes read from a response body.
func (m *Meter) AddBytes(n int64) { m.bytes.Add(n) }

// Requests returns the number of requests made, including retries.
func (m *Meter) Requests() int64 { return m.requests.Load() }

// Bytes returns the number of body bytes downloaded.
func (m *Meter) Bytes() int64 { return m.bytes.Load() }

// Metered returns a Fetcher that counts every request and byte into m.
func Metered(f Fetcher, m *Meter) Fetcher {
	return &metered{f: f, m: m}
}

type metered struct {
	f Fetcher
	m *Meter
}

func (mf *metered) Download(ctx context.Context, url string, opts ...RequestOption) (io.ReadCloser, error) {
	return mf.f.Download(ctx, url, append(opts, WithMeter(mf.m))...)
}

func (mf *metered) GetBytes(ctx context.Context, url string, opts ...RequestOption) ([]byte, error) {
	return mf.f.GetBytes(ctx, url, append(opts, WithMeter(mf.m))...)
}

func (mf *metered) FetchConditional(ctx context.Context, url string, cond Conditional, opts ...RequestOption) (*ConditionalResult, error) {
	return mf.f.FetchConditional(ctx, url, cond, append(opts, WithMeter(mf.m))...)
}

// SetHostLimit forwards to the wrapped fetcher when it supports host limits.
func (mf *metered) SetHostLimit(host string, limit rate.Limit, burst int) {
	if hl, ok := mf.f.(HostLimiter); ok {
		hl.SetHostLimit(host, limit, burst)
	}
}

// meterBody counts bytes as they are read and releases the per-request
// timeout when closed.
type meterBody struct {
	rc     io.ReadCloser
	meter  *Meter
	cancel context.CancelFunc
}

func (b *meterBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 && b.meter != nil {
		b.meter.AddBytes(int64(n))
	}
	return n, err
}

func (b *meterBody) Close() error {
	err := b.rc.Close()
	if b.cancel != nil {
		b.cancel()
	}
	return err
}

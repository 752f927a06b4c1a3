package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

// base carries the shared adapter machinery: cache consult/populate,
// HTTP with retry, failure classification, structured logging.
// 어댑터 공통 로직은 여기서만 (각 어댑터는 파싱/매핑만 담당)
type base struct {
	name   string
	http   *httputil.Client
	store  *cache.Store
	ttls   analysisconfig.CacheTTLs
	logger *logger.Logger
}

func newBase(name string, client *httputil.Client, store *cache.Store, ttls analysisconfig.CacheTTLs, log *logger.Logger) base {
	return base{
		name:   name,
		http:   client,
		store:  store,
		ttls:   ttls,
		logger: log.WithField("adapter", name),
	}
}

// buildFunc fetches and maps one payload. Returned class is consulted
// only when err != nil.
type buildFunc func(ctx context.Context) (*contracts.ProviderPayload, contracts.ErrorClass, error)

// run wraps a fetch with cache consult before the network and populate
// after success. Recovers panics into malformed outcomes so a bad parse
// can never unwind into the pipeline.
func (b *base) run(ctx context.Context, req Request, build buildFunc) (out contracts.Outcome) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("panic", fmt.Sprint(r)).Error("Adapter fetch panicked")
			out = contracts.Fail(b.name, contracts.ClassMalformed,
				fmt.Sprintf("fetch panicked: %v", r), time.Since(start))
		}
	}()

	key := cache.Key(b.name, req.Need, req.Params)
	if payload, ok := b.store.Get(key); ok {
		out = contracts.OK(b.name, payload, time.Since(start))
		out.FromCache = true
		return out
	}

	payload, class, err := build(ctx)
	elapsed := time.Since(start)

	if err != nil {
		b.logger.WithFields(map[string]interface{}{
			"need":    req.Need,
			"class":   string(class),
			"elapsed": elapsed,
			"error":   err.Error(),
		}).Warn("Adapter fetch failed")
		return contracts.Fail(b.name, class, err.Error(), elapsed)
	}

	b.store.Put(key, payload, b.ttls.TTL(req.Need))

	b.logger.WithFields(map[string]interface{}{
		"need":    req.Need,
		"elapsed": elapsed,
	}).Debug("Adapter fetch completed")

	return contracts.OK(b.name, payload, elapsed)
}

// getJSON fetches and decodes, classifying any failure
func (b *base) getJSON(ctx context.Context, url string, headers map[string]string, out interface{}) (contracts.ErrorClass, error) {
	status, err := b.http.GetJSON(ctx, url, headers, out)
	if err != nil {
		return Classify(status, err), err
	}
	return "", nil
}

// Classify maps an HTTP status and transport error onto an ErrorClass
func Classify(status int, err error) contracts.ErrorClass {
	switch {
	case err != nil && errors.Is(err, httputil.ErrMalformed):
		return contracts.ClassMalformed
	case err != nil && errors.Is(err, httputil.ErrQuotaExceeded):
		return contracts.ClassRateLimited
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)):
		return contracts.ClassTimeout
	case status == http.StatusTooManyRequests:
		return contracts.ClassRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return contracts.ClassAuth
	case status == http.StatusNotFound:
		return contracts.ClassNotFound
	}
	// transport errors, 5xx and anything unexpected
	return contracts.ClassUnavailable
}

package main

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ratewatch/internal/aggregate"
	"ratewatch/internal/provider"
	"ratewatch/internal/rate"
	"ratewatch/internal/watchlist"
)

type api struct {
	registry *provider.Registry
	watch    *watchlist.Service
	agg      *aggregate.Aggregator
	log      *zap.Logger
}

func newAPIHandler(registry *provider.Registry, watch *watchlist.Service, agg *aggregate.Aggregator, log *zap.Logger) http.Handler {
	a := &api{registry: registry, watch: watch, agg: agg, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/providers", a.handleProviders)
	mux.HandleFunc("/api/rates", a.handleRates)
	mux.HandleFunc("/api/subscriptions", a.handleSubscriptions)
	mux.HandleFunc("/api/subscriptions/all", a.handleClear)

	return withJSONHeaders(withGzip(recoverPanic(limitBody(mux))))
}

type providerInfo struct {
	ID      string        `json:"id"`
	Symbols []rate.Symbol `json:"symbols"`
}

func (a *api) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := make([]providerInfo, 0)
	for _, p := range a.registry.All() {
		out = append(out, providerInfo{ID: p.Name(), Symbols: p.Symbols()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

// rateEntry is one report slot rendered for the front-end. A failed slot
// carries the error text and kind instead of a rate; a stale slot keeps
// its rate and is annotated so the front-end can say "showing data from
// N minutes ago".
type rateEntry struct {
	Provider  string     `json:"provider"`
	Symbol    string     `json:"symbol"`
	Rate      *rate.Rate `json:"rate,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
}

func (a *api) handleRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := userParam(w, r)
	if !ok {
		return
	}

	report, err := a.agg.RatesFor(r.Context(), userID)
	if err != nil {
		a.log.Error("aggregate failed", zap.Int64("user", userID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	entries := make([]rateEntry, 0, len(report.Entries))
	for _, e := range report.Entries {
		out := rateEntry{Provider: e.Provider, Symbol: e.Symbol}
		if e.Err != nil {
			out.Error = e.Err.Error()
			if kind := rate.KindOf(e.Err); kind != "" {
				out.ErrorKind = string(kind)
			} else if errors.Is(e.Err, provider.ErrUnknownProvider) {
				out.ErrorKind = "unknown_provider"
			}
		} else {
			rr := e.Rate
			out.Rate = &rr
		}
		entries = append(entries, out)
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userID, "rates": entries})
}

type subscriptionBody struct {
	User     int64  `json:"user"`
	Username string `json:"username"`
	Provider string `json:"provider"`
	Symbol   string `json:"symbol"`
}

func (a *api) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listSubscriptions(w, r)
	case http.MethodPost:
		a.addSubscription(w, r)
	case http.MethodDelete:
		a.removeSubscription(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *api) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	subs, err := a.watch.List(r.Context(), userID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	type pair struct {
		Provider string `json:"provider"`
		Symbol   string `json:"symbol"`
	}
	out := make([]pair, 0, len(subs))
	for _, s := range subs {
		out = append(out, pair{Provider: s.Provider, Symbol: s.Symbol})
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userID, "subscriptions": out})
}

func (a *api) addSubscription(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeSubscription(w, r)
	if !ok {
		return
	}
	if err := a.watch.EnsureUser(r.Context(), body.User, body.Username); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	added, err := a.watch.Add(r.Context(), body.User, body.Provider, body.Symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": added})
}

func (a *api) removeSubscription(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeSubscription(w, r)
	if !ok {
		return
	}
	removed, err := a.watch.Remove(r.Context(), body.User, body.Provider, body.Symbol)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (a *api) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	removed, err := a.watch.Clear(r.Context(), userID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func decodeSubscription(w http.ResponseWriter, r *http.Request) (subscriptionBody, bool) {
	var body subscriptionBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return body, false
	}
	if body.User == 0 || body.Provider == "" || body.Symbol == "" {
		http.Error(w, "user, provider and symbol are required", http.StatusBadRequest)
		return body, false
	}
	return body, true
}

func userParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user")
	if raw == "" {
		http.Error(w, "missing user query param", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodDelete) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

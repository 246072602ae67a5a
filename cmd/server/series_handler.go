package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pricefeed/internal/app"
	"pricefeed/internal/feed"
	"pricefeed/internal/normalize"
	"pricefeed/internal/provider"
	"pricefeed/internal/series"
)

const maxAssetsPerRequest = 50

type seriesResponse struct {
	Results []*feed.Result `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type seriesHandler struct {
	fetcher     feed.Fetcher
	log         *logrus.Logger
	concurrency int
	timeout     time.Duration
}

// ServeHTTP answers GET /api/series?asset=PETR4,VALE3&from=2021-01-01&to=2021-06-30&timeframe=daily.
func (h *seriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	assets := splitCSV(q.Get("asset"))
	if len(assets) == 0 {
		writeError(w, http.StatusBadRequest, "missing asset query param")
		return
	}
	if len(assets) > maxAssetsPerRequest {
		writeError(w, http.StatusBadRequest, "too many assets (max 50)")
		return
	}
	window, err := app.ParseWindow(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tfParam := q.Get("timeframe")
	if tfParam == "" {
		tfParam = series.Daily.String()
	}
	tf, err := series.ParseTimeframe(tfParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	byAsset, err := feed.LoadMarket(ctx, h.fetcher, assets, window, tf, h.concurrency)
	if err != nil {
		status := statusFor(err)
		h.log.WithError(err).WithFields(logrus.Fields{
			"assets":    strings.Join(assets, ","),
			"timeframe": tf.String(),
			"status":    status,
		}).Warn("series request failed")
		writeError(w, status, err.Error())
		return
	}

	resp := seriesResponse{Results: make([]*feed.Result, 0, len(byAsset))}
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		resp.Results = append(resp.Results, byAsset[a])
	}
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

// statusFor maps feed failures onto HTTP statuses: caller mistakes are 4xx, upstream
// trouble is 502.
func statusFor(err error) int {
	var (
		badAsset    *series.AssetError
		unsupported *normalize.UnsupportedTimeframeError
		upstream    *provider.ProviderError
		payload     *provider.DataFormatError
		numeric     *normalize.NumericParseError
		consistency *normalize.DataConsistencyError
	)
	switch {
	case errors.As(err, &badAsset), errors.As(err, &unsupported):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream), errors.As(err, &payload), errors.As(err, &numeric), errors.As(err, &consistency):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

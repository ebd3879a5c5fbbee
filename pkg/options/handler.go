package options

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/model"
)

// HandlerOptions configures the option search endpoint.
type HandlerOptions struct {
	SearchParam  string
	LimitParam   string
	DefaultLimit int
	MaxLimit     int
}

// HandlerOptionFn mutates HandlerOptions.
type HandlerOptionFn func(*HandlerOptions)

// DefaultHandlerOptions returns the defaults used by NewHandler.
func DefaultHandlerOptions() HandlerOptions {
	return HandlerOptions{
		SearchParam:  "q",
		LimitParam:   "limit",
		DefaultLimit: 50,
		MaxLimit:     200,
	}
}

// WithMaxLimit caps how many options a single response may carry.
func WithMaxLimit(limit int) HandlerOptionFn {
	return func(o *HandlerOptions) {
		o.MaxLimit = limit
	}
}

type optionsResponse struct {
	Data []model.Option `json:"data"`
}

// KeyFunc extracts the dictionary key from the request (router path param).
type KeyFunc func(r *http.Request) string

// NewHandler serves GET lookups against dict, filtering labels by the search
// parameter and clamping the result size.
func NewHandler(dict *Dictionary, keyFn KeyFunc, fns ...HandlerOptionFn) http.Handler {
	opts := DefaultHandlerOptions()
	for _, fn := range fns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 50
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 200
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		key := ""
		if keyFn != nil {
			key = keyFn(r)
		}
		list, ok := dict.Lookup(key)
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		limit := clampLimit(parseInt(r.URL.Query().Get(opts.LimitParam)), opts)
		results := Search(list, r.URL.Query().Get(opts.SearchParam), limit)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(true)
		_ = enc.Encode(optionsResponse{Data: results})
	})
}

// Search filters options whose label contains query (case-insensitive),
// keeping declaration order.
func Search(list []model.Option, query string, limit int) []model.Option {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Option, 0, len(list))
	for _, option := range list {
		if needle != "" && !strings.Contains(strings.ToLower(option.Label), needle) {
			continue
		}
		out = append(out, option)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func clampLimit(limit int, opts HandlerOptions) int {
	if limit <= 0 {
		limit = opts.DefaultLimit
	}
	if limit > opts.MaxLimit {
		limit = opts.MaxLimit
	}
	return limit
}

func parseInt(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

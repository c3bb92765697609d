package mw

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type uint8Params map[string]uint8

// Uint8Param parses the named path segment as an unsigned 8-bit integer
// before the handler runs. Anything else, out-of-range numbers included, is
// answered with 400 and the handler is skipped.
func Uint8Param(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, err := parseUint8(chi.URLParam(r, name))
			if err != nil {
				http.Error(w, "invalid "+name+": "+err.Error(), http.StatusBadRequest)
				return
			}

			params, _ := r.Context().Value(uint8ParamKey).(uint8Params)
			merged := make(uint8Params, len(params)+1)
			for k, p := range params {
				merged[k] = p
			}
			merged[name] = v

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), uint8ParamKey, merged)))
		})
	}
}

// Uint8 returns the value parsed by Uint8Param for name.
func Uint8(r *http.Request, name string) (uint8, bool) {
	params, _ := r.Context().Value(uint8ParamKey).(uint8Params)
	v, ok := params[name]
	return v, ok
}

func parseUint8(s string) (uint8, error) {
	if s == "" {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, errors.New("out of range 0-255")
		}
		return 0, errors.New("not an unsigned integer")
	}
	return uint8(v), nil
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/pedroarca/censoapi/internal/data"
	"github.com/pedroarca/censoapi/internal/validator"
)

// creating an envelope type
type envelope map[string]any

func (app *app) writeJSON(w http.ResponseWriter, status int, data envelope, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, err = w.Write(js)
	return err
}

func (app *app) readJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	maxBytes := 256_000
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dest)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("the body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("the body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("the body contains the incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("the body contains the incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("the body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("the body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("the body must only contain a single JSON value")
	}

	return nil
}

// readIDParam reads a positive integer route parameter.
func (app *app) readIDParam(r *http.Request, name string) (int64, error) {
	params := httprouter.ParamsFromContext(r.Context())

	id, err := strconv.ParseInt(params.ByName(name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}

	return id, nil
}

// readString returns a trimmed query parameter or the default.
func (app *app) readString(qs url.Values, key string, defaultValue string) string {
	s := strings.TrimSpace(qs.Get(key))
	if s == "" {
		return defaultValue
	}
	return s
}

// readInt parses an integer query parameter, recording a validation error on failure.
func (app *app) readInt(qs url.Values, key string, defaultValue int64, v *validator.Validator) int64 {
	s := qs.Get(key)
	if s == "" {
		return defaultValue
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		v.AddError(key, "must be an integer value")
		return defaultValue
	}
	return i
}

// readDate parses a YYYY-MM-DD query parameter as midnight in the app timezone.
func (app *app) readDate(qs url.Values, key string, v *validator.Validator) *time.Time {
	s := strings.TrimSpace(qs.Get(key))
	if s == "" {
		return nil
	}

	if !validator.DateRX.MatchString(s) {
		v.AddError(key, "must be a date in YYYY-MM-DD format")
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, app.location)
	if err != nil {
		v.AddError(key, "must be a valid date")
		return nil
	}
	return &t
}

// readFilters reads the page, page_size and sort parameters shared by the list endpoints.
func (app *app) readFilters(qs url.Values, defaultSort string, defaultPageSize int64, safelist []string, v *validator.Validator) data.Filter {
	return data.Filter{
		Page:         app.readInt(qs, "page", 1, v),
		PageSize:     app.readInt(qs, "page_size", defaultPageSize, v),
		SortBy:       app.readString(qs, "sort", defaultSort),
		SortSafeList: safelist,
	}
}

// background runs fn in a goroutine tracked by the shutdown wait group.
func (app *app) background(fn func()) {
	app.wg.Add(1)

	go func() {
		defer app.wg.Done()

		defer func() {
			if err := recover(); err != nil {
				app.logger.Error(fmt.Sprintf("%v", err))
			}
		}()

		fn()
	}()
}

// clientIP returns the address the request came from. Proxy headers are only
// believed when the connection itself comes from a trusted proxy.
func (app *app) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr // no port, use the address as is
	}
	if !app.isTrustedProxy(host) {
		return host
	}

	// walk X-Forwarded-For from the right, skipping hops added by our own proxies
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !app.isTrustedProxy(hop) {
				return hop
			}
			host = hop
		}
		return host
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return host
}

func (app *app) isTrustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range app.dynamic.Load().TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

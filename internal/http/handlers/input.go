package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"phatsurf/internal/http/respond"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var (
	errEmptyBody   = errors.New("request body is empty")
	errInvalidBody = errors.New("invalid request body")
)

// fields is a request body flattened to strings, whether it arrived as JSON
// or as a url-encoded form.
type fields map[string]string

func (f fields) get(key string) string {
	return f[key]
}

// readFields decodes the request body according to its content type.
func readFields(w http.ResponseWriter, r *http.Request) (fields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if !respond.HasJSONBody(r) {
		var err error
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
		}
		f := fields{}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				f[k] = v[0]
			}
		}
		return f, nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyBody
		}
		return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	if len(raw) == 0 {
		return nil, errEmptyBody
	}

	f := fields{}
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			f[k] = v
		case json.Number:
			f[k] = v.String()
		case bool:
			f[k] = strconv.FormatBool(v)
		}
	}
	return f, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates in and returns the names of failing fields in declaration
// order, or nil when in is valid.
func check(in any) ([]string, error) {
	err := validate.Struct(in)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return names, nil
}

// parseWeight accepts any finite real number.
func parseWeight(s string) (float64, error) {
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, fmt.Errorf("weight %q is not finite", s)
	}
	return w, nil
}

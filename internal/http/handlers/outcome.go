package handlers

import (
	"net/http"
	"strings"

	"phatsurf/internal/http/respond"
	"phatsurf/internal/logging"
	"phatsurf/internal/models"
)

// Kind classifies how a request ended, independently of the wire format.
type Kind int

const (
	KindSuccess Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth_error"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal_error"
	}
	return "unknown"
}

// Outcome is the result of handler logic. The presentation layer turns it
// into either a JSON response or a flash and redirect.
type Outcome struct {
	Kind    Kind
	Status  int      // HTTP status on success
	Body    any      // JSON payload on success
	Message string   // client-facing message on failure
	Fields  []string // offending fields of a validation failure
	Err     error    // internal cause, logged only
}

func success(status int, body any) Outcome {
	return Outcome{Kind: KindSuccess, Status: status, Body: body}
}

func invalid(msg string, fields ...string) Outcome {
	return Outcome{Kind: KindValidation, Message: msg, Fields: fields}
}

func missingFields(fields []string) Outcome {
	return invalid("Missing or empty fields: "+strings.Join(fields, ", "), fields...)
}

func conflictOutcome(msg string) Outcome {
	return Outcome{Kind: KindConflict, Message: msg}
}

func unauthorized(msg string) Outcome {
	return Outcome{Kind: KindAuth, Message: msg}
}

func notFound(msg string) Outcome {
	return Outcome{Kind: KindNotFound, Message: msg}
}

func internal(err error) Outcome {
	return Outcome{Kind: KindInternal, Err: err}
}

func (o Outcome) status() int {
	switch o.Kind {
	case KindSuccess:
		if o.Status != 0 {
			return o.Status
		}
		return http.StatusOK
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// FlashWriter is the session surface needed to answer browsers.
type FlashWriter interface {
	AddFlash(w http.ResponseWriter, r *http.Request, f models.Flash) error
}

// presenter renders outcomes. internalMsg replaces the cause of internal
// errors in JSON bodies.
type presenter struct {
	log         logging.Logger
	flashes     FlashWriter
	internalMsg string
}

// writeJSON renders o as JSON. op names the operation in logs.
func (p presenter) writeJSON(w http.ResponseWriter, r *http.Request, op string, o Outcome) {
	switch o.Kind {
	case KindSuccess:
		respond.JSON(w, o.status(), o.Body)
	case KindValidation:
		body := map[string]any{"error": o.Message}
		if len(o.Fields) > 0 {
			body["fields"] = o.Fields
		}
		respond.JSON(w, o.status(), body)
	case KindInternal:
		p.log.Error(r.Context(), op+" failed", "error", o.Err)
		msg := p.internalMsg
		if msg == "" {
			msg = respond.MsgUnexpected
		}
		respond.Error(w, http.StatusInternalServerError, msg)
	default:
		respond.Error(w, o.status(), o.Message)
	}
}

// formFlow describes how a browser form answers each outcome.
type formFlow struct {
	formURL        string // where failures go back to
	successURL     string
	successMessage string
	invalidMessage string
}

// writeRedirect renders o as a flash message and a 302.
func (p presenter) writeRedirect(w http.ResponseWriter, r *http.Request, op string, o Outcome, flow formFlow) {
	flash := models.Flash{Category: respond.CategoryDanger}
	target := flow.formURL

	switch o.Kind {
	case KindSuccess:
		flash = models.Flash{Message: flow.successMessage, Category: respond.CategorySuccess}
		target = flow.successURL
	case KindValidation:
		flash.Message = flow.invalidMessage
	case KindInternal:
		p.log.Error(r.Context(), op+" failed", "error", o.Err)
		flash.Message = respond.MsgTryAgain
	default:
		flash.Message = o.Message
	}

	if err := p.flashes.AddFlash(w, r, flash); err != nil {
		p.log.Warn(r.Context(), "failed to store flash", "op", op, "error", err)
	}
	respond.Redirect(w, r, target)
}

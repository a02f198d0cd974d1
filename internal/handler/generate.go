// Package handler implements the relay's HTTP endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lewisedginton/gemini_relay/internal/generator"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// DefaultMaxRequestSize caps request bodies when Options leaves it unset.
const DefaultMaxRequestSize int64 = 1 << 20

// Options tunes the generate handler.
type Options struct {
	// MaxRequestSize is the largest accepted body in bytes.
	MaxRequestSize int64
	// HideErrorDetails replaces generation error text with MsgGenerationFailed.
	HideErrorDetails bool
}

// GenerateHandler serves POST /generate.
type GenerateHandler struct {
	gen  generator.Generator
	log  logger.Logger
	opts Options
}

// NewGenerateHandler wires a handler to gen.
func NewGenerateHandler(gen generator.Generator, log logger.Logger, opts Options) *GenerateHandler {
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = DefaultMaxRequestSize
	}
	return &GenerateHandler{gen: gen, log: log, opts: opts}
}

// ServeHTTP validates the body, makes one generation call and relays the result.
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.RequestLogger(r, h.log)

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxRequestSize)
	req, err := decodeRequest(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("Request body too large", logger.Int64Field("limit", tooLarge.Limit))
			WriteError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		log.Warn("Invalid JSON body", logger.ErrorField(err))
		WriteError(w, http.StatusBadRequest, MsgInvalidJSON)
		return
	}

	if req.Message == "" {
		WriteError(w, http.StatusBadRequest, MsgMessageRequired)
		return
	}

	text, err := h.gen.Generate(r.Context(), req.Message)
	if err != nil {
		log.Error("Generation failed",
			logger.StringField("kind", generator.KindOf(err).String()),
			logger.ErrorField(err),
		)
		code := http.StatusInternalServerError
		if generator.IsKind(err, generator.KindValidation) {
			code = http.StatusBadRequest
		}
		WriteError(w, code, h.errorMessage(err))
		return
	}

	WriteJSON(w, http.StatusOK, GenerateResponse{Response: text})
}

func (h *GenerateHandler) errorMessage(err error) string {
	if h.opts.HideErrorDetails || err.Error() == "" {
		return MsgGenerationFailed
	}
	return err.Error()
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeRequest reads exactly one JSON value from body; anything but whitespace after it is rejected.
func decodeRequest(body io.Reader) (GenerateRequest, error) {
	var req GenerateRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return req, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, err
		}
		return req, errTrailingData
	}
	return req, nil
}

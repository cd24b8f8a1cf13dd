// Package analysis proxies meal photos to a vision model and normalizes the
// nutrition estimate it returns.
package analysis

import (
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const DefaultMaxImageBytes = 5 << 20

type Service struct {
	vision   Vision
	maxBytes int64
}

// NewService wraps v. A nil v makes every request fail with 500, which is
// how a missing API key shows up to callers.
func NewService(v Vision, maxImageBytes int64) *Service {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &Service{vision: v, maxBytes: maxImageBytes}
}

type request struct {
	Image       string `json:"image"`
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// Handle is POST /analyze.
func (s *Service) Handle(c *gin.Context) {
	if s.vision == nil {
		abort(c, http.StatusInternalServerError, "análise de imagem não configurada")
		return
	}

	// base64 inflates by 4/3; leave room for the JSON envelope
	limit := s.maxBytes*4/3 + 64<<10
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			abort(c, http.StatusRequestEntityTooLarge, "imagem muito grande")
			return
		}
		abort(c, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	raw := req.Image
	if raw == "" {
		raw = req.ImageBase64
	}
	mimeType, payload := splitDataURL(raw)
	if req.MimeType != "" {
		mimeType = req.MimeType
	}
	if payload == "" {
		abort(c, http.StatusBadRequest, "imagem ausente")
		return
	}
	if approxDecodedLen(payload) > s.maxBytes {
		abort(c, http.StatusRequestEntityTooLarge, "imagem muito grande")
		return
	}

	img, err := decodeBase64(payload)
	if err != nil || len(img) == 0 {
		abort(c, http.StatusBadRequest, "imagem em base64 inválida")
		return
	}
	if int64(len(img)) > s.maxBytes {
		abort(c, http.StatusRequestEntityTooLarge, "imagem muito grande")
		return
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(img)
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img)
	out, err := s.vision.Describe(c.Request.Context(), dataURL)
	if err != nil {
		log.Printf("analyze: upstream: %v", err)
		abort(c, http.StatusBadGateway, "falha ao consultar o modelo de visão")
		return
	}

	res, err := Normalize(out)
	if err != nil {
		log.Printf("analyze: %v", err)
		abort(c, http.StatusBadGateway, "resposta do modelo ilegível")
		return
	}
	c.JSON(http.StatusOK, res)
}

// splitDataURL separates "data:image/png;base64,AAAA" into its media type and
// payload. Plain base64 comes back with an empty media type.
func splitDataURL(s string) (string, string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return "", stripSpace(s)
	}
	meta, payload, ok := strings.Cut(s, ",")
	if !ok {
		return "", ""
	}
	meta = strings.TrimPrefix(meta, "data:")
	mediaType, _, _ := strings.Cut(meta, ";")
	return mediaType, stripSpace(payload)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

func approxDecodedLen(payload string) int64 {
	return int64(len(strings.TrimRight(payload, "="))) * 3 / 4
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("not base64")
}

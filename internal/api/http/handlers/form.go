package handlers

import (
	"io"
	"mime/multipart"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/evidence"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// submission is a parsed issue form: at most one value per text field plus
// the uploaded files per form key.
type submission struct {
	values map[string]string
	files  map[string][]*multipart.FileHeader
}

// parseSubmission reads a multipart or urlencoded body and rejects any field
// outside the allow-lists.
func parseSubmission(c *fiber.Ctx, fields, fileKeys []string) (*submission, error) {
	sub := &submission{values: map[string]string{}, files: map[string][]*multipart.FileHeader{}}
	var unknown []string

	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, apperrors.NewValidationError("invalid multipart payload")
		}
		for key, vals := range form.Value {
			if !slices.Contains(fields, key) {
				unknown = append(unknown, key)
				continue
			}
			if len(vals) > 0 {
				sub.values[key] = vals[len(vals)-1]
			}
		}
		for key, headers := range form.File {
			if !slices.Contains(fileKeys, key) {
				unknown = append(unknown, key)
				continue
			}
			sub.files[key] = headers
		}
	} else {
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			key := string(k)
			if !slices.Contains(fields, key) {
				unknown = append(unknown, key)
				return
			}
			sub.values[key] = string(v)
		})
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, apperrors.NewValidationError("unknown fields", unknown...)
	}
	return sub, nil
}

func (s *submission) has(key string) bool {
	_, ok := s.values[key]
	return ok
}

func (s *submission) text(key string) *string {
	v, ok := s.values[key]
	if !ok {
		return nil
	}
	return &v
}

func (s *submission) date(key string, invalid *[]string) *time.Time {
	v, ok := s.values[key]
	if !ok {
		return nil
	}
	t, err := parseDate(v)
	if err != nil {
		*invalid = append(*invalid, key)
		return nil
	}
	return &t
}

func (s *submission) boolean(key string, invalid *[]string) *bool {
	v, ok := s.values[key]
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*invalid = append(*invalid, key)
		return nil
	}
	return &b
}

func (s *submission) uploads(key string) []evidence.Upload {
	headers := s.files[key]
	uploads := make([]evidence.Upload, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		uploads = append(uploads, evidence.Upload{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

var dateLayouts = []string{time.DateOnly, time.RFC3339}

// parseDate accepts a calendar date or an RFC 3339 instant and returns the
// UTC calendar day it falls on.
func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, v); err == nil {
			return domain.StartOfDay(t.UTC()), nil
		}
	}
	return time.Time{}, err
}

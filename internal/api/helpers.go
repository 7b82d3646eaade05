package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/colorbook/colorbook-server/internal/assets"
	"github.com/colorbook/colorbook-server/internal/errors"
	"github.com/colorbook/colorbook-server/internal/http/response"
	"github.com/colorbook/colorbook-server/internal/normalize"
	"github.com/colorbook/colorbook-server/internal/service"
)

// multipartForm is a parsed multipart write request.
type multipartForm struct {
	r *http.Request
}

// parseMultipart caps the body at maxBytes and parses the form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipartForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.Validationf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, errors.Validation("request must be multipart/form-data").WithCause(err)
	}
	return &multipartForm{r: r}, nil
}

func (f *multipartForm) value(name string) string {
	return strings.TrimSpace(f.r.FormValue(name))
}

// list reads a repeated field; a single value may also be comma separated.
func (f *multipartForm) list(name string) []string {
	var out []string
	for _, v := range f.r.MultipartForm.Value[name] {
		out = append(out, normalize.SplitList(v)...)
	}
	return out
}

// version reads the optional optimistic concurrency version. Blank is zero.
func (f *multipartForm) version() (int, error) {
	raw := f.value("version")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.ValidationWithDetails("validation failed", map[string]string{"version": "must be a non-negative integer"})
	}
	return v, nil
}

// file reads an optional upload. A missing field returns nil.
func (f *multipartForm) file(name string) (*assets.File, error) {
	src, header, err := f.r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Validationf("could not read %s upload", name).WithCause(err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Validationf("could not read %s upload", name).WithCause(err)
	}
	return &assets.File{Name: header.Filename, Data: data}, nil
}

// writeResult answers a write route with the WriteResult shape.
func writeResult(w http.ResponseWriter, okStatus int, id string, err error, logger *slog.Logger) {
	res := service.ResultFor(id, err)
	if err == nil {
		response.Write(w, okStatus, res, logger)
		return
	}

	status := errors.CodeOf(err).HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("write failed", "id", id, "code", res.Code, "error", err)
	}
	response.Write(w, status, res, logger)
}

func deletedResult(w http.ResponseWriter, id string, err error, logger *slog.Logger) {
	if err != nil {
		writeResult(w, http.StatusOK, id, err, logger)
		return
	}
	response.Write(w, http.StatusOK, service.DeletedResult(id), logger)
}

// Package upload validates CSV files on the client and submits them.
//
// Validation is a pre-check only. The server still decides whether the
// columns are right, and its verdict is mapped to a user-facing message by
// MapServerError.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/chemora/internal/client/api"
	"github.com/atinyakov/chemora/internal/models"
	"go.uber.org/zap"
)

// CSVType is the only accepted declared content type.
const CSVType = "text/csv"

// RequiredColumns are the headers the server expects, in order.
var RequiredColumns = []string{"Equipment Name", "Type", "Flowrate", "Pressure", "Temperature"}

const (
	msgNoFile          = "No file selected"
	msgUnsupportedType = "Only .csv files are allowed"
	msgUploadFailed    = "Upload failed"
)

// MsgMissingColumns replaces any server message that mentions columns.
var MsgMissingColumns = "Required columns missing: " + strings.Join(RequiredColumns, ", ")

var (
	// ErrNoFileSelected is returned by Validate for a nil file.
	ErrNoFileSelected = api.NewValidationError(msgNoFile)
	// ErrUnsupportedType is returned by Validate for a non-CSV declared type.
	ErrUnsupportedType = api.NewValidationError(msgUnsupportedType)
)

// File is a file chosen for upload together with the content type its
// source reported for it.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromPath describes the file at path. declaredType is used as the content
// type when set; otherwise the type registered for the extension is used,
// which may be empty.
func FromPath(path, declaredType string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	ct := declaredType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(path))
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			ct = mt
		}
	}
	return &File{
		Name:        filepath.Base(path),
		ContentType: ct,
		Size:        info.Size(),
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Validate checks the declared content type only. A file named .csv with a
// different type is rejected.
func Validate(f *File) error {
	if f == nil {
		return ErrNoFileSelected
	}
	if f.ContentType != CSVType {
		return ErrUnsupportedType
	}
	return nil
}

// MapServerError turns a server rejection message into the text shown to
// the user.
func MapServerError(msg string) string {
	switch {
	case strings.Contains(msg, "columns"):
		return MsgMissingColumns
	case msg == "":
		return msgUploadFailed
	default:
		return msg
	}
}

// Submitter posts the file to the server.
type Submitter interface {
	Upload(ctx context.Context, auth api.Authorizer, filename, contentType string, body io.Reader) (*models.UploadResponse, error)
}

// Registry is refreshed after a successful upload.
type Registry interface {
	Refresh(ctx context.Context) error
	Latest() (models.Dataset, bool)
}

// Result describes an accepted upload.
type Result struct {
	Name           string
	DatasetID      int64
	EquipmentCount int
}

// Uploader runs the two-phase upload: local validation, then the server.
type Uploader struct {
	submit   Submitter
	registry Registry
	auth     func() api.Authorizer
	log      *zap.Logger
}

// NewUploader builds an Uploader.
//
// Parameters:
//   - submit: sends the multipart request to the API.
//   - registry: refreshed after every accepted upload so Latest reflects it.
//   - auth: returns the authorizer of the current session at call time.
//   - log: may be nil.
func NewUploader(submit Submitter, registry Registry, auth func() api.Authorizer, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{submit: submit, registry: registry, auth: auth, log: log}
}

// Upload validates f, sends it, and refreshes the registry. The equipment
// count of the result is taken from the latest dataset after the refresh.
func (u *Uploader) Upload(ctx context.Context, f *File) (Result, error) {
	if err := Validate(f); err != nil {
		return Result{}, err
	}

	body, err := f.Open()
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer body.Close()

	resp, err := u.submit.Upload(ctx, u.auth(), f.Name, f.ContentType, body)
	if err != nil {
		u.log.Info("upload rejected", zap.String("file", f.Name), zap.Error(err))
		return Result{}, mapError(err)
	}

	res := Result{Name: f.Name, DatasetID: resp.DatasetID}
	if err := u.registry.Refresh(ctx); err != nil {
		u.log.Warn("refresh after upload failed", zap.Error(err))
	}
	if latest, ok := u.registry.Latest(); ok {
		res.EquipmentCount = latest.EquipmentCount
	}
	u.log.Info("uploaded",
		zap.String("file", f.Name),
		zap.Int64("dataset_id", res.DatasetID),
		zap.Int("equipment_count", res.EquipmentCount))
	return res, nil
}

// mapError rewrites server rejections. Connection and auth failures keep
// their message.
func mapError(err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.Kind != api.KindServer && apiErr.Kind != api.KindValidation {
		return err
	}
	msg := MapServerError(apiErr.Message)
	kind := apiErr.Kind
	if msg == MsgMissingColumns {
		kind = api.KindValidation
	}
	return &api.Error{Kind: kind, Message: msg, StatusCode: apiErr.StatusCode, Err: apiErr}
}

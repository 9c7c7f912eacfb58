// Package uploader pushes image files straight to the CDN using a
// signature obtained from the signing endpoint. Files in a batch upload
// concurrently, and an optional callback observes per-file progress as
// the request body streams out.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/soggo/bounty/internal/models"
)

const (
	MaxFileBytes = 8 << 20
	MaxFiles     = 8
)

var (
	ErrTooLarge        = errors.New("file exceeds the 8MB limit")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooManyFiles    = errors.New("too many files in one batch")
)

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Signature is the response of the signing endpoint, everything the direct
// upload request needs besides the file itself.
type Signature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder"`
	PublicID  string `json:"public_id,omitempty"`
}

// Signer provides upload signatures; in production it calls the signing
// endpoint of this same service.
type Signer interface {
	Sign(ctx context.Context, folder, publicID string) (*Signature, error)
}

type Input struct {
	Name        string
	ContentType string
	Data        []byte
}

// Progress describes one moment of a file's upload: a start event, byte
// counts while the request body streams out (Sent out of Size), and a
// final event carrying the result or the error.
type Progress struct {
	Index    int
	Total    int
	Name     string
	Sent     int64
	Size     int64
	Done     bool
	Err      error
	Uploaded *models.ProductImage
}

type Uploader struct {
	Signer  Signer
	HTTP    *http.Client
	BaseURL string // override for tests; empty means the real CDN

	OnProgress func(Progress)

	progressMu sync.Mutex
}

func New(signer Signer) *Uploader {
	return &Uploader{Signer: signer, HTTP: &http.Client{Timeout: 60 * time.Second}}
}

// Validate rejects a file before any bytes leave the process.
func Validate(in Input) error {
	if _, ok := allowedTypes[in.ContentType]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, in.ContentType)
	}
	if len(in.Data) > MaxFileBytes {
		return ErrTooLarge
	}
	return nil
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// UploadAll uploads the batch concurrently, one goroutine per file. A
// failed file does not abort the others; the successful uploads are
// returned in input order together with the first error.
func (u *Uploader) UploadAll(ctx context.Context, folder string, files []Input) ([]models.ProductImage, error) {
	if len(files) > MaxFiles {
		return nil, ErrTooManyFiles
	}

	results := make([]*models.ProductImage, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file Input) {
			defer wg.Done()
			size := int64(len(file.Data))
			u.report(Progress{Index: i, Total: len(files), Name: file.Name, Size: size})

			img, err := u.uploadOne(ctx, i, len(files), folder, file)
			if err != nil {
				errs[i] = fmt.Errorf("upload %s: %w", file.Name, err)
				u.report(Progress{Index: i, Total: len(files), Name: file.Name, Size: size, Done: true, Err: err})
				return
			}
			results[i] = img
			u.report(Progress{Index: i, Total: len(files), Name: file.Name, Sent: size, Size: size, Done: true, Uploaded: img})
		}(i, file)
	}
	wg.Wait()

	uploaded := make([]models.ProductImage, 0, len(files))
	for _, img := range results {
		if img != nil {
			uploaded = append(uploaded, *img)
		}
	}
	for _, err := range errs {
		if err != nil {
			return uploaded, err
		}
	}
	return uploaded, nil
}

// progressReader reports the cumulative bytes drained from the request
// body, which is how much of the upload is on the wire.
type progressReader struct {
	r      io.Reader
	sent   int64
	report func(sent int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent)
	}
	return n, err
}

func (u *Uploader) uploadOne(ctx context.Context, index, total int, folder string, file Input) (*models.ProductImage, error) {
	if err := Validate(file); err != nil {
		return nil, err
	}

	sig, err := u.Signer.Sign(ctx, folder, "")
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"api_key":   sig.APIKey,
		"timestamp": strconv.FormatInt(sig.Timestamp, 10),
		"signature": sig.Signature,
		"folder":    sig.Folder,
	}
	if sig.PublicID != "" {
		fields["public_id"] = sig.PublicID
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	endpoint := u.BaseURL
	if endpoint == "" {
		endpoint = "https://api.cloudinary.com/v1_1/" + sig.CloudName
	}
	bodyLen := int64(body.Len())
	pr := &progressReader{
		r: bytes.NewReader(body.Bytes()),
		report: func(sent int64) {
			u.report(Progress{Index: index, Total: total, Name: file.Name, Sent: sent, Size: bodyLen})
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/image/upload", pr)
	if err != nil {
		return nil, err
	}
	req.ContentLength = bodyLen
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, errors.New(parsed.Error.Message)
		}
		return nil, fmt.Errorf("unexpected upload status %d", resp.StatusCode)
	}

	return &models.ProductImage{
		URL:      parsed.SecureURL,
		PublicID: parsed.PublicID,
		Width:    parsed.Width,
		Height:   parsed.Height,
		Format:   parsed.Format,
		Bytes:    parsed.Bytes,
	}, nil
}

func (u *Uploader) httpClient() *http.Client {
	if u.HTTP != nil {
		return u.HTTP
	}
	return http.DefaultClient
}

// report serializes callback invocations; files upload from separate
// goroutines.
func (u *Uploader) report(p Progress) {
	if u.OnProgress == nil {
		return
	}
	u.progressMu.Lock()
	u.OnProgress(p)
	u.progressMu.Unlock()
}

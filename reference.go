package imageloop

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/afero"
)

const defaultFetchTimeout = 30 * time.Second

// ReferenceLoader turns reference paths and URLs into InputImages. Local paths
// are read through an afero filesystem; http(s) URLs are fetched; data: URLs
// are decoded in place.
type ReferenceLoader struct {
	fs     afero.Fs
	client *http.Client
}

// NewReferenceLoader creates a loader. A nil fs means the OS filesystem and a
// nil client means an http.Client with a 30s timeout.
func NewReferenceLoader(fs afero.Fs, client *http.Client) *ReferenceLoader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &ReferenceLoader{fs: fs, client: client}
}

// LoadAll loads refs concurrently. Images come back in input order; a reference
// that fails is left out and reported in errs, without affecting the others.
func (l *ReferenceLoader) LoadAll(ctx context.Context, refs []string) ([]InputImage, []error) {
	if len(refs) == 0 {
		return nil, nil
	}

	type loaded struct {
		img InputImage
		err error
	}

	results := iter.Map(refs, func(ref *string) loaded {
		img, err := l.Load(ctx, *ref)
		return loaded{img: img, err: err}
	})

	images := make([]InputImage, 0, len(results))
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		images = append(images, r.img)
	}
	return images, errs
}

// Load loads a single reference and validates it. A reference with no bytes
// is an error.
func (l *ReferenceLoader) Load(ctx context.Context, ref string) (InputImage, error) {
	var (
		img InputImage
		err error
	)
	switch {
	case strings.HasPrefix(ref, "data:"):
		img, err = decodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		img, err = l.fetch(ctx, ref)
	default:
		img, err = l.read(ref)
	}
	if err == nil && len(img.Data) == 0 {
		err = ErrEmptyImageData
	}
	if err != nil {
		return InputImage{}, &ReferenceError{Ref: ref, Err: err}
	}
	img.URI = ref

	if err := ValidateInputImage(img); err != nil {
		return InputImage{}, &ReferenceError{Ref: ref, Err: err}
	}
	return img, nil
}

func (l *ReferenceLoader) read(path string) (InputImage, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return InputImage{}, err
	}
	return InputImage{Data: data, MIMEType: GetMIMEType(path)}, nil
}

func (l *ReferenceLoader) fetch(ctx context.Context, rawURL string) (InputImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return InputImage{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return InputImage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return InputImage{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return InputImage{}, err
	}

	mimeType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		switch {
		case err != nil, mt == "application/octet-stream", mt == "binary/octet-stream":
		case strings.HasPrefix(mt, "image/"):
			mimeType = mt
		default:
			return InputImage{}, fmt.Errorf("unexpected content type %s", mt)
		}
	}
	if mimeType == "" {
		path := rawURL
		if u, err := url.Parse(rawURL); err == nil {
			path = u.Path
		}
		mimeType = GetMIMEType(path)
	}

	return InputImage{Data: data, MIMEType: mimeType}, nil
}

func decodeDataURL(ref string) (InputImage, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return InputImage{}, errors.New("malformed data URL")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return InputImage{}, errors.New("data URL must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return InputImage{}, fmt.Errorf("invalid base64: %w", err)
	}
	return InputImage{Data: data, MIMEType: mimeType}, nil
}

// DataURL encodes image bytes as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ArtifactImage returns the artifact as an InputImage, loading its bytes
// through the loader when they are not held in memory.
func (l *ReferenceLoader) ArtifactImage(ctx context.Context, artifact *Artifact) (InputImage, error) {
	if artifact == nil {
		return InputImage{}, errors.New("nil artifact")
	}
	if len(artifact.Data) > 0 {
		mimeType := artifact.MIMEType
		if mimeType == "" {
			mimeType = GetMIMEType(artifact.Ref)
		}
		return InputImage{Data: artifact.Data, MIMEType: mimeType, URI: artifact.Ref}, nil
	}
	return l.Load(ctx, artifact.Ref)
}

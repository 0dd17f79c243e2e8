// Package attach turns user-supplied file paths into media content parts.
//
// The media type comes from the file extension. Images and documents must be
// local files; videos may be local or an s3:// location.
package attach

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	errors "github.com/Laisky/errors/v2"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/quells-bot/bedrock-cli/llm"
)

// Kind is the media class of an attachment.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

const s3Prefix = "s3://"

// extension -> Bedrock format name
var (
	imageFormats = map[string]string{
		"gif": "gif", "jpeg": "jpeg", "jpg": "jpeg", "png": "png", "webp": "webp",
	}
	videoFormats = map[string]string{
		"flv": "flv", "mkv": "mkv", "mov": "mov", "mp4": "mp4", "mpg": "mpg",
		"mpeg": "mpeg", "3gp": "three_gp", "webm": "webm", "wmv": "wmv",
	}
	documentFormats = map[string]string{
		"csv": "csv", "doc": "doc", "docx": "docx", "html": "html", "md": "md",
		"pdf": "pdf", "txt": "txt", "xls": "xls", "xlsx": "xlsx",
	}
)

// InvalidPathError reports an attachment that cannot be sent.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid attachment path %q: %s", e.Path, e.Reason)
}

// Attachment is a classified, and once loaded, read attachment.
type Attachment struct {
	Path   string // as given by the user
	Kind   Kind
	Format string // Bedrock format name
	Name   string // documents only
	S3URI  string // s3 videos only
	Data   []byte
}

// Part converts the attachment into an llm content part.
func (a Attachment) Part() llm.ContentPart {
	switch a.Kind {
	case KindImage:
		return llm.ImagePart(a.Format, a.Data)
	case KindVideo:
		if a.S3URI != "" {
			return llm.S3VideoPart(a.Format, a.S3URI)
		}
		return llm.VideoPart(a.Format, a.Data)
	default:
		return llm.DocumentPart(a.Format, a.Name, a.Data)
	}
}

// ExpandPath expands a leading ~ and $VAR / ${VAR} references. Relative
// paths stay relative.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		path = home + path[1:]
	}
	return os.ExpandEnv(path), nil
}

// Classify determines the kind and format of path without reading it.
func Classify(path string) (Attachment, error) {
	a := Attachment{Path: path}

	target := path
	isS3 := strings.HasPrefix(strings.ToLower(path), s3Prefix)
	if !isS3 {
		expanded, err := ExpandPath(path)
		if err != nil {
			return a, &InvalidPathError{Path: path, Reason: err.Error()}
		}
		target = expanded
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(target), "."))
	if ext == "" {
		return a, &InvalidPathError{Path: path, Reason: "no file extension"}
	}

	switch {
	case imageFormats[ext] != "":
		a.Kind, a.Format = KindImage, imageFormats[ext]
	case videoFormats[ext] != "":
		a.Kind, a.Format = KindVideo, videoFormats[ext]
	case documentFormats[ext] != "":
		a.Kind, a.Format = KindDocument, documentFormats[ext]
	default:
		return a, &InvalidPathError{Path: path, Reason: fmt.Sprintf("unsupported extension %q", ext)}
	}

	if isS3 {
		if a.Kind != KindVideo {
			return a, &InvalidPathError{Path: path, Reason: fmt.Sprintf("s3 locations are only supported for video, not %s", a.Kind)}
		}
		a.S3URI = path
		return a, nil
	}

	if a.Kind == KindDocument {
		a.Name = DocumentName(target)
	}
	return a, nil
}

// Read classifies path and loads its bytes. S3 videos are not read.
func Read(path string) (Attachment, error) {
	a, err := Classify(path)
	if err != nil || a.S3URI != "" {
		return a, err
	}

	expanded, err := ExpandPath(path)
	if err != nil {
		return a, &InvalidPathError{Path: path, Reason: err.Error()}
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return a, &InvalidPathError{Path: path, Reason: err.Error()}
	}
	if len(data) == 0 {
		return a, &InvalidPathError{Path: path, Reason: "file is empty"}
	}

	if a.Kind == KindImage {
		_, sniffed, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return a, &InvalidPathError{Path: path, Reason: "not a decodable image"}
		}
		// trust the content over the extension
		a.Format = sniffed
	}

	a.Data = data
	return a, nil
}

// Load reads every path concurrently. Results keep the order of paths. The
// first failure cancels the rest and is returned.
func Load(ctx context.Context, paths []string) ([]Attachment, error) {
	out := make([]Attachment, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := Read(p)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Parts loads paths and converts them to content parts.
func Parts(ctx context.Context, paths []string) ([]llm.ContentPart, error) {
	atts, err := Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	parts := make([]llm.ContentPart, 0, len(atts))
	for _, a := range atts {
		parts = append(parts, a.Part())
	}
	return parts, nil
}

var docNameDisallowed = regexp.MustCompile(`[^A-Za-z0-9\s\-\(\)\[\]]+`)
var docNameSpaces = regexp.MustCompile(`\s+`)

// DocumentName derives a Bedrock document name from the file stem. Bedrock
// accepts alphanumerics, single whitespace, hyphens, parentheses and square
// brackets.
func DocumentName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := docNameDisallowed.ReplaceAllString(stem, " ")
	name = strings.TrimSpace(docNameSpaces.ReplaceAllString(name, " "))
	if name == "" {
		return "document"
	}
	return name
}

// WriteFile writes data to path, expanding it first and creating the parent
// directory when missing.
func WriteFile(path string, data []byte) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(expanded); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "create directory %q", dir)
		}
	}
	if err := os.WriteFile(expanded, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %q", expanded)
	}
	return expanded, nil
}

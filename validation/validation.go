package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"transcriptd/config"
	"transcriptd/errors"
	"transcriptd/models"
)

// Strict allowlist of YouTube hosts. Anything else is rejected before
// a job record exists.
var allowedHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
	"www.youtu.be":    true,
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// storedNamePattern matches names produced by SafeStoredFilename: a
// single path component with no separators or leading dots.
var storedNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type Validator struct {
	config *config.Config
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{config: cfg}
}

// ValidateYouTubeURL checks the URL against the host allowlist and
// extracts the 11-character video ID.
func (v *Validator) ValidateYouTubeURL(rawURL string) (string, error) {
	const op = "Validator.ValidateYouTubeURL"

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.InvalidInput(op, nil, "URL is required")
	}

	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return "", errors.InvalidInput(op, err, "Invalid URL format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}

	host := strings.ToLower(parsed.Hostname())
	if !allowedHosts[host] {
		return "", errors.InvalidInput(op, nil,
			fmt.Sprintf("Host %q not allowed. Only youtube.com and youtu.be links are accepted", host))
	}

	videoID := extractVideoID(parsed)
	if !videoIDPattern.MatchString(videoID) {
		return "", errors.InvalidInput(op, nil, "Could not extract a valid video ID from URL")
	}

	return videoID, nil
}

func extractVideoID(u *url.URL) string {
	host := strings.ToLower(u.Hostname())

	if strings.Contains(host, "youtu.be") {
		// Short URL: youtu.be/VIDEO_ID
		return strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)[0]
	}

	if id := u.Query().Get("v"); id != "" {
		return id
	}

	for _, prefix := range []string{"/shorts/", "/embed/"} {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			return strings.SplitN(rest, "/", 2)[0]
		}
	}

	return ""
}

// ValidateUpload checks the declared filename and size against the
// configured extension allowlist and size cap.
func (v *Validator) ValidateUpload(filename string, size int64) error {
	const op = "Validator.ValidateUpload"

	if filename == "" {
		return errors.InvalidInput(op, nil, "Filename is required")
	}
	if size <= 0 {
		return errors.InvalidInput(op, nil, "Empty upload")
	}
	if size > v.config.Upload.MaxFileSize {
		return errors.InvalidInput(op, nil,
			fmt.Sprintf("File too large (%d bytes, limit %d)", size, v.config.Upload.MaxFileSize))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range v.config.Upload.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return errors.InvalidInput(op, nil, fmt.Sprintf("File extension %q is not allowed", ext))
}

// ValidateJobSource checks the source fields a job record must carry
// for its kind. The store calls this before persisting anything, so a
// handler bug cannot smuggle an unvalidated record into the queue.
func ValidateJobSource(kind models.SourceKind, sourceURL, storedFilename string) error {
	const op = "validation.ValidateJobSource"

	switch kind {
	case models.SourceFileUpload:
		if storedFilename == "" || !storedNamePattern.MatchString(storedFilename) {
			return errors.InvalidInput(op, nil,
				fmt.Sprintf("Stored filename %q is missing or unsafe", storedFilename))
		}
	case models.SourceYouTubeCaptions, models.SourceYouTubeAutoIngest:
		parsed, err := url.ParseRequestURI(strings.TrimSpace(sourceURL))
		if err != nil {
			return errors.InvalidInput(op, err, "Source URL is missing or malformed")
		}
		if !allowedHosts[strings.ToLower(parsed.Hostname())] {
			return errors.InvalidInput(op, nil,
				fmt.Sprintf("Source host %q is not allowed", parsed.Hostname()))
		}
	default:
		return errors.InvalidInput(op, nil, fmt.Sprintf("Unknown source kind %q", kind))
	}
	return nil
}

// SafeStoredFilename produces a collision-free on-disk name from a
// user-provided filename. Path components and unsafe characters are
// stripped; user input never becomes a filesystem path.
func SafeStoredFilename(original string) string {
	base := filepath.Base(original)
	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimLeft(base, ".")
	if base == "" {
		base = "upload"
	}
	return uuid.New().String()[:8] + "_" + base
}

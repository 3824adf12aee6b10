package avatar

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/MrEthical07/phonebook"
	"github.com/disintegration/imaging"
)

const (
	// Size is the edge length of stored avatars in pixels.
	Size = 250
	// MaxUploadBytes bounds how much of an upload is read.
	MaxUploadBytes = 5 << 20

	gravatarBase = "https://www.gravatar.com/avatar/"
)

// Storage persists an encoded avatar under name and returns its public URL.
type Storage interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Service implements phonebook.AvatarService.
type Service struct {
	storage  Storage
	size     int
	maxBytes int64
}

var _ phonebook.AvatarService = (*Service)(nil)

func New(storage Storage) *Service {
	return &Service{storage: storage, size: Size, maxBytes: MaxUploadBytes}
}

// Default returns the Gravatar URL for email with the retro fallback.
func (s *Service) Default(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return gravatarBase + hex.EncodeToString(sum[:]) + fmt.Sprintf("?s=%d&d=retro", s.size)
}

// Save decodes src, resizes it and stores it as <userID><ext>. The format
// follows the extension of filename; unknown extensions are stored as PNG.
func (s *Service) Save(ctx context.Context, userID string, src io.Reader, filename string) (string, error) {
	if s.storage == nil {
		return "", errors.New("avatar storage not configured")
	}
	if userID == "" {
		return "", errors.New("avatar owner required")
	}

	raw, err := io.ReadAll(io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > s.maxBytes {
		return "", fmt.Errorf("%w: larger than %d bytes", phonebook.ErrInvalidAvatar, s.maxBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", phonebook.ErrInvalidAvatar, err)
	}
	resized := imaging.Resize(img, s.size, s.size, imaging.Lanczos)

	ext, format := outputFormat(filename)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}

	return s.storage.Put(ctx, userID+ext, contentTypes[format], buf.Bytes())
}

var contentTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
	imaging.TIFF: "image/tiff",
	imaging.BMP:  "image/bmp",
}

func outputFormat(filename string) (string, imaging.Format) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return ".png", imaging.PNG
	}
	return ext, format
}

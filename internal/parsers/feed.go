package parsers

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/salespipe/salespipe/pkg/errors"
	"github.com/salespipe/salespipe/pkg/logger"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// FeedReader loads a raw sales feed from disk and splits it into lines.
// Legacy exports are often written in Latin-1 rather than UTF-8, so the
// reader decodes transparently: a UTF-8 BOM is stripped, valid UTF-8 is
// passed through, and anything else falls back to Latin-1.
type FeedReader struct {
	logger logger.Logger
}

// NewFeedReader creates a new FeedReader
func NewFeedReader() *FeedReader {
	return &FeedReader{
		logger: logger.GetGlobalLogger().WithComponent("feed_reader"),
	}
}

// ReadLines reads the feed file at path and returns its raw lines.
// An unreadable file is the pipeline's one fatal input condition.
func (fr *FeedReader) ReadLines(path string) ([]string, error) {
	fr.logger.WithField("file_path", path).Debug("Reading feed file")

	data, err := os.ReadFile(path)
	if err != nil {
		fr.logger.WithError(err).WithField("file_path", path).Error("Failed to read feed file")

		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	decoded, encoding := DecodeFeed(data)
	fr.logger.WithFields(logger.Fields{
		"file_path": path,
		"encoding":  encoding,
		"bytes":     len(data),
	}).Debug("Decoded feed file")

	lines := splitLines(decoded)
	return lines, nil
}

// DecodeFeed normalizes raw feed bytes to UTF-8. It strips a UTF-8 BOM
// when present and falls back to Latin-1 for byte sequences that are not
// valid UTF-8. The detected encoding name is returned for logging.
func DecodeFeed(data []byte) (string, string) {
	if bytes.HasPrefix(data, bomUTF8) {
		return string(data[len(bomUTF8):]), "utf-8-bom"
	}

	if utf8.Valid(data) {
		return string(data), "utf-8"
	}

	// Latin-1 decoding cannot fail: every byte maps to a code point.
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data), "unknown"
	}
	return string(decoded), "latin-1"
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	// Drop a single trailing empty element from the final newline;
	// interior blank lines are kept so line numbers stay stable.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

package publish

import (
	"path"
	"strconv"
	"time"

	"vidtube/internal/scratch"
)

const uploadIDSuffixLen = 7

// NewUploadID returns {unix millis}_{7 base36 chars}.
func NewUploadID() (string, error) {
	suffix, err := scratch.RandomBase36(uploadIDSuffixLen)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + suffix, nil
}

func VideoFolder(uploadID string) string { return path.Join("videos", uploadID) }

func ThumbnailFolder(uploadID string) string { return path.Join("thumbnails", uploadID) }

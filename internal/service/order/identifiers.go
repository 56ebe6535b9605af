package order

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newOrderNumber derives a human-readable number from the placement time.
// The random suffix separates orders placed in the same millisecond.
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("GM%d%s", now.UnixMilli(), randomSuffix())
}

func newTrackingID(now time.Time) string {
	return fmt.Sprintf("TRK%d%s", now.UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%x", id[:3]))
}

const cursorPrefix = "o:"

// encodeCursor makes an opaque continuation token from the last order id of a page.
func encodeCursor(lastID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatInt(lastID, 10)))
}

// decodeCursor returns the id to continue below, or 0 for the first page.
func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, err
	}
	idPart, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("malformed cursor")
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("malformed cursor")
	}
	return id, nil
}

package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/storage"
)

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func validateTournamentDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrTournamentDatesRequired
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start (%s) must be before end (%s)",
			ErrTournamentInvalidDates, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

// jsonString renders v for an audit column. Marshal failures degrade to a
// quoted error string rather than aborting the transaction that carries them.
func jsonString(v interface{}) *string {
	data, err := json.Marshal(v)
	if err != nil {
		s := fmt.Sprintf("%q", err.Error())
		return &s
	}
	s := string(data)
	return &s
}

func populateTournamentLogoURL(t *models.Tournament, uploader storage.FileUploader) {
	if t != nil && t.LogoKey != nil && *t.LogoKey != "" && uploader != nil {
		if url := uploader.GetPublicURL(*t.LogoKey); url != "" {
			t.LogoURL = &url
		}
	}
}

// GetExtensionFromContentType maps an image content type to a file extension
// for uploaded logos.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type: '%s'", contentType)
	}
}

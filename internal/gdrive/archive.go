// Package gdrive archives finished transcripts to a Google Drive folder
// as Google Docs, one document per recording.
package gdrive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/memovox/memovox/internal/logging"
	"github.com/memovox/memovox/internal/recording"
)

type Archiver struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewArchiver(ctx context.Context, credPath, folderID string) (*Archiver, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Archiver{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// Archive uploads the recording's merged transcript. Re-archiving a
// recording updates the document created for it earlier in this process.
func (a *Archiver) Archive(ctx context.Context, rec *recording.Recording) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	body := renderDocument(rec)
	name := fmt.Sprintf("memovox-%s", rec.DisplayName)

	if fileID, ok := a.fileIDs[rec.ID]; ok {
		_, err := a.service.Files.Update(fileID, &drive.File{}).Media(strings.NewReader(body)).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	doc, err := a.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.document",
		Parents:  []string{a.folderID},
	}).Media(strings.NewReader(body)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	a.fileIDs[rec.ID] = doc.Id
	logging.WithRecording(rec.ID).Info().Str("docId", doc.Id).Msg("transcript archived")
	return nil
}

func renderDocument(rec *recording.Recording) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", rec.DisplayName, rec.CreatedAt.Format("2006-01-02 15:04"))

	if notes := strings.TrimSpace(rec.Notes); notes != "" {
		fmt.Fprintf(&b, "Notes\n%s\n\n", notes)
	}

	b.WriteString("Transcript\n")
	b.WriteString(rec.MergedTranscript())
	b.WriteString("\n")
	return b.String()
}

package service

import (
	"archive/zip"
	"bytes"
	"errors"
	"time"

	"github.com/gosimple/slug"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
)

const artifactPrefix = "mystery-artwork-"

// ArtifactNames derives the archive and entry names from the source id.
func ArtifactNames(sourceID string) (entry string, archive string) {
	base := artifactPrefix + slug.Make(sourceID)
	return base + ".jpg", base + ".zip"
}

// packageArtifact wraps the image bytes in a single-entry zip archive.
func packageArtifact(image fulfillmentdomain.Image, body []byte, modified time.Time) (*fulfillmentdomain.Artifact, error) {
	if len(body) == 0 {
		return nil, errors.New("image body is empty")
	}
	entryName, archiveName := ArtifactNames(image.ID)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	header := &zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: modified,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return &fulfillmentdomain.Artifact{
		Descriptor: fulfillmentdomain.ArtifactDescriptor{
			SourceID:     image.ID,
			SourceURL:    image.URL,
			PageURL:      image.PageURL,
			Photographer: image.Photographer,
			AltText:      image.AltText,
			EntryName:    entryName,
			PackagedName: archiveName,
		},
		Bytes:   body,
		Archive: buf.Bytes(),
	}, nil
}

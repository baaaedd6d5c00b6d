package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadToPresignedURLRejectsNonImagePayload(t *testing.T) {
	awsService := &AWSService{}

	// the MIME check runs before any request goes out, so no server
	// needs to exist at this URL
	_, status, err := awsService.UploadToPresignedURL(context.Background(), "closet-bucket", "http://localhost:0/upload", []byte("plain text payload, not a garment photo"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
	assert.Equal(t, 0, status)
}

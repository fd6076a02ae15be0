package downloads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networknext/portal/pkg/errors"
)

func TestDefaultCatalog_Contract(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, "Network Next SDK", c.Title)
	require.Len(t, c.Items, 2)

	assert.Equal(t, "SDK v4.0.3", c.Items[0].Label)
	assert.Equal(t,
		"window.open('https://storage.googleapis.com/portal_sdk_download_storage/next-4.0.3.zip')",
		c.Items[0].OnClick())

	assert.Equal(t, "Documentation", c.Items[1].Label)
	assert.Equal(t,
		"window.open('https://network-next-sdk.readthedocs-hosted.com/en/latest/')",
		c.Items[1].OnClick())
}

func TestSDK_VersionLabel(t *testing.T) {
	c, err := SDK("v5.1.0", "https://example.com/next-5.1.0.zip", DefaultDocsURL)
	require.NoError(t, err)
	assert.Equal(t, "SDK v5.1.0", c.Items[0].Label)
}

func TestNewCatalog_Validation(t *testing.T) {
	good := Item{Label: "x", URL: "https://example.com/a.zip"}
	tests := []struct {
		name  string
		title string
		items []Item
	}{
		{"empty title", " ", []Item{good}},
		{"no items", "t", nil},
		{"no label", "t", []Item{{URL: good.URL}}},
		{"relative url", "t", []Item{{Label: "x", URL: "/a.zip"}}},
		{"javascript scheme", "t", []Item{{Label: "x", URL: "javascript:alert(1)"}}},
		{"quote breakout", "t", []Item{{Label: "x", URL: "https://example.com/');alert(1);('"}}},
		{"whitespace", "t", []Item{{Label: "x", URL: "https://example.com/a b"}}},
		{"tag", "t", []Item{{Label: "x", URL: "https://example.com/<script>"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.title, tt.items)
			assert.True(t, errors.IsCode(err, errors.ErrCodeCatalogInvalid), "got %v", err)
		})
	}
}

// Package downloads describes the SDK download catalog shown on the
// Downloads page.
package downloads

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/networknext/portal/pkg/errors"
)

const (
	DefaultTitle      = "Network Next SDK"
	DefaultSDKVersion = "4.0.3"
	DefaultSDKURL     = "https://storage.googleapis.com/portal_sdk_download_storage/next-4.0.3.zip"
	DefaultDocsURL    = "https://network-next-sdk.readthedocs-hosted.com/en/latest/"
	DocsLabel         = "Documentation"
)

// Item is one download button.
type Item struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// OnClick is the navigation side effect of the button.
func (i Item) OnClick() string {
	return "window.open('" + i.URL + "')"
}

// Catalog is the ordered list of downloads under a title.
type Catalog struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// NewCatalog validates and builds a catalog. Every URL must be absolute
// http(s) and free of characters that would end the quoted window.open
// argument.
func NewCatalog(title string, items []Item) (*Catalog, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New(errors.ErrCodeCatalogInvalid, "catalog title must not be empty")
	}
	if len(items) == 0 {
		return nil, errors.New(errors.ErrCodeCatalogInvalid, "catalog must contain at least one item")
	}
	out := make([]Item, 0, len(items))
	for i, it := range items {
		label := strings.TrimSpace(it.Label)
		if label == "" {
			return nil, errors.New(errors.ErrCodeCatalogInvalid, fmt.Sprintf("item %d has no label", i))
		}
		if err := validateURL(it.URL); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCatalogInvalid, fmt.Sprintf("item %q has an invalid url", label))
		}
		out = append(out, Item{Label: label, URL: it.URL})
	}
	return &Catalog{Title: title, Items: out}, nil
}

// SDK builds the standard two-item catalog: the SDK archive for version
// followed by the documentation.
func SDK(version, sdkURL, docsURL string) (*Catalog, error) {
	return NewCatalog(DefaultTitle, []Item{
		{Label: "SDK v" + strings.TrimPrefix(strings.TrimSpace(version), "v"), URL: sdkURL},
		{Label: DocsLabel, URL: docsURL},
	})
}

// DefaultCatalog is the catalog the portal ships with.
func DefaultCatalog() *Catalog {
	c, err := SDK(DefaultSDKVersion, DefaultSDKURL, DefaultDocsURL)
	if err != nil {
		panic(err)
	}
	return c
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is empty")
	}
	if strings.ContainsAny(raw, "'\"\\<>` \t\r\n") {
		return fmt.Errorf("url %q contains a forbidden character", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

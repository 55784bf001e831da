package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UploadResult is the single shape the rest of the code sees after an image
// upload, whatever the uploader returned.
type UploadResult struct {
	Key string `json:"key,omitempty"`
	URL string `json:"url"`
}

// ParseUploadResult decodes an upload response body. It understands the
// current {key,url} shape, the older {imageUrl} shape and the picker-style
// {assets:[{uri}]} / {uri} shapes.
func ParseUploadResult(body []byte) (UploadResult, error) {
	var raw struct {
		Key      string `json:"key"`
		URL      string `json:"url"`
		ImageURL string `json:"imageUrl"`
		URI      string `json:"uri"`
		Assets   []struct {
			URI string `json:"uri"`
		} `json:"assets"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return UploadResult{}, fmt.Errorf("failed to decode upload result: %w", err)
	}

	res := UploadResult{Key: raw.Key}
	switch {
	case raw.URL != "":
		res.URL = raw.URL
	case raw.ImageURL != "":
		res.URL = raw.ImageURL
	case len(raw.Assets) > 0 && raw.Assets[0].URI != "":
		res.URL = raw.Assets[0].URI
	case raw.URI != "":
		res.URL = raw.URI
	}

	res.URL = strings.TrimSpace(res.URL)
	if res.URL == "" {
		return UploadResult{}, fmt.Errorf("%w: upload result has no url", ErrWrite)
	}
	return res, nil
}
